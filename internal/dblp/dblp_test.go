// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dblp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/rebib/internal/metrics"
	"github.com/pdiddy/rebib/pkg/types"
)

const sampleSearchTwoHits = `{
  "result": {
    "hits": {
      "@total": "17",
      "hit": [
        {
          "@score": "9",
          "info": {
            "authors": {"author": [
              {"@pid": "s/RSSutton", "text": "Richard S. Sutton"},
              {"@pid": "b/AGBarto", "text": "Andrew G. Barto"}
            ]},
            "title": "Reinforcement Learning: An Introduction.",
            "venue": "IEEE Trans. Neural Networks",
            "year": "1998",
            "key": "journals/tnn/SuttonB98",
            "url": "https://dblp.org/rec/journals/tnn/SuttonB98"
          }
        },
        {
          "@score": "7",
          "info": {
            "authors": {"author": {"@pid": "s/RSSutton", "text": "Richard S. Sutton"}},
            "title": "Reinforcement Learning.",
            "venue": ["CoRR", "Extra"],
            "year": "2018",
            "key": "journals/corr/abs-1234",
            "url": "https://dblp.org/rec/journals/corr/abs-1234"
          }
        }
      ]
    }
  }
}`

const sampleSearchNoHits = `{"result": {"hits": {"@total": "0"}}}`

func withSearchServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)

	orig := searchAPIBase
	searchAPIBase = ts.URL
	t.Cleanup(func() { searchAPIBase = orig })
	return ts
}

// assertRequests compares the index request counter against series.
func assertRequests(t *testing.T, m *metrics.Recorder, series ...string) {
	t.Helper()
	want := "# HELP rebib_index_requests_total Requests sent to the publication index, by operation and status.\n" +
		"# TYPE rebib_index_requests_total counter\n" +
		strings.Join(series, "\n") + "\n"
	assert.NoError(t, testutil.CollectAndCompare(m.Registry(), strings.NewReader(want), "rebib_index_requests_total"))
}

func newTestClient(m *metrics.Recorder) *Client {
	return NewClient(types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "rebib-test/0.1"}, m)
}

func TestSearchDecodesHits(t *testing.T) {
	withSearchServer(t, http.StatusOK, sampleSearchTwoHits)

	res, err := newTestClient(nil).Search(context.Background(), "reinforcement learning sutton", 2)
	require.NoError(t, err)

	assert.Equal(t, 17, res.Total)
	require.Len(t, res.Candidates, 2)

	first := res.Candidates[0]
	assert.Equal(t, "Reinforcement Learning: An Introduction", first.Title)
	assert.Equal(t, "IEEE Trans. Neural Networks", first.Venue)
	assert.Equal(t, []string{"Richard S. Sutton", "Andrew G. Barto"}, first.Authors)
	assert.Equal(t, "https://dblp.org/rec/journals/tnn/SuttonB98", first.URL)
	assert.Equal(t, "journals/tnn/SuttonB98", first.Key)
	assert.Equal(t, "1998", first.Year)

	second := res.Candidates[1]
	assert.Equal(t, []string{"Richard S. Sutton"}, second.Authors)
	assert.Equal(t, "CoRR, Extra", second.Venue)
}

func TestSearchSendsQueryParameters(t *testing.T) {
	var gotQ, gotFormat, gotH string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQ = r.URL.Query().Get("q")
		gotFormat = r.URL.Query().Get("format")
		gotH = r.URL.Query().Get("h")
		fmt.Fprint(w, sampleSearchNoHits)
	}))
	defer ts.Close()

	orig := searchAPIBase
	searchAPIBase = ts.URL
	defer func() { searchAPIBase = orig }()

	_, err := newTestClient(nil).Search(context.Background(), "deep learning LeCun", 2)
	require.NoError(t, err)
	assert.Equal(t, "deep learning LeCun", gotQ)
	assert.Equal(t, "json", gotFormat)
	assert.Equal(t, "2", gotH)
}

func TestSearchCapsCandidates(t *testing.T) {
	withSearchServer(t, http.StatusOK, sampleSearchTwoHits)

	res, err := newTestClient(nil).Search(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 1)
	assert.Equal(t, 17, res.Total)
}

func TestSearchNoHits(t *testing.T) {
	withSearchServer(t, http.StatusOK, sampleSearchNoHits)

	res, err := newTestClient(nil).Search(context.Background(), "nothing", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.Empty(t, res.Candidates)
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, `{}`},
		{"malformed json", http.StatusOK, `{"result": `},
		{"bad total", http.StatusOK, `{"result": {"hits": {"@total": "many"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withSearchServer(t, tt.status, tt.body)

			_, err := newTestClient(nil).Search(context.Background(), "q", 2)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrIndexQuery), "got %v", err)
		})
	}
}

func TestSearchNetworkError(t *testing.T) {
	orig := searchAPIBase
	searchAPIBase = "http://127.0.0.1:1"
	defer func() { searchAPIBase = orig }()

	m := metrics.New()
	_, err := newTestClient(m).Search(context.Background(), "q", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrIndexQuery)
	assertRequests(t, m, `rebib_index_requests_total{op="search",status="error"} 1`)
}

func TestFetch(t *testing.T) {
	const record = `@inproceedings{dblpkey,
  author    = {Richard S. Sutton and
               Andrew G. Barto},
  editor    = {Some Editor},
  title     = {Temporal Differences},
  booktitle = {ICML},
  year      = {1988}
}
`
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, record)
	}))
	defer ts.Close()

	m := metrics.New()
	e, err := newTestClient(m).Fetch(context.Background(), ts.URL+"/rec/conf/icml/Sutton88")
	require.NoError(t, err)

	assert.Equal(t, "/rec/conf/icml/Sutton88.bib", gotPath)
	assert.Equal(t, "inproceedings", e.Type)
	assert.Equal(t, []string{"Richard S. Sutton", "Andrew G. Barto"}, e.Authors)
	assert.Equal(t, []string{"Some Editor"}, e.Editors)
	assert.Equal(t, "Temporal Differences", e.Title())
	assertRequests(t, m, `rebib_index_requests_total{op="fetch",status="ok"} 1`)
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusNotFound, ""},
		{"empty body", http.StatusOK, ""},
		{
			name:   "two records",
			status: http.StatusOK,
			body:   "@article{a, title = {One}}\n@article{b, title = {Two}}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			_, err := newTestClient(nil).Fetch(context.Background(), ts.URL+"/rec/x")
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrFetch)
		})
	}
}

func TestFetchRequiresURL(t *testing.T) {
	_, err := newTestClient(nil).Fetch(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrFetch)
}
