// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/rebib/internal/metrics"
	"github.com/pdiddy/rebib/pkg/types"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name  string
		entry types.Entry
		want  string
	}{
		{
			name:  "title and first author",
			entry: sourceEntry("k", "Learning to Predict", "Richard S. Sutton", "Andrew G. Barto"),
			want:  "Learning to Predict Richard S. Sutton",
		},
		{
			name:  "last comma first",
			entry: sourceEntry("k", "Learning to Predict", "Sutton, Richard S."),
			want:  "Learning to Predict Richard S. Sutton",
		},
		{
			name:  "tex braces",
			entry: sourceEntry("k", "{D}eep {Q}-Networks", "Volodymyr Mnih"),
			want:  "Deep Q-Networks Volodymyr Mnih",
		},
		{
			name:  "fullwidth characters and spacing",
			entry: sourceEntry("k", "ＡＩ   Safety\n Via Debate", "Geoffrey~Irving"),
			want:  "AI Safety Via Debate Geoffrey Irving",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQuery(tt.entry))
		})
	}
}

func newResolver(idx Index) *Resolver {
	return &Resolver{Index: idx, MaxResults: 2, Attempts: DefaultAttempts, Logger: zerolog.Nop()}
}

func TestResolveZeroMatches(t *testing.T) {
	idx := newFakeIndex()
	entry := sourceEntry("k1", "Unknown Work", "Nobody Known")

	out := newResolver(idx).ResolveWithRetry(context.Background(), entry)
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Equal(t, entry, out.Source)
	assert.Contains(t, out.Info, "no DBLP match")
	assert.Equal(t, 1, idx.searches)
}

func TestResolveSearchErrorIsTerminal(t *testing.T) {
	idx := newFakeIndex()
	idx.searchErr = fmt.Errorf("%w: HTTP 500", types.ErrIndexQuery)
	entry := sourceEntry("k1", "Any", "Some One")

	out := newResolver(idx).ResolveWithRetry(context.Background(), entry)
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Equal(t, IndexRequestError, out.Info)
	assert.Equal(t, 1, idx.searches, "search failures are not retried")
}

func TestResolveUniquePreprint(t *testing.T) {
	idx := newFakeIndex()
	entry := sourceEntry("sutton2018", "Reinforcement Learning", "Richard S. Sutton")
	idx.addMatch(entry, candidate("https://dblp.org/rec/a", types.PreprintVenue, "Reinforcement Learning"))
	idx.records["https://dblp.org/rec/a"] = fetchedRecord("article", map[string]string{
		"title":   "Reinforcement Learning",
		"journal": "CoRR",
		"volume":  "arXiv:1234.5678",
		"year":    "2018",
	})

	out := newResolver(idx).ResolveWithRetry(context.Background(), entry)
	require.Equal(t, types.StatusSucceeded, out.Status)
	require.NotNil(t, out.Record)
	assert.Equal(t, "sutton2018", out.Record.Key)
	assert.Equal(t, "arXiv preprint arXiv:1234.5678", out.Record.Fields["journal"])
	assert.NotContains(t, out.Record.Fields, "volume")
	assert.Nil(t, out.Record.Editors)
	assert.Empty(t, out.Info)
}

func TestResolvePrefersPublished(t *testing.T) {
	idx := newFakeIndex()
	entry := sourceEntry("k1", "Deep RL", "Volodymyr Mnih")
	idx.addMatch(entry,
		candidate("https://dblp.org/rec/corr", types.PreprintVenue, "Deep RL"),
		candidate("https://dblp.org/rec/nature", "Nature", "Deep RL"),
	)
	idx.records["https://dblp.org/rec/nature"] = fetchedRecord("article", map[string]string{
		"title": "Deep RL", "journal": "Nature", "year": "2015", "volume": "518",
	})

	out := newResolver(idx).ResolveWithRetry(context.Background(), entry)
	require.Equal(t, types.StatusSucceeded, out.Status)
	assert.Equal(t, "Nature", out.Record.Fields["journal"])
	assert.Equal(t, 0, idx.fetchCount("https://dblp.org/rec/corr"))
	assert.Equal(t, 1, idx.fetchCount("https://dblp.org/rec/nature"))
}

func TestResolveAmbiguousIsPending(t *testing.T) {
	idx := newFakeIndex()
	entry := sourceEntry("k1", "Attention", "Ashish Vaswani")
	cands := []types.Candidate{
		candidate("https://dblp.org/rec/a", "NeurIPS", "Attention"),
		candidate("https://dblp.org/rec/b", "ICLR", "Attention"),
	}
	idx.addMatch(entry, cands...)

	out := newResolver(idx).ResolveWithRetry(context.Background(), entry)
	assert.Equal(t, types.StatusPending, out.Status)
	assert.Equal(t, BuildQuery(entry), out.Query)
	assert.Equal(t, cands, out.Candidates)
	assert.Equal(t, entry, out.Source)
	assert.Equal(t, 0, idx.fetchCount("https://dblp.org/rec/a"))
}

func TestResolveFallbackFirst(t *testing.T) {
	idx := newFakeIndex()
	entry := sourceEntry("k1", "Attention", "Ashish Vaswani")
	idx.addMatch(entry,
		candidate("https://dblp.org/rec/a", "NeurIPS", "Attention"),
		candidate("https://dblp.org/rec/b", "ICLR", "Attention"),
	)
	idx.records["https://dblp.org/rec/a"] = fetchedRecord("inproceedings", map[string]string{
		"title": "Attention", "booktitle": "NeurIPS", "year": "2017",
	})

	r := newResolver(idx)
	r.FallbackFirst = true
	out := r.ResolveWithRetry(context.Background(), entry)
	require.Equal(t, types.StatusSucceeded, out.Status)
	assert.Equal(t, "NeurIPS", out.Record.Fields["booktitle"])
	assert.Contains(t, out.Info, "Two candidates for "+BuildQuery(entry))
	assert.Contains(t, out.Info, "The first one is used.")
}

func TestResolveSingleAttemptFetchError(t *testing.T) {
	idx := newFakeIndex()
	entry := sourceEntry("k1", "Lost", "Some One")
	idx.addMatch(entry, candidate("https://dblp.org/rec/missing", "ICML", "Lost"))

	out := newResolver(idx).Resolve(context.Background(), entry)
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Contains(t, out.Info, "no record at")
	assert.Equal(t, 1, idx.fetchCount("https://dblp.org/rec/missing"))
}

func TestResolveWithRetryRecoversFromTransientFetch(t *testing.T) {
	for n := 0; n < DefaultAttempts; n++ {
		t.Run(fmt.Sprintf("%d failures", n), func(t *testing.T) {
			idx := newFakeIndex()
			entry := sourceEntry("k1", "Flaky", "Some One")
			url := "https://dblp.org/rec/flaky"
			idx.addMatch(entry, candidate(url, "ICML", "Flaky"))
			idx.records[url] = fetchedRecord("inproceedings", map[string]string{"title": "Flaky"})
			idx.fetchFailures[url] = n

			m := metrics.New()
			r := newResolver(idx)
			r.Metrics = m

			out := r.ResolveWithRetry(context.Background(), entry)
			assert.Equal(t, types.StatusSucceeded, out.Status)
			assert.Equal(t, n+1, idx.fetchCount(url))
			want := fmt.Sprintf(`
# HELP rebib_resolve_attempts_total Resolution attempts, including retries.
# TYPE rebib_resolve_attempts_total counter
rebib_resolve_attempts_total %d
`, n+1)
			assert.NoError(t, testutil.CollectAndCompare(m.Registry(), strings.NewReader(want), "rebib_resolve_attempts_total"))
		})
	}
}

func TestResolveWithRetryGivesUpAfterAttempts(t *testing.T) {
	idx := newFakeIndex()
	entry := sourceEntry("k1", "Broken", "Some One")
	url := "https://dblp.org/rec/broken"
	idx.addMatch(entry, candidate(url, "ICML", "Broken"))
	idx.fetchFailures[url] = 100

	out := newResolver(idx).ResolveWithRetry(context.Background(), entry)
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Equal(t, entry, out.Source)
	assert.Contains(t, out.Info, "transient failure 5")
	assert.Equal(t, DefaultAttempts, idx.fetchCount(url))
}

func TestRetryBound(t *testing.T) {
	entry := sourceEntry("k1", "T", "A")
	success := types.Succeeded(entry, entry, "")

	t.Run("transient failures then success", func(t *testing.T) {
		for n := 0; n < 5; n++ {
			calls := 0
			r := &Resolver{Attempts: 5, Logger: zerolog.Nop()}
			out := r.retry(context.Background(), entry, func(context.Context, types.Entry) (types.Outcome, error) {
				calls++
				if calls <= n {
					return types.Outcome{}, errors.New("boom")
				}
				return success, nil
			})
			assert.Equal(t, types.StatusSucceeded, out.Status, "n=%d", n)
			assert.Equal(t, n+1, calls)
		}
	})

	t.Run("always failing", func(t *testing.T) {
		calls := 0
		r := &Resolver{Logger: zerolog.Nop()}
		out := r.retry(context.Background(), entry, func(context.Context, types.Entry) (types.Outcome, error) {
			calls++
			return types.Outcome{}, fmt.Errorf("failure %d", calls)
		})
		assert.Equal(t, types.StatusFailed, out.Status)
		assert.Equal(t, "failure 5", out.Info)
		assert.Equal(t, 5, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		r := &Resolver{Logger: zerolog.Nop()}
		out := r.retry(ctx, entry, func(context.Context, types.Entry) (types.Outcome, error) {
			calls++
			return success, nil
		})
		assert.Equal(t, types.StatusFailed, out.Status)
		assert.Equal(t, 0, calls)
	})
}
