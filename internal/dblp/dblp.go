// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dblp queries the DBLP publication index and fetches BibTeX
// records for its hits.
package dblp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/rebib/internal/bibfile"
	"github.com/pdiddy/rebib/internal/httputil"
	"github.com/pdiddy/rebib/internal/metrics"
	"github.com/pdiddy/rebib/pkg/types"
)

// searchAPIBase is the DBLP publication search endpoint. Declared as a var
// so tests can substitute an httptest server.
var searchAPIBase = "https://dblp.org/search/publ/api"

// maxBodyBytes caps response bodies read from DBLP.
const maxBodyBytes = 10 << 20

// Client talks to DBLP through a shared rate-limited HTTP client.
type Client struct {
	HTTP    *httputil.Client
	Metrics *metrics.Recorder
}

// NewClient builds a Client from cfg.
func NewClient(cfg types.HTTPConfig, m *metrics.Recorder) *Client {
	return &Client{HTTP: httputil.NewClient(cfg), Metrics: m}
}

// Search runs a free-text publication query and returns at most
// maxResults hits in DBLP's relevance order. Transport failures, non-200
// responses, and undecodable bodies wrap types.ErrIndexQuery.
func (c *Client) Search(ctx context.Context, query string, maxResults int) (types.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 2
	}
	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"h":      {strconv.Itoa(maxResults)},
	}

	resp, err := c.HTTP.Get(ctx, searchAPIBase+"?"+params.Encode(), "application/json")
	if err != nil {
		c.Metrics.Request("search", "error")
		return types.SearchResult{}, fmt.Errorf("%w: DBLP search request: %v", types.ErrIndexQuery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.Metrics.Request("search", "error")
		return types.SearchResult{}, fmt.Errorf("%w: DBLP search returned HTTP %d", types.ErrIndexQuery, resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&sr); err != nil {
		c.Metrics.Request("search", "error")
		return types.SearchResult{}, fmt.Errorf("%w: parsing DBLP response: %v", types.ErrIndexQuery, err)
	}
	c.Metrics.Request("search", "ok")

	return sr.toResult(maxResults)
}

// Fetch downloads the BibTeX form of the record at recordURL. The body
// must hold exactly one entry; otherwise the error wraps types.ErrFetch.
func (c *Client) Fetch(ctx context.Context, recordURL string) (types.Entry, error) {
	if recordURL == "" {
		return types.Entry{}, fmt.Errorf("%w: candidate has no record URL", types.ErrFetch)
	}

	resp, err := c.HTTP.Get(ctx, recordURL+".bib", "application/x-bibtex")
	if err != nil {
		c.Metrics.Request("fetch", "error")
		return types.Entry{}, fmt.Errorf("%w: %v", types.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.Metrics.Request("fetch", "error")
		return types.Entry{}, fmt.Errorf("%w: HTTP %d from %s.bib", types.ErrFetch, resp.StatusCode, recordURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.Metrics.Request("fetch", "error")
		return types.Entry{}, fmt.Errorf("%w: reading %s.bib: %v", types.ErrFetch, recordURL, err)
	}

	entry, err := bibfile.ParseRecord(data)
	if err != nil {
		c.Metrics.Request("fetch", "error")
		return types.Entry{}, fmt.Errorf("%w: %s.bib: %v", types.ErrFetch, recordURL, err)
	}
	c.Metrics.Request("fetch", "ok")
	return entry, nil
}

// DBLP search API JSON structures. Several fields switch between a single
// value and an array depending on cardinality; flexStrings and
// flexAuthors accept both.
type searchResponse struct {
	Result struct {
		Hits struct {
			Total string `json:"@total"`
			Hit   []hit  `json:"hit"`
		} `json:"hits"`
	} `json:"result"`
}

type hit struct {
	Score string  `json:"@score"`
	Info  hitInfo `json:"info"`
}

type hitInfo struct {
	Authors struct {
		Author flexAuthors `json:"author"`
	} `json:"authors"`
	Title string      `json:"title"`
	Venue flexStrings `json:"venue"`
	Year  string      `json:"year"`
	Key   string      `json:"key"`
	URL   string      `json:"url"`
}

func (sr searchResponse) toResult(maxResults int) (types.SearchResult, error) {
	var out types.SearchResult
	if s := sr.Result.Hits.Total; s != "" {
		total, err := strconv.Atoi(s)
		if err != nil {
			return types.SearchResult{}, fmt.Errorf("%w: bad @total %q", types.ErrIndexQuery, s)
		}
		out.Total = total
	}

	for _, h := range sr.Result.Hits.Hit {
		if len(out.Candidates) == maxResults {
			break
		}
		out.Candidates = append(out.Candidates, types.Candidate{
			Key:     h.Info.Key,
			Title:   strings.TrimSuffix(strings.TrimSpace(h.Info.Title), "."),
			Venue:   strings.Join(h.Info.Venue, ", "),
			Year:    h.Info.Year,
			Authors: []string(h.Info.Authors.Author),
			URL:     h.Info.URL,
		})
	}
	return out, nil
}

// flexStrings decodes either "x" or ["x", "y"].
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var many []string
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*f = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*f = flexStrings{one}
	return nil
}

// flexAuthors decodes either {"text": "A"} or [{"text": "A"}, ...].
type flexAuthors []string

type dblpAuthor struct {
	PID  string `json:"@pid"`
	Text string `json:"text"`
}

func (f *flexAuthors) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var many []dblpAuthor
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
	} else {
		var one dblpAuthor
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		many = []dblpAuthor{one}
	}
	names := make([]string, 0, len(many))
	for _, a := range many {
		names = append(names, a.Text)
	}
	*f = names
	return nil
}
