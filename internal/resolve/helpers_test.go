// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pdiddy/rebib/pkg/types"
)

// fakeIndex serves searches and fetches from in-memory tables.
type fakeIndex struct {
	mu sync.Mutex

	// results maps a query to its search result. Missing queries return
	// an empty result.
	results   map[string]types.SearchResult
	searchErr error

	// records maps a candidate URL to its fetched record.
	records map[string]types.Entry

	// fetchFailures makes the first n fetches of a URL fail.
	fetchFailures map[string]int

	searches int
	fetches  map[string]int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		results:       map[string]types.SearchResult{},
		records:       map[string]types.Entry{},
		fetchFailures: map[string]int{},
		fetches:       map[string]int{},
	}
}

func (f *fakeIndex) Search(_ context.Context, query string, maxResults int) (types.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	if f.searchErr != nil {
		return types.SearchResult{}, f.searchErr
	}
	res := f.results[query]
	if len(res.Candidates) > maxResults {
		res.Candidates = res.Candidates[:maxResults]
	}
	return res, nil
}

func (f *fakeIndex) Fetch(_ context.Context, url string) (types.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[url]++
	if f.fetches[url] <= f.fetchFailures[url] {
		return types.Entry{}, fmt.Errorf("%w: transient failure %d", types.ErrFetch, f.fetches[url])
	}
	rec, ok := f.records[url]
	if !ok {
		return types.Entry{}, fmt.Errorf("%w: no record at %s", types.ErrFetch, url)
	}
	return rec.Clone(), nil
}

func (f *fakeIndex) fetchCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[url]
}

// addMatch registers entry's query with the given candidates.
func (f *fakeIndex) addMatch(entry types.Entry, cands ...types.Candidate) {
	f.results[BuildQuery(entry)] = types.SearchResult{Total: len(cands), Candidates: cands}
}

func sourceEntry(key, title string, authors ...string) types.Entry {
	return types.Entry{
		Key:     key,
		Type:    "article",
		Authors: authors,
		Fields:  map[string]string{"title": title, "year": "1999", "note": "local copy"},
	}
}

func candidate(url, venue, title string) types.Candidate {
	return types.Candidate{
		Key:     url,
		Title:   title,
		Venue:   venue,
		Authors: []string{"Richard S. Sutton"},
		URL:     url,
	}
}

func fetchedRecord(typ string, fields map[string]string) types.Entry {
	return types.Entry{
		Key:     "DBLP:some/key",
		Type:    typ,
		Authors: []string{"Richard S. Sutton", "Andrew G. Barto"},
		Editors: []string{"An Editor"},
		Fields:  fields,
	}
}

// scriptedPrompter answers with fixed choices and records its calls.
type scriptedPrompter struct {
	choices []int
	err     error
	calls   []string
}

func (p *scriptedPrompter) Choose(query string, _ []types.Candidate) (int, error) {
	p.calls = append(p.calls, query)
	if p.err != nil {
		return 0, p.err
	}
	if len(p.choices) == 0 {
		return 0, errors.New("unexpected prompt")
	}
	c := p.choices[0]
	p.choices = p.choices[1:]
	return c, nil
}
