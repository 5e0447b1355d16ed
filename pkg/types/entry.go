// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the rebib pipeline:
// bibliography entries, index candidates, per-entry outcomes, and the
// configuration consumed by the resolve stage.
package types

import "strings"

// Entry is a single bibliographic record. Person lists are kept apart from
// the field map, so Fields never contains "author" or "editor".
type Entry struct {
	// Key is the citation key (e.g. "sutton1988learning").
	Key string `json:"key" yaml:"key"`

	// Type is the entry type without the leading "@" (e.g. "inproceedings").
	Type string `json:"type" yaml:"type"`

	// Authors lists author display names in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Editors lists editor display names. Resolved records never carry editors.
	Editors []string `json:"editors,omitempty" yaml:"editors,omitempty"`

	// Fields maps lower-case field names to their values.
	Fields map[string]string `json:"fields" yaml:"fields"`

	// Raw is the entry's text as read from a source file, written back
	// verbatim when the entry is left untouched. Entries built or edited in
	// memory leave it empty.
	Raw string `json:"-" yaml:"-"`
}

// Title returns the title field, or "" if the entry has none.
func (e Entry) Title() string {
	return e.Fields["title"]
}

// FirstAuthor returns the first author, or "" if the entry has no authors.
func (e Entry) FirstAuthor() string {
	if len(e.Authors) == 0 {
		return ""
	}
	return e.Authors[0]
}

// Clone returns a deep copy so callers can modify the result freely.
func (e Entry) Clone() Entry {
	c := Entry{Key: e.Key, Type: e.Type, Raw: e.Raw}
	if e.Authors != nil {
		c.Authors = append([]string(nil), e.Authors...)
	}
	if e.Editors != nil {
		c.Editors = append([]string(nil), e.Editors...)
	}
	c.Fields = make(map[string]string, len(e.Fields))
	for k, v := range e.Fields {
		c.Fields[k] = v
	}
	return c
}

// PreprintVenue is the venue DBLP assigns to arXiv listings (CoRR).
const PreprintVenue = "CoRR"

// Candidate is a publication returned by an index search. It is not yet
// the authoritative record; the full record is fetched from URL.
type Candidate struct {
	// Key is the index's own record key (e.g. "conf/icml/SuttonB88").
	Key string `json:"key" yaml:"key"`

	// Title is the publication title as returned by the index.
	Title string `json:"title" yaml:"title"`

	// Venue is the journal or conference short name. PreprintVenue marks arXiv.
	Venue string `json:"venue" yaml:"venue"`

	// Year is the publication year as a string.
	Year string `json:"year,omitempty" yaml:"year,omitempty"`

	// Authors lists author names in index order.
	Authors []string `json:"authors" yaml:"authors"`

	// URL addresses the full record; the BibTeX form lives at URL + ".bib".
	URL string `json:"url" yaml:"url"`
}

// IsPreprint reports whether the candidate is a preprint listing.
func (c Candidate) IsPreprint() bool {
	return c.Venue == PreprintVenue
}

// Summary returns a one-line human-readable description: joined author
// names, venue, and title.
func (c Candidate) Summary() string {
	return strings.Join(c.Authors, ", ") + ". " + c.Venue + ". " + c.Title
}

// SearchResult is a ranked index response.
type SearchResult struct {
	// Total is the number of matches the index reported, which may exceed
	// len(Candidates) when results were capped.
	Total int `json:"total" yaml:"total"`

	// Candidates holds the returned hits in relevance order.
	Candidates []Candidate `json:"candidates" yaml:"candidates"`
}
