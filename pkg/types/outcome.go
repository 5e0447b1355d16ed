// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Error categories for the resolve pipeline. Per-entry errors wrap one of
// these so callers can classify them with errors.Is.
var (
	// ErrParse marks a malformed bibliography. It aborts the run.
	ErrParse = errors.New("bibliography parse error")

	// ErrIndexQuery marks a failed or malformed index search.
	ErrIndexQuery = errors.New("index query error")

	// ErrFetch marks a failed record fetch, or a body that did not hold
	// exactly one record.
	ErrFetch = errors.New("record fetch error")

	// ErrMalformedField marks a field that could not be rewritten during
	// normalization (e.g. a preprint volume without an arXiv ID).
	ErrMalformedField = errors.New("malformed field")
)

// OutcomeStatus tags the variant held by an Outcome.
type OutcomeStatus string

const (
	StatusSucceeded OutcomeStatus = "succeeded"
	StatusFailed    OutcomeStatus = "failed"
	StatusPending   OutcomeStatus = "pending"
)

// Outcome is the per-entry result of resolution. Exactly one variant is
// populated, selected by Status:
//
//   - StatusSucceeded: Record holds the normalized replacement.
//   - StatusFailed: Source is left untouched.
//   - StatusPending: Query and Candidates await interactive resolution.
//
// Source is always the original entry. Info is an optional message
// surfaced to the operator.
type Outcome struct {
	Status     OutcomeStatus `json:"status" yaml:"status"`
	Source     Entry         `json:"source" yaml:"source"`
	Record     *Entry        `json:"record,omitempty" yaml:"record,omitempty"`
	Query      string        `json:"query,omitempty" yaml:"query,omitempty"`
	Candidates []Candidate   `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	Info       string        `json:"info,omitempty" yaml:"info,omitempty"`
}

// Succeeded builds a successful outcome carrying the resolved record.
func Succeeded(source, record Entry, info string) Outcome {
	return Outcome{Status: StatusSucceeded, Source: source, Record: &record, Info: info}
}

// Failed builds an outcome that leaves source untouched.
func Failed(source Entry, info string) Outcome {
	return Outcome{Status: StatusFailed, Source: source, Info: info}
}

// Pending builds an outcome deferred to interactive resolution.
func Pending(source Entry, query string, candidates []Candidate, info string) Outcome {
	return Outcome{Status: StatusPending, Source: source, Query: query, Candidates: candidates, Info: info}
}
