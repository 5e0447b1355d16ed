// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import "github.com/pdiddy/rebib/pkg/types"

// SelectionKind classifies the result of Disambiguate.
type SelectionKind int

const (
	// Ambiguous means no candidate could be chosen without an operator.
	Ambiguous SelectionKind = iota

	// Unique means the index returned a single candidate.
	Unique

	// PreprintPreferred means exactly one of two candidates is published
	// and the other is a preprint listing of the same work.
	PreprintPreferred
)

func (k SelectionKind) String() string {
	switch k {
	case Unique:
		return "unique"
	case PreprintPreferred:
		return "preprint-preferred"
	default:
		return "ambiguous"
	}
}

// Selection is the outcome of Disambiguate. Candidate is set for Unique
// and PreprintPreferred; Candidates holds the full list for Ambiguous.
type Selection struct {
	Kind       SelectionKind
	Candidate  types.Candidate
	Candidates []types.Candidate
}

// Disambiguate picks a candidate without network access. A single
// candidate is taken as is. Of exactly two candidates where only one is a
// preprint listing, the published one wins. Every other case is returned
// as Ambiguous with the full list. Callers must not pass an empty list.
func Disambiguate(cands []types.Candidate) Selection {
	if len(cands) == 1 {
		return Selection{Kind: Unique, Candidate: cands[0]}
	}

	if len(cands) == 2 {
		var published []types.Candidate
		for _, c := range cands {
			if !c.IsPreprint() {
				published = append(published, c)
			}
		}
		if len(published) == 1 {
			return Selection{Kind: PreprintPreferred, Candidate: published[0]}
		}
	}

	return Selection{Kind: Ambiguous, Candidates: cands}
}
