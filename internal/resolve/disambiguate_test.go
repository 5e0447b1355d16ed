// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/rebib/pkg/types"
)

func TestDisambiguate(t *testing.T) {
	published := candidate("u1", "ICML", "Published")
	published2 := candidate("u2", "NeurIPS", "Also published")
	preprint := candidate("u3", types.PreprintVenue, "Preprint")
	preprint2 := candidate("u4", types.PreprintVenue, "Another preprint")

	tests := []struct {
		name     string
		cands    []types.Candidate
		wantKind SelectionKind
		wantURL  string
	}{
		{"single published", []types.Candidate{published}, Unique, "u1"},
		{"single preprint", []types.Candidate{preprint}, Unique, "u3"},
		{"preprint second", []types.Candidate{published, preprint}, PreprintPreferred, "u1"},
		{"preprint first", []types.Candidate{preprint, published}, PreprintPreferred, "u1"},
		{"two published", []types.Candidate{published, published2}, Ambiguous, ""},
		{"two preprints", []types.Candidate{preprint, preprint2}, Ambiguous, ""},
		{"three candidates", []types.Candidate{published, preprint, preprint2}, Ambiguous, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := Disambiguate(tt.cands)
			assert.Equal(t, tt.wantKind, sel.Kind, "kind %s", sel.Kind)
			if tt.wantKind == Ambiguous {
				assert.Equal(t, tt.cands, sel.Candidates)
				return
			}
			assert.Equal(t, tt.wantURL, sel.Candidate.URL)
		})
	}
}

func TestDisambiguateIsDeterministic(t *testing.T) {
	cands := []types.Candidate{candidate("u3", types.PreprintVenue, "P"), candidate("u1", "ICML", "J")}
	first := Disambiguate(cands)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Disambiguate(cands))
	}
}

func TestSelectionKindString(t *testing.T) {
	assert.Equal(t, "unique", Unique.String())
	assert.Equal(t, "preprint-preferred", PreprintPreferred.String())
	assert.Equal(t, "ambiguous", Ambiguous.String())
}
