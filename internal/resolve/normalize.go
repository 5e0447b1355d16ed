// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"fmt"
	"strings"

	"github.com/pdiddy/rebib/pkg/types"
)

// AllowedFields is the field set kept on a resolved record. Person lists
// are carried separately: authors are always kept, editors never are.
var AllowedFields = map[string]bool{
	"title":     true,
	"booktitle": true,
	"year":      true,
	"journal":   true,
	"school":    true,
}

// Preprint journal synthesis. DBLP stores CoRR volumes as "abs/<id>";
// volumes written as "arXiv:<id>" are accepted as well.
const (
	preprintVolumePrefix = "abs/"
	arxivVolumePrefix    = "arXiv:"
	preprintJournalFmt   = "arXiv preprint arXiv:%s"
	preprintJournalStart = "arXiv preprint arXiv:"
)

// Normalize restricts rec to AllowedFields, drops editors, and, when venue
// is the preprint venue, rewrites the journal from the volume field. The
// returned warning is non-empty when the volume could not be turned into
// an arXiv identifier; the journal is then omitted.
//
// Normalize is idempotent: a normalized record passes through unchanged.
func Normalize(rec types.Entry, venue string) (types.Entry, string) {
	out := types.Entry{
		Key:    rec.Key,
		Type:   rec.Type,
		Fields: make(map[string]string, len(AllowedFields)),
	}
	if rec.Authors != nil {
		out.Authors = append([]string(nil), rec.Authors...)
	}
	for name, value := range rec.Fields {
		if AllowedFields[name] {
			out.Fields[name] = value
		}
	}

	if venue != types.PreprintVenue {
		return out, ""
	}

	journal, err := preprintJournal(rec.Fields["volume"])
	switch {
	case err == nil:
		out.Fields["journal"] = journal
	case strings.HasPrefix(out.Fields["journal"], preprintJournalStart):
		// Already synthesized on an earlier pass.
	default:
		delete(out.Fields, "journal")
		return out, err.Error()
	}
	return out, ""
}

// preprintJournal builds the synthesized journal string from a preprint
// volume such as "abs/1234.5678" or "arXiv:1234.5678".
func preprintJournal(volume string) (string, error) {
	volume = strings.TrimSpace(volume)
	var id string
	switch {
	case strings.HasPrefix(volume, preprintVolumePrefix):
		id = volume[len(preprintVolumePrefix):]
	case strings.HasPrefix(volume, arxivVolumePrefix):
		id = volume[len(arxivVolumePrefix):]
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: preprint volume %q has no arXiv identifier", types.ErrMalformedField, volume)
	}
	return fmt.Sprintf(preprintJournalFmt, id), nil
}
