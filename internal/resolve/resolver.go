// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve matches bibliography entries against a publication index,
// picks a candidate, fetches its record, and normalizes it into a
// replacement entry. Batches are fanned out across workers, ambiguous
// entries are settled afterwards in a sequential pass, and the final
// outcomes are partitioned into updated and untouched groups.
package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/rebib/internal/metrics"
	"github.com/pdiddy/rebib/pkg/types"
)

// DefaultAttempts bounds ResolveWithRetry when Resolver.Attempts is unset.
const DefaultAttempts = 5

// defaultMaxResults is the number of candidates requested per search.
const defaultMaxResults = 2

// IndexRequestError is the info attached to an entry whose search failed.
const IndexRequestError = "DBLP request error"

// Index is the publication index consulted for each entry.
type Index interface {
	Search(ctx context.Context, query string, maxResults int) (types.SearchResult, error)
	Fetch(ctx context.Context, url string) (types.Entry, error)
}

// Resolver turns one source entry into an Outcome.
type Resolver struct {
	Index Index

	// MaxResults is the number of candidates requested per search.
	MaxResults int

	// Attempts bounds ResolveWithRetry.
	Attempts int

	// FallbackFirst resolves ambiguous entries to the first candidate with
	// a warning instead of leaving them pending.
	FallbackFirst bool

	Metrics *metrics.Recorder
	Logger  zerolog.Logger
}

// Resolve runs a single attempt. Errors become a Failed outcome carrying
// the error text.
func (r *Resolver) Resolve(ctx context.Context, entry types.Entry) types.Outcome {
	out, err := r.attempt(ctx, entry)
	if err != nil {
		return types.Failed(entry, err.Error())
	}
	return out
}

// ResolveWithRetry repeats the whole resolution until an attempt returns
// without error, up to Attempts times. Only the last attempt's result is
// kept. When every attempt errors the entry fails with the last error.
func (r *Resolver) ResolveWithRetry(ctx context.Context, entry types.Entry) types.Outcome {
	return r.retry(ctx, entry, r.attempt)
}

type attemptFunc func(ctx context.Context, entry types.Entry) (types.Outcome, error)

func (r *Resolver) retry(ctx context.Context, entry types.Entry, fn attemptFunc) types.Outcome {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		out, err := fn(ctx, entry)
		if err == nil {
			return out
		}
		lastErr = err
		r.Logger.Debug().Err(err).Str("key", entry.Key).Int("attempt", i).Msg("resolution attempt failed")
	}
	return types.Failed(entry, lastErr.Error())
}

// attempt performs one pass: search, disambiguate, fetch, normalize. A
// failed search or an empty result is a terminal Failed outcome. Fetch
// errors are returned so the caller can retry.
func (r *Resolver) attempt(ctx context.Context, entry types.Entry) (types.Outcome, error) {
	r.Metrics.Attempt()

	query := BuildQuery(entry)
	maxResults := r.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	res, err := r.Index.Search(ctx, query, maxResults)
	if err != nil {
		r.Logger.Debug().Err(err).Str("key", entry.Key).Msg("index search failed")
		return types.Failed(entry, IndexRequestError), nil
	}
	if len(res.Candidates) == 0 {
		return types.Failed(entry, "no DBLP match: "+query), nil
	}

	sel := Disambiguate(res.Candidates)
	if sel.Kind == Ambiguous {
		if !r.FallbackFirst {
			return types.Pending(entry, query, sel.Candidates, ""), nil
		}
		warning := fallbackWarning(query, sel.Candidates)
		rec, normWarn, err := r.Select(ctx, entry, sel.Candidates[0])
		if err != nil {
			return types.Outcome{}, err
		}
		return types.Succeeded(entry, rec, joinInfo(warning, normWarn)), nil
	}

	rec, normWarn, err := r.Select(ctx, entry, sel.Candidate)
	if err != nil {
		return types.Outcome{}, err
	}
	return types.Succeeded(entry, rec, normWarn), nil
}

// Select fetches cand's record and normalizes it under entry's key. The
// returned string is a normalization warning, if any.
func (r *Resolver) Select(ctx context.Context, entry types.Entry, cand types.Candidate) (types.Entry, string, error) {
	rec, err := r.Index.Fetch(ctx, cand.URL)
	if err != nil {
		return types.Entry{}, "", err
	}
	rec.Key = entry.Key
	normalized, warning := Normalize(rec, cand.Venue)
	if warning != "" {
		warning = entry.Key + ": " + warning
	}
	return normalized, warning, nil
}

func fallbackWarning(query string, cands []types.Candidate) string {
	if len(cands) < 2 {
		return ""
	}
	return fmt.Sprintf("Two candidates for %s: %s v.s. %s. The first one is used.",
		query, cands[0].Summary(), cands[1].Summary())
}

func joinInfo(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "; ")
}

// BuildQuery derives the free-text search query from an entry: its title
// followed by the first author's display name. "Last, First" names are
// reordered, TeX braces and escapes are dropped, and the result is
// NFKC-normalized with collapsed whitespace.
func BuildQuery(entry types.Entry) string {
	author := entry.FirstAuthor()
	if last, first, ok := strings.Cut(author, ","); ok {
		author = strings.TrimSpace(first) + " " + strings.TrimSpace(last)
	}
	q := entry.Title() + " " + author
	q = strings.NewReplacer("{", "", "}", "", "\\", "", "~", " ").Replace(q)
	q = norm.NFKC.String(q)
	return strings.Join(strings.Fields(q), " ")
}
