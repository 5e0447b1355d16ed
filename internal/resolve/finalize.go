// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pdiddy/rebib/internal/metrics"
	"github.com/pdiddy/rebib/pkg/types"
)

// Prompter asks an operator to choose among candidates. It returns the
// 1-based index of the chosen candidate, or 0 to skip the entry.
type Prompter interface {
	Choose(query string, cands []types.Candidate) (int, error)
}

// Finalizer settles pending outcomes and partitions the batch.
type Finalizer struct {
	// Interactive enables Prompter for pending outcomes. When false every
	// pending outcome fails without prompting.
	Interactive bool
	Prompter    Prompter

	// Resolver fetches and normalizes operator selections.
	Resolver *Resolver

	Metrics *metrics.Recorder
	Logger  zerolog.Logger
}

// Partition is the final split of a batch. Outcomes holds the settled
// outcome of every entry in input order.
type Partition struct {
	Updated   []types.Entry
	Untouched []types.Entry
	Outcomes  []types.Outcome
}

// Finalize settles each pending outcome in order, then splits all
// outcomes into updated records and untouched source entries, preserving
// relative order. Info messages are logged as outcomes are partitioned.
// Only prompter errors abort; per-entry fetch failures leave the entry
// untouched.
func (f *Finalizer) Finalize(ctx context.Context, outcomes []types.Outcome) (Partition, error) {
	settled := make([]types.Outcome, len(outcomes))
	for i, o := range outcomes {
		if o.Status != types.StatusPending {
			settled[i] = o
			continue
		}
		s, err := f.settle(ctx, o)
		if err != nil {
			return Partition{}, err
		}
		settled[i] = s
	}

	p := Partition{Outcomes: settled}
	for _, o := range settled {
		updated := o.Status == types.StatusSucceeded
		if updated {
			p.Updated = append(p.Updated, *o.Record)
			f.Metrics.Entry("updated")
		} else {
			p.Untouched = append(p.Untouched, o.Source)
			f.Metrics.Entry("untouched")
		}
		if o.Info == "" {
			continue
		}
		if updated {
			f.Logger.Info().Str("key", o.Source.Key).Msg(o.Info)
		} else {
			f.Logger.Warn().Str("key", o.Source.Key).Msg(o.Info)
		}
	}
	return p, nil
}

func (f *Finalizer) settle(ctx context.Context, o types.Outcome) (types.Outcome, error) {
	if !f.Interactive || f.Prompter == nil {
		return types.Failed(o.Source, fmt.Sprintf("%d candidates for %s; left untouched", len(o.Candidates), o.Query)), nil
	}

	choice, err := f.Prompter.Choose(o.Query, o.Candidates)
	if err != nil {
		return types.Outcome{}, fmt.Errorf("prompting for %s: %w", o.Source.Key, err)
	}
	if choice <= 0 || choice > len(o.Candidates) {
		return types.Failed(o.Source, "skipped by operator"), nil
	}

	rec, warning, err := f.Resolver.Select(ctx, o.Source, o.Candidates[choice-1])
	if err != nil {
		return types.Failed(o.Source, err.Error()), nil
	}
	return types.Succeeded(o.Source, rec, warning), nil
}
