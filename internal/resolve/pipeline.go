// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/rebib/internal/bibfile"
	"github.com/pdiddy/rebib/internal/metrics"
	"github.com/pdiddy/rebib/pkg/types"
)

// Pipeline runs a whole bibliography through resolution and writes the
// output artifacts.
type Pipeline struct {
	Config   types.ResolveConfig
	Index    Index
	Prompter Prompter
	Metrics  *metrics.Recorder
	Logger   zerolog.Logger

	// Out receives the closing summary line.
	Out io.Writer
}

// RunResult describes a completed run.
type RunResult struct {
	Started  time.Time
	Finished time.Time
	Total    int
	Partition
}

// Run loads the input, resolves every entry across the configured
// workers, settles pending entries, and writes the updated and untouched
// groups. Input parse errors and output write errors abort the run;
// per-entry failures only move entries to the untouched group.
func (p *Pipeline) Run(ctx context.Context) (RunResult, error) {
	cfg := p.Config
	res := RunResult{Started: time.Now()}

	bib, err := bibfile.LoadBibliography(cfg.Input)
	if err != nil {
		return res, err
	}
	entries := bib.Entries
	res.Total = len(entries)
	p.Logger.Info().Str("input", cfg.Input).Int("entries", len(entries)).Int("workers", cfg.Workers).Msg("resolving bibliography")

	resolver := &Resolver{
		Index:         p.Index,
		MaxResults:    cfg.MaxResults,
		Attempts:      cfg.Attempts,
		FallbackFirst: cfg.FallbackFirst,
		Metrics:       p.Metrics,
		Logger:        p.Logger,
	}
	outcomes := DispatchAll(ctx, entries, cfg.Workers, resolver.ResolveWithRetry)

	fin := &Finalizer{
		Interactive: cfg.Interactive,
		Prompter:    p.Prompter,
		Resolver:    resolver,
		Metrics:     p.Metrics,
		Logger:      p.Logger,
	}
	part, err := fin.Finalize(ctx, outcomes)
	if err != nil {
		return res, err
	}
	res.Partition = part

	out := bibfile.Outputs{Updated: cfg.Output, Untouched: cfg.UntouchedOutput}
	untouched := bibfile.Bibliography{Preamble: bib.Preamble, Entries: part.Untouched}
	if err := bibfile.Write(out, part.Updated, untouched); err != nil {
		return res, err
	}
	res.Finished = time.Now()

	if cfg.Report != "" {
		if err := WriteReport(cfg.Report, NewReport(cfg.Input, res.Started, res.Finished, part)); err != nil {
			return res, err
		}
	}

	if p.Out != nil {
		fmt.Fprintf(p.Out, "updated: %d, untouched: %d (total: %d)\n", len(part.Updated), len(part.Untouched), res.Total)
	}
	return res, nil
}
