// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/rebib/internal/dblp"
	"github.com/pdiddy/rebib/internal/ledger"
	"github.com/pdiddy/rebib/internal/logging"
	"github.com/pdiddy/rebib/internal/metrics"
	"github.com/pdiddy/rebib/internal/resolve"
	"github.com/pdiddy/rebib/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [input.bib]",
	Short: "Replace bibliography entries with their DBLP records",
	Long: `Resolve searches DBLP for every entry of the input bibliography using its
title and first author. Entries with a single match, or with one published
match and one CoRR preprint, are replaced by the fetched DBLP record.
Entries with several plausible matches are offered to the operator in
--interactive mode and left untouched otherwise.

Updated entries are written to --output. Untouched entries follow a
separator comment in the same file, or go to --untouched-output.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResolve,
}

// resolveFlags maps config keys under "resolve" to flag names.
var resolveFlags = map[string]string{
	"input":            "input",
	"output":           "output",
	"untouched_output": "untouched-output",
	"workers":          "workers",
	"interactive":      "interactive",
	"fallback_first":   "fallback-first",
	"format":           "format",
	"max_results":      "max-results",
	"attempts":         "attempts",
	"timeout":          "timeout",
	"rate_limit":       "rate-limit",
	"user_agent":       "user-agent",
	"report":           "report",
	"ledger":           "ledger",
	"metrics_file":     "metrics-file",
}

func init() {
	d := types.DefaultResolveConfig()
	f := resolveCmd.Flags()
	f.String("input", "", "input bibliography (or pass it as the argument)")
	f.StringP("output", "o", "", "output file for updated entries (default: <input>2.bib)")
	f.String("untouched-output", "", "separate file for untouched entries")
	f.IntP("workers", "j", d.Workers, "concurrent resolutions; 1 resolves sequentially")
	f.BoolP("interactive", "i", false, "ask which candidate to use when several match")
	f.Bool("fallback-first", false, "use the first candidate, with a warning, when several match")
	f.String("format", d.Format, "output format")
	f.Int("max-results", d.MaxResults, "candidates requested per search")
	f.Int("attempts", d.Attempts, "resolution attempts per entry")
	f.Duration("timeout", d.Timeout, "per-request HTTP timeout")
	f.Float64("rate-limit", d.RateLimit, "DBLP requests per second across all workers (0 disables)")
	f.String("user-agent", d.UserAgent, "User-Agent sent to DBLP")
	f.String("report", "", "write a YAML report of every entry's outcome")
	f.String("ledger", "", "SQLite database recording run history")
	f.String("metrics-file", "", "write Prometheus metrics in text format")

	for key, name := range resolveFlags {
		viper.BindPFlag("resolve."+key, f.Lookup(name))
	}

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	root, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := root.Resolve
	if len(args) == 1 {
		cfg.Input = args[0]
	}
	if cfg.Output == "" && cfg.Input != "" {
		cfg.Output = defaultOutput(cfg.Input)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Interactive && cfg.FallbackFirst {
		logger.Warn().Msg("--fallback-first resolves ambiguous entries before the prompt; --interactive will not be consulted")
	}
	if cfg.Interactive && !logging.IsTerminal(os.Stdin) {
		logger.Warn().Msg("interactive mode requested but stdin is not a terminal")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var rec *metrics.Recorder
	if cfg.MetricsFile != "" {
		rec = metrics.New()
	}

	p := &resolve.Pipeline{
		Config:   cfg,
		Index:    dblp.NewClient(cfg.HTTPConfig, rec),
		Prompter: resolve.NewConsolePrompter(os.Stdin, cmd.OutOrStdout(), logging.IsTerminal(os.Stdout)),
		Metrics:  rec,
		Logger:   logger,
		Out:      cmd.OutOrStdout(),
	}

	res, err := p.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.Ledger != "" {
		if err := recordRun(ctx, cfg, res); err != nil {
			return err
		}
	}
	if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
		return err
	}
	return nil
}

func recordRun(ctx context.Context, cfg types.ResolveConfig, res resolve.RunResult) error {
	l, err := ledger.Open(cfg.Ledger)
	if err != nil {
		return err
	}
	defer l.Close()

	id, err := l.RecordRun(ctx, ledger.Run{
		Input:     cfg.Input,
		Started:   res.Started,
		Finished:  res.Finished,
		Updated:   len(res.Updated),
		Untouched: len(res.Untouched),
	}, ledger.EntryRecords(res.Outcomes))
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	logger.Info().Str("run", id).Str("ledger", cfg.Ledger).Msg("run recorded")
	return nil
}

// defaultOutput places the output beside the input: ref.bib -> ref2.bib.
func defaultOutput(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "2" + ext
}
