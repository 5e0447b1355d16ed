// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/rebib/internal/ledger"
	"github.com/pdiddy/rebib/internal/render"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List runs recorded in the ledger",
	Long: `History lists resolve runs recorded with --ledger, most recent first.
With --run it shows the entries of a single run instead.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("ledger", "rebib.db", "SQLite run ledger")
	historyCmd.Flags().Int("limit", 20, "maximum runs to list (0 for all)")
	historyCmd.Flags().String("run", "", "show the entries of this run")
	historyCmd.Flags().Bool("yaml", false, "print as YAML")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("ledger")
	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetString("run")
	asYAML, _ := cmd.Flags().GetBool("yaml")

	l, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer l.Close()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if runID != "" {
		entries, err := l.Entries(ctx, runID)
		if err != nil {
			return err
		}
		if asYAML {
			return yaml.NewEncoder(out).Encode(entries)
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{e.Key, e.Status, e.Title, e.Info})
		}
		fmt.Fprintln(out, render.Table([]string{"Key", "Status", "Title", "Info"}, rows, nil))
		return nil
	}

	runs, err := l.Runs(ctx, limit)
	if err != nil {
		return err
	}
	if asYAML {
		return yaml.NewEncoder(out).Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.Started.Local().Format(time.DateTime),
			r.Input,
			fmt.Sprint(r.Updated),
			fmt.Sprint(r.Untouched),
			r.Finished.Sub(r.Started).Round(time.Second).String(),
		})
	}
	fmt.Fprintln(out, render.Table(
		[]string{"Run", "Started", "Input", "Updated", "Untouched", "Duration"},
		rows,
		[]render.Align{render.AlignLeft, render.AlignLeft, render.AlignLeft, render.AlignRight, render.AlignRight, render.AlignRight},
	))
	return nil
}
