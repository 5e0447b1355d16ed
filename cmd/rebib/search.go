// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/rebib/internal/dblp"
	"github.com/pdiddy/rebib/internal/render"
	"github.com/pdiddy/rebib/internal/resolve"
	"github.com/pdiddy/rebib/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search DBLP and list the candidates",
	Long: `Search runs one free-text DBLP query, the same query resolve would send
for an entry, and prints the ranked candidates with the choice resolve
would make without an operator.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntP("max-results", "n", 2, "number of candidates to request")
	searchCmd.Flags().Bool("json", false, "print the result as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	root, err := loadConfig()
	if err != nil {
		return err
	}
	maxResults, _ := cmd.Flags().GetInt("max-results")
	asJSON, _ := cmd.Flags().GetBool("json")
	query := strings.Join(args, " ")

	client := dblp.NewClient(root.Resolve.HTTPConfig, nil)
	res, err := client.Search(cmd.Context(), query, maxResults)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if len(res.Candidates) == 0 {
		fmt.Fprintf(out, "no DBLP match: %s\n", query)
		return nil
	}
	fmt.Fprintln(out, candidateTable(res.Candidates))
	fmt.Fprintf(out, "%d of %d matches shown; %s\n", len(res.Candidates), res.Total, selectionNote(res.Candidates))
	return nil
}

func candidateTable(cands []types.Candidate) string {
	rows := make([][]string, 0, len(cands))
	for i, c := range cands {
		rows = append(rows, []string{
			fmt.Sprint(i + 1), c.Title, c.Venue, c.Year, strings.Join(c.Authors, ", "), c.URL,
		})
	}
	return render.Table(
		[]string{"#", "Title", "Venue", "Year", "Authors", "URL"},
		rows,
		[]render.Align{render.AlignRight},
	)
}

func selectionNote(cands []types.Candidate) string {
	sel := resolve.Disambiguate(cands)
	if sel.Kind == resolve.Ambiguous {
		return "ambiguous, resolve would ask the operator"
	}
	return fmt.Sprintf("%s, resolve would use %s", sel.Kind, sel.Candidate.URL)
}
