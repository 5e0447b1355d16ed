// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pdiddy/rebib/internal/render"
	"github.com/pdiddy/rebib/pkg/types"
)

// ConsolePrompter shows a numbered candidate menu on Out and reads the
// selection from In. Invalid input is re-prompted; end of input skips.
type ConsolePrompter struct {
	in     *bufio.Scanner
	out    io.Writer
	styled bool
}

// NewConsolePrompter returns a prompter reading from in and writing to
// out. styled enables terminal colors.
func NewConsolePrompter(in io.Reader, out io.Writer, styled bool) *ConsolePrompter {
	return &ConsolePrompter{in: bufio.NewScanner(in), out: out, styled: styled}
}

// Choose implements Prompter.
func (p *ConsolePrompter) Choose(query string, cands []types.Candidate) (int, error) {
	fmt.Fprintln(p.out, render.Heading("Candidates for: "+query, p.styled))

	rows := [][]string{{"0", "skip (leave untouched)"}}
	for i, c := range cands {
		rows = append(rows, []string{strconv.Itoa(i + 1), c.Summary()})
	}
	fmt.Fprintln(p.out, render.Table([]string{"#", "Candidate"}, rows, []render.Align{render.AlignRight}))

	for {
		fmt.Fprintf(p.out, "Select [0-%d]: ", len(cands))
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return 0, fmt.Errorf("reading selection: %w", err)
			}
			fmt.Fprintln(p.out)
			return 0, nil
		}
		text := strings.TrimSpace(p.in.Text())
		n, err := strconv.Atoi(text)
		if err == nil && n >= 0 && n <= len(cands) {
			return n, nil
		}
		fmt.Fprintln(p.out, render.Warn(fmt.Sprintf("invalid selection %q", text), p.styled))
	}
}
