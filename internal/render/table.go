// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render draws the tables and highlighted lines shown to the
// operator.
package render

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Align selects the alignment of a table column.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

var (
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
)

// Table renders rows under headers with rounded borders. Short rows are
// padded with empty cells.
func Table(headers []string, rows [][]string, aligns []Align) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// Heading returns s styled as a section heading, or s unchanged when
// styled is false.
func Heading(s string, styled bool) string {
	if !styled {
		return s
	}
	return headingStyle.Render(s)
}

// Warn returns s styled as a warning, or s unchanged when styled is false.
func Warn(s string, styled bool) string {
	if !styled {
		return s
	}
	return warnStyle.Render(s)
}
