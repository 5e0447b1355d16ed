// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bibfile reads and writes BibTeX bibliographies. A source scanner
// splits the input into top-level blocks, keeping each entry's original
// text; tokenizing is delegated to github.com/nickng/bibtex. Parsed
// entries are mapped onto types.Entry with person lists split, untouched
// entries are written back from their source text, and new entries are
// serialized with a stable field order.
package bibfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/nickng/bibtex"

	"github.com/pdiddy/rebib/pkg/types"
)

// personFields are split into person lists rather than stored as fields.
var personFields = map[string]bool{"author": true, "editor": true}

// fieldOrder controls serialization order. Fields not listed follow in
// alphabetical order.
var fieldOrder = []string{
	"title", "booktitle", "journal", "school", "volume", "number",
	"pages", "year", "publisher",
}

// Bibliography is a parsed source file.
type Bibliography struct {
	// Preamble holds the source text of every @string, @preamble, and
	// @comment block in order. Untouched entries may depend on it.
	Preamble []string

	Entries []types.Entry
}

// bibtex.Parse keeps its parser state in package globals.
var parseMu sync.Mutex

// Read parses every block in r. Syntax errors, undefined string macros,
// and entries the tokenizer fails to return all wrap types.ErrParse.
func Read(r io.Reader) (Bibliography, error) {
	var out Bibliography

	data, err := io.ReadAll(r)
	if err != nil {
		return out, err
	}
	blocks, err := scanBlocks(string(data))
	if err != nil {
		return out, err
	}

	var (
		clean   strings.Builder
		heads   []block
		macros  = macroTable{}
		expands = map[int]map[string]string{}
	)
	for _, b := range blocks {
		if b.kind != blockEntry {
			out.Preamble = append(out.Preamble, b.raw)
		}
		if b.kind == blockComment {
			continue
		}

		// Every macro must resolve before tokenizing: the tokenizer exits
		// the process on an undefined one.
		for _, f := range b.fields {
			v, err := macros.expand(f)
			if err != nil {
				return out, fmt.Errorf("%w: line %d: %v", types.ErrParse, b.line, err)
			}
			switch {
			case b.kind == blockString:
				macros[b.key] = v
			case b.kind == blockEntry && f.composite():
				if expands[len(heads)] == nil {
					expands[len(heads)] = map[string]string{}
				}
				expands[len(heads)][strings.ToLower(f.name)] = v
			}
		}

		clean.WriteString(b.braced())
		clean.WriteString("\n")
		if b.kind == blockEntry {
			heads = append(heads, b)
		}
	}

	bib, err := parseLocked(clean.String())
	if err != nil {
		return out, fmt.Errorf("%w: %v", types.ErrParse, err)
	}
	if len(bib.Entries) != len(heads) {
		return out, fmt.Errorf("%w: %d entries in source, tokenizer returned %d", types.ErrParse, len(heads), len(bib.Entries))
	}

	out.Entries = make([]types.Entry, 0, len(heads))
	for i, be := range bib.Entries {
		e := fromBibEntry(be, expands[i])
		if e.Key != heads[i].key {
			return out, fmt.Errorf("%w: line %d: entry %q tokenized as %q", types.ErrParse, heads[i].line, heads[i].key, e.Key)
		}
		e.Raw = heads[i].raw
		out.Entries = append(out.Entries, e)
	}
	return out, nil
}

func parseLocked(src string) (*bibtex.BibTex, error) {
	parseMu.Lock()
	defer parseMu.Unlock()
	return bibtex.Parse(strings.NewReader(src))
}

// Parse reads every entry from r. See Read.
func Parse(r io.Reader) ([]types.Entry, error) {
	bib, err := Read(r)
	if err != nil {
		return nil, err
	}
	return bib.Entries, nil
}

// ParseRecord parses data that must hold exactly one entry, as returned by
// an index record fetch.
func ParseRecord(data []byte) (types.Entry, error) {
	entries, err := Parse(bytes.NewReader(data))
	if err != nil {
		return types.Entry{}, err
	}
	if len(entries) != 1 {
		return types.Entry{}, fmt.Errorf("expected exactly one record, got %d", len(entries))
	}
	return entries[0], nil
}

// Load reads the entries of the input bibliography at path. See
// LoadBibliography.
func Load(path string) ([]types.Entry, error) {
	bib, err := LoadBibliography(path)
	if err != nil {
		return nil, err
	}
	return bib.Entries, nil
}

// LoadBibliography reads the input bibliography at path. Every entry must
// have a unique key, a title, and at least one author; otherwise the whole
// file is rejected with an error wrapping types.ErrParse.
func LoadBibliography(path string) (Bibliography, error) {
	f, err := os.Open(path)
	if err != nil {
		return Bibliography{}, fmt.Errorf("opening bibliography %s: %w", path, err)
	}
	defer f.Close()

	bib, err := Read(f)
	if err != nil {
		return Bibliography{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	seen := make(map[string]bool, len(bib.Entries))
	for _, e := range bib.Entries {
		switch {
		case e.Key == "":
			return Bibliography{}, fmt.Errorf("%w: %s: entry without a key", types.ErrParse, path)
		case seen[e.Key]:
			return Bibliography{}, fmt.Errorf("%w: %s: duplicate key %q", types.ErrParse, path, e.Key)
		case e.Title() == "":
			return Bibliography{}, fmt.Errorf("%w: %s: entry %q has no title", types.ErrParse, path, e.Key)
		case len(e.Authors) == 0:
			return Bibliography{}, fmt.Errorf("%w: %s: entry %q has no author", types.ErrParse, path, e.Key)
		}
		seen[e.Key] = true
	}
	return bib, nil
}

// fromBibEntry maps a tokenized entry. expanded overrides the values of
// fields that use string macros or concatenation.
func fromBibEntry(be *bibtex.BibEntry, expanded map[string]string) types.Entry {
	e := types.Entry{
		Key:    strings.TrimSpace(be.CiteName),
		Type:   strings.ToLower(strings.TrimSpace(be.Type)),
		Fields: make(map[string]string, len(be.Fields)),
	}
	for name, value := range be.Fields {
		if value == nil {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		text := value.String()
		if v, ok := expanded[name]; ok {
			text = v
		}
		text = collapseSpace(text)
		switch name {
		case "author":
			e.Authors = SplitPersons(text)
		case "editor":
			e.Editors = SplitPersons(text)
		default:
			e.Fields[name] = text
		}
	}
	return e
}

// SplitPersons splits a BibTeX name list on the "and" separator, ignoring
// separators nested inside braces.
func SplitPersons(s string) []string {
	var (
		names []string
		depth int
		start int
	)
	words := strings.Fields(s)
	for i, w := range words {
		if depth == 0 && strings.EqualFold(w, "and") && i > start {
			names = append(names, strings.Join(words[start:i], " "))
			start = i + 1
			continue
		}
		depth += strings.Count(w, "{") - strings.Count(w, "}")
		if depth < 0 {
			depth = 0
		}
	}
	if start < len(words) {
		names = append(names, strings.Join(words[start:], " "))
	}
	return names
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Format serializes one entry as BibTeX text terminated by a blank line.
// An entry read from a source file is written back as its source text.
func Format(e types.Entry) string {
	if e.Raw != "" {
		return e.Raw + "\n\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "@%s{%s,\n", e.Type, e.Key)
	if len(e.Authors) > 0 {
		fmt.Fprintf(&b, "  author = {%s},\n", strings.Join(e.Authors, " and "))
	}
	if len(e.Editors) > 0 {
		fmt.Fprintf(&b, "  editor = {%s},\n", strings.Join(e.Editors, " and "))
	}
	for _, name := range orderedFields(e.Fields) {
		fmt.Fprintf(&b, "  %s = {%s},\n", name, e.Fields[name])
	}
	b.WriteString("}\n\n")
	return b.String()
}

func orderedFields(fields map[string]string) []string {
	rank := make(map[string]int, len(fieldOrder))
	for i, name := range fieldOrder {
		rank[name] = i
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		if personFields[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, iok := rank[names[i]]
		rj, jok := rank[names[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		case jok:
			return false
		default:
			return names[i] < names[j]
		}
	})
	return names
}

// WriteEntries serializes entries to w in order.
func WriteEntries(w io.Writer, entries []types.Entry) error {
	for _, e := range entries {
		if _, err := io.WriteString(w, Format(e)); err != nil {
			return err
		}
	}
	return nil
}
