// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibfile

import (
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/rebib/pkg/types"
)

type blockKind int

const (
	blockEntry blockKind = iota
	blockString
	blockPreamble
	blockComment
)

// block is one top-level "@type{...}" construct as it appears in the
// source. raw runs from the '@' to the closing delimiter inclusive.
type block struct {
	kind blockKind
	line int
	raw  string

	// open is the offset of the opening delimiter within raw; paren marks
	// the "@type(...)" form.
	open  int
	paren bool

	// key is the citation key of an entry, or the name of a @string.
	key string

	// fields holds entry fields in source order. A @string carries its
	// definition as a single field; a @preamble as a single unnamed one.
	fields []field
}

type field struct {
	name     string
	operands []operand
}

// composite reports whether the value needs macro expansion or
// concatenation rather than a single literal.
func (f field) composite() bool {
	return len(f.operands) != 1 || f.operands[0].macro
}

// operand is one piece of a "#"-joined value. Braced text keeps its inner
// braces; quoted text drops them, as the tokenizer does.
type operand struct {
	text  string
	macro bool
}

// scanBlocks splits src into its top-level blocks. Anything between
// blocks is ignored, and a '%' there starts a comment running to the end
// of the line, so an '@' inside such a comment does not open a block.
func scanBlocks(src string) ([]block, error) {
	var blocks []block
	for i := 0; i < len(src); {
		switch src[i] {
		case '%':
			if nl := strings.IndexByte(src[i:], '\n'); nl >= 0 {
				i += nl + 1
			} else {
				i = len(src)
			}
			continue
		case '@':
		default:
			i++
			continue
		}

		b, next, err := scanBlock(src, i)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
		i = next
	}
	return blocks, nil
}

// scanBlock reads the block starting at the '@' at src[start] and returns
// it with the offset just past its closing delimiter.
func scanBlock(src string, start int) (block, int, error) {
	b := block{line: lineAt(src, start)}

	i := start + 1
	for i < len(src) && isIdentByte(src[i]) {
		i++
	}
	typ := strings.ToLower(src[start+1 : i])
	if typ == "" {
		return b, 0, fmt.Errorf("%w: line %d: '@' not followed by an entry type", types.ErrParse, b.line)
	}
	for i < len(src) && isSpace(src[i]) {
		i++
	}
	if i == len(src) || (src[i] != '{' && src[i] != '(') {
		return b, 0, fmt.Errorf("%w: line %d: expected '{' or '(' after @%s", types.ErrParse, b.line, typ)
	}

	b.open = i - start
	closer := byte('}')
	if src[i] == '(' {
		closer = ')'
		b.paren = true
	}
	switch typ {
	case "comment":
		b.kind = blockComment
	case "string":
		b.kind = blockString
	case "preamble":
		b.kind = blockPreamble
	default:
		b.kind = blockEntry
	}

	end := matchClose(src, i+1, closer, b.kind != blockComment)
	if end < 0 {
		return b, 0, fmt.Errorf("%w: line %d: @%s is not closed", types.ErrParse, b.line, typ)
	}
	b.raw = src[start : end+1]
	body := src[i+1 : end]

	var err error
	switch b.kind {
	case blockEntry:
		key, rest, ok := strings.Cut(body, ",")
		b.key = strings.ReplaceAll(strings.TrimSpace(key), " ", "")
		if !ok || b.key == "" {
			return b, 0, fmt.Errorf("%w: line %d: @%s has no citation key", types.ErrParse, b.line, typ)
		}
		b.fields, err = scanFields(rest)
	case blockString:
		b.fields, err = scanFields(body)
		if err == nil && len(b.fields) != 1 {
			err = fmt.Errorf("@string must define exactly one name")
		}
		if err == nil {
			b.key = b.fields[0].name
		}
	case blockPreamble:
		var ops []operand
		ops, _, err = scanValue(body, 0)
		b.fields = []field{{operands: ops}}
	}
	if err != nil {
		return b, 0, fmt.Errorf("%w: line %d: %v", types.ErrParse, b.line, err)
	}
	return b, end + 1, nil
}

// braced returns raw with the "@type(...)" form rewritten to
// "@type{...}", the only form the tokenizer accepts.
func (b block) braced() string {
	if !b.paren {
		return b.raw
	}
	return b.raw[:b.open] + "{" + b.raw[b.open+1:len(b.raw)-1] + "}"
}

// matchClose returns the offset of closer ending a block whose body
// starts at from, or -1. Braces nest; with quotes set, a '"' outside
// braces opens a string in which closer does not count.
func matchClose(src string, from int, closer byte, quotes bool) int {
	depth, quoted := 0, false
	for j := from; j < len(src); j++ {
		c := src[j]
		switch {
		case c == '{':
			depth++
		case c == '}' && depth > 0:
			depth--
		case c == '"' && quotes && depth == 0:
			quoted = !quoted
		case c == closer && depth == 0 && !quoted:
			return j
		}
	}
	return -1
}

// scanFields reads "name = value" pairs separated by commas. A trailing
// comma is allowed.
func scanFields(body string) ([]field, error) {
	var fields []field
	i := 0
	for {
		for i < len(body) && (isSpace(body[i]) || body[i] == ',') {
			i++
		}
		if i == len(body) {
			return fields, nil
		}

		eq := strings.IndexByte(body[i:], '=')
		if eq < 0 {
			return nil, fmt.Errorf("expected '=' after %q", strings.TrimSpace(body[i:]))
		}
		name := strings.TrimSpace(body[i : i+eq])
		if name == "" || strings.ContainsAny(name, "{}\",") {
			return nil, fmt.Errorf("bad field name %q", name)
		}

		ops, next, err := scanValue(body, i+eq+1)
		if err != nil {
			return nil, fmt.Errorf("field %s: %v", name, err)
		}
		fields = append(fields, field{name: name, operands: ops})

		i = next
		for i < len(body) && isSpace(body[i]) {
			i++
		}
		if i < len(body) && body[i] != ',' {
			return nil, fmt.Errorf("field %s: unexpected %q after value", name, body[i])
		}
	}
}

// scanValue reads one value starting at s[i]: operands joined by '#'. It
// stops before the ',' or end of input that follows the value.
func scanValue(s string, i int) ([]operand, int, error) {
	var ops []operand
	for {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i == len(s) {
			return nil, i, fmt.Errorf("missing value")
		}

		switch s[i] {
		case '{':
			end := matchClose(s, i+1, '}', false)
			if end < 0 {
				return nil, i, fmt.Errorf("unbalanced braces")
			}
			ops = append(ops, operand{text: s[i+1 : end]})
			i = end + 1
		case '"':
			end := matchClose(s, i+1, '"', false)
			if end < 0 {
				return nil, i, fmt.Errorf("unterminated quoted value")
			}
			text := strings.NewReplacer("{", "", "}", "").Replace(s[i+1 : end])
			ops = append(ops, operand{text: text})
			i = end + 1
		default:
			j := i
			for j < len(s) && !isSpace(s[j]) && !strings.ContainsRune(",#{}\"", rune(s[j])) {
				j++
			}
			if j == i {
				return nil, i, fmt.Errorf("unexpected %q", s[i])
			}
			word := s[i:j]
			ops = append(ops, operand{text: word, macro: !isNumber(word)})
			i = j
		}

		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i == len(s) || s[i] != '#' {
			return ops, i, nil
		}
		i++
	}
}

// monthMacros are the month abbreviations defined without a @string.
var monthMacros = func() map[string]string {
	m := make(map[string]string, 12)
	for mon := time.January; mon <= time.December; mon++ {
		m[strings.ToLower(mon.String()[:3])] = mon.String()
	}
	return m
}()

// macroTable expands @string names in source order. Names are matched
// exactly, as the tokenizer matches them.
type macroTable map[string]string

func (t macroTable) expand(f field) (string, error) {
	var b strings.Builder
	for _, op := range f.operands {
		if !op.macro {
			b.WriteString(op.text)
			continue
		}
		v, ok := t[op.text]
		if !ok {
			v, ok = monthMacros[op.text]
		}
		if !ok {
			return "", fmt.Errorf("undefined string %q", op.text)
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

func lineAt(src string, i int) int {
	return strings.Count(src[:i], "\n") + 1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
}

func isNumber(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
