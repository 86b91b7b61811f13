package embedded

import (
	"bytes"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ectomigo/ectomigo/internal/parser"
	"github.com/ectomigo/ectomigo/internal/parser/sqlutil"
)

var (
	// openingQuote is a string prefix such as f, rb, @ or $@ and its quote run.
	openingQuote = regexp.MustCompile("^[a-zA-Z@$]{0,3}[`'\"]+")
	closingQuote = regexp.MustCompile("[`'\"]+$")
	// escapedNewline matches the two-character escapes \n and \r.
	escapedNewline = regexp.MustCompile(`\\[nr]`)
)

// fragment is one string literal to be placed on the canvas.
type fragment struct {
	text  []byte
	start sitter.Point
	// interpolations are byte ranges within text, with whether they span lines.
	interpolations []interpolation
}

type interpolation struct {
	from, to  int
	multiline bool
}

// reconstruct lays the fragments of m out on a canvas whose rows and columns
// match the host file, starting at the row of the match anchor, and
// normalizes parameter placeholders.
func (h *host) reconstruct(m parser.Match, src []byte) string {
	var frags []fragment
	for _, c := range m.Captures {
		if !strings.HasPrefix(c.Name, "str") {
			continue
		}
		for _, leaf := range h.leafNodes(c.Node) {
			frags = append(frags, h.newFragment(leaf, src))
		}
	}
	return sqlutil.NormalizePlaceholders(layout(m.Anchor().StartPoint().Row, frags))
}

// leafNodes expands a captured expression into the string literals it
// concatenates, in document order. Non-string operands are dropped.
func (h *host) leafNodes(n *sitter.Node) []*sitter.Node {
	if h.leaves[n.Type()] {
		return []*sitter.Node{n}
	}
	if !h.composites[n.Type()] {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, h.leafNodes(n.NamedChild(i))...)
	}
	return out
}

func (h *host) newFragment(leaf *sitter.Node, src []byte) fragment {
	f := fragment{
		text:  bytes.Clone(src[leaf.StartByte():leaf.EndByte()]),
		start: leaf.StartPoint(),
	}
	if len(h.interpolations) == 0 {
		return f
	}
	base := int(leaf.StartByte())
	parser.WalkTree(leaf, func(n *sitter.Node) bool {
		if n == leaf || !h.interpolations[n.Type()] {
			return true
		}
		f.interpolations = append(f.interpolations, interpolation{
			from:      int(n.StartByte()) - base,
			to:        int(n.EndByte()) - base,
			multiline: n.StartPoint().Row != n.EndPoint().Row,
		})
		return false
	})
	return f
}

// layout writes fragments onto a canvas beginning at row, padding each one
// to its source column and separating rows with newlines.
func layout(row uint32, frags []fragment) string {
	var b strings.Builder
	col := 0
	for _, f := range frags {
		if f.start.Row > row {
			b.WriteString(strings.Repeat("\n", int(f.start.Row-row)))
			row = f.start.Row
			col = 0
		}
		if pad := int(f.start.Column) - col; pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
			col += pad
		}

		text := clean(f)
		b.WriteString(text)
		if nl := strings.LastIndexByte(text, '\n'); nl >= 0 {
			row += uint32(strings.Count(text, "\n"))
			col = len(text) - nl - 1
		} else {
			col += len(text)
		}
	}
	return b.String()
}

// clean erases interpolations and quoting from a fragment without moving
// any character that remains, then drops escaped newlines.
func clean(f fragment) string {
	text := bytes.Clone(f.text)
	for _, in := range f.interpolations {
		eraseInterpolation(text, in)
	}
	text = blank(text, openingQuote)
	text = blank(text, closingQuote)
	return escapedNewline.ReplaceAllString(string(text), "")
}

// eraseInterpolation overwrites an interpolated expression in place: with
// digits when it sits on one line, otherwise with spaces that keep its line
// breaks.
func eraseInterpolation(text []byte, in interpolation) {
	for i := in.from; i < in.to && i < len(text); i++ {
		switch {
		case text[i] == '\n' || text[i] == '\r':
		case in.multiline:
			text[i] = ' '
		default:
			text[i] = '0'
		}
	}
}

// blank replaces the first match of re with spaces of equal length.
func blank(text []byte, re *regexp.Regexp) []byte {
	loc := re.FindIndex(text)
	if loc == nil {
		return text
	}
	for i := loc[0]; i < loc[1]; i++ {
		text[i] = ' '
	}
	return text
}
