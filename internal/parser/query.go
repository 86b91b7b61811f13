package parser

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Query is a compiled structural pattern. Compiled queries are immutable and
// may be shared between goroutines; each Matches call uses its own cursor.
type Query struct {
	q *sitter.Query
}

// NewQuery compiles pattern for lang.
func NewQuery(lang *sitter.Language, pattern string) (*Query, error) {
	q, err := sitter.NewQuery([]byte(pattern), lang)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}
	return &Query{q: q}, nil
}

// Capture is a single named node within a match.
type Capture struct {
	Name string
	Node *sitter.Node
}

// Match is one successful application of a query, captures in match order.
type Match struct {
	Pattern  int
	Captures []Capture
}

// Anchor returns the first captured node, which locates the match.
func (m Match) Anchor() *sitter.Node {
	if len(m.Captures) == 0 {
		return nil
	}
	return m.Captures[0].Node
}

// Node returns the first node captured under name, or nil.
func (m Match) Node(name string) *sitter.Node {
	for _, c := range m.Captures {
		if c.Name == name {
			return c.Node
		}
	}
	return nil
}

// All returns every node captured under name.
func (m Match) All(name string) []*sitter.Node {
	var nodes []*sitter.Node
	for _, c := range m.Captures {
		if c.Name == name {
			nodes = append(nodes, c.Node)
		}
	}
	return nodes
}

// Matches runs the query against node and returns every match whose
// predicates hold.
func (q *Query) Matches(node *sitter.Node, src []byte) []Match {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q.q, node)

	var out []Match
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		m = qc.FilterPredicates(m, src)
		if len(m.Captures) == 0 {
			continue
		}
		match := Match{Pattern: int(m.PatternIndex), Captures: make([]Capture, 0, len(m.Captures))}
		for _, c := range m.Captures {
			match.Captures = append(match.Captures, Capture{
				Name: q.q.CaptureNameForId(c.Index),
				Node: c.Node,
			})
		}
		out = append(out, match)
	}
	return out
}
