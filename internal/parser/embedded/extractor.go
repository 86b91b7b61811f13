// Package embedded recovers SQL statements written as string expressions in
// application code and runs them through the SQL extractor.
package embedded

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ectomigo/ectomigo/internal/parser"
	"github.com/ectomigo/ectomigo/internal/parser/sql"
	"github.com/ectomigo/ectomigo/internal/parser/sqlutil"
)

// Extractor finds embedded SQL in host-language parse trees.
type Extractor struct {
	sql    *sql.Extractor
	hosts  map[parser.Language]*host
	logger *slog.Logger
}

type host struct {
	hostSyntax
	compiled []*parser.Query
}

// New compiles the string queries of every supported host language. A query
// the grammar rejects is logged and skipped.
func New(g *parser.Grammars, sqlExtractor *sql.Extractor, logger *slog.Logger) (*Extractor, error) {
	e := &Extractor{sql: sqlExtractor, hosts: make(map[parser.Language]*host), logger: logger}
	for lang, syntax := range hostSyntaxes {
		tsLang, err := g.Language(lang)
		if err != nil {
			return nil, err
		}
		h := &host{hostSyntax: syntax}
		for _, pattern := range syntax.queries {
			q, err := parser.NewQuery(tsLang, pattern)
			if err != nil {
				logger.Warn("embedded sql query rejected by grammar",
					slog.String("language", string(lang)),
					slog.String("error", err.Error()))
				continue
			}
			h.compiled = append(h.compiled, q)
		}
		e.hosts[lang] = h
	}
	return e, nil
}

// Supports reports whether embedded SQL is searched for in lang.
func (e *Extractor) Supports(lang parser.Language) bool {
	_, ok := e.hosts[lang]
	return ok
}

// Extract returns invocation records for every SQL statement embedded in the
// file. Positions refer to the host file.
func (e *Extractor) Extract(ctx context.Context, file parser.FileInput, tree *sitter.Tree) ([]parser.Invocation, error) {
	h, ok := e.hosts[file.Language]
	if !ok {
		return nil, nil
	}

	var out []parser.Invocation
	for _, m := range h.statements(tree.RootNode(), file.Content) {
		anchor := m.Anchor()
		text := h.reconstruct(m, file.Content)
		refs, err := e.sql.Extract(ctx, file.Path, []byte(text), parser.Offset{Row: int(anchor.StartPoint().Row)})
		if err != nil {
			return nil, err
		}
		out = append(out, refs...)
	}
	return out, nil
}

// statements runs the host queries and keeps one match per starting
// position: the one with the most captures, or the first found on a tie.
// Matches are returned in document order.
func (h *host) statements(root *sitter.Node, src []byte) []parser.Match {
	type kept struct {
		match parser.Match
		start sitter.Point
	}
	byPos := make(map[sitter.Point]int)
	var matches []kept

	for _, q := range h.compiled {
		for _, m := range q.Matches(root, src) {
			anchor := m.Anchor()
			if !sqlutil.StartsWithStatement(anchor.Content(src)) {
				continue
			}
			pos := anchor.StartPoint()
			if i, ok := byPos[pos]; ok {
				if len(m.Captures) > len(matches[i].match.Captures) {
					matches[i].match = m
				}
				continue
			}
			byPos[pos] = len(matches)
			matches = append(matches, kept{match: m, start: pos})
		}
	}

	slices.SortStableFunc(matches, func(a, b kept) int {
		if c := cmp.Compare(a.start.Row, b.start.Row); c != 0 {
			return c
		}
		return cmp.Compare(a.start.Column, b.start.Column)
	})

	out := make([]parser.Match, 0, len(matches))
	for _, k := range matches {
		out = append(out, k.match)
	}
	return out
}
