package sql

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ectomigo/ectomigo/internal/parser"
	"github.com/ectomigo/ectomigo/internal/parser/pgsql"
	"github.com/ectomigo/ectomigo/internal/parser/tsql"
)

// changeQueries pairs each change kind with the statement node it comes from.
var changeQueries = []struct {
	kind parser.ChangeKind
	node string
}{
	{parser.DropTable, "drop_table"},
	{parser.AlterTable, "alter_table"},
	{parser.DropView, "drop_view"},
	{parser.AlterView, "alter_view"},
}

// Matcher finds the entities a migration script alters or drops.
type Matcher struct {
	grammars *parser.Grammars
	queries  []kindQuery
	logger   *slog.Logger
}

type kindQuery struct {
	kind  parser.ChangeKind
	query *parser.Query
}

// NewMatcher compiles one query per change kind. A kind the grammar does not
// know is skipped rather than failing the whole matcher.
func NewMatcher(g *parser.Grammars, logger *slog.Logger) (*Matcher, error) {
	lang, err := g.Language(parser.LangSQL)
	if err != nil {
		return nil, err
	}
	m := &Matcher{grammars: g, logger: logger}
	for _, cq := range changeQueries {
		q, err := parser.NewQuery(lang, fmt.Sprintf(`(%s (object_reference) @ref)`, cq.node))
		if err != nil {
			logger.Warn("change kind unsupported by sql grammar",
				slog.String("kind", string(cq.kind)),
				slog.String("error", err.Error()))
			continue
		}
		m.queries = append(m.queries, kindQuery{kind: cq.kind, query: q})
	}
	if len(m.queries) == 0 {
		return nil, fmt.Errorf("no migration change queries could be compiled")
	}
	return m, nil
}

// Match returns every altered or dropped entity in src with the changes
// applied to it, in statement order.
func (m *Matcher) Match(ctx context.Context, src []byte) (*parser.Changes, error) {
	tree, err := m.grammars.Parse(ctx, parser.LangSQL, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()

	type found struct {
		entity string
		change parser.Change
		start  uint32
	}
	var all []found
	for _, kq := range m.queries {
		for _, match := range kq.query.Matches(root, src) {
			ref := match.Node("ref")
			span := parser.NodeSpan(ref, parser.Offset{})
			all = append(all, found{
				entity: QualifiedName(ref, src),
				change: parser.Change{Kind: kq.kind, X1: span.X1, Y1: span.Y1, X2: span.X2, Y2: span.Y2},
				start:  ref.StartByte(),
			})
		}
	}

	if root.HasError() {
		switch parser.DetectDialect(src) {
		case parser.DialectSQLServer:
			return tsql.MatchChanges(src), nil
		case parser.DialectPostgres:
			changes, err := pgsql.MatchChanges(src)
			if err == nil {
				return changes, nil
			}
			m.logger.Debug("postgres fallback parse failed", slog.String("error", err.Error()))
		}
	}

	// each kind is queried separately; restore document order across kinds
	slices.SortStableFunc(all, func(a, b found) int { return cmp.Compare(a.start, b.start) })

	changes := parser.NewChanges()
	for _, f := range all {
		changes.Add(f.entity, f.change)
	}
	return changes, nil
}
