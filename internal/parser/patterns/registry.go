// Package patterns selects the framework-specific indexers that recognize
// database access without any SQL text.
package patterns

import (
	"errors"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ectomigo/ectomigo/internal/parser"
	"github.com/ectomigo/ectomigo/internal/parser/csharp"
	"github.com/ectomigo/ectomigo/internal/parser/java"
	"github.com/ectomigo/ectomigo/internal/parser/javascript"
	"github.com/ectomigo/ectomigo/internal/parser/python"
)

// ErrUnknownPattern is returned when configuration names an indexer that
// does not exist.
var ErrUnknownPattern = errors.New("unknown pattern type")

// Indexer produces invocation records from idiom-specific structure in a
// parsed source file.
type Indexer interface {
	Name() string
	Languages() []parser.Language
	Index(file parser.FileInput, tree *sitter.Tree) []parser.Invocation
}

// Registry maps pattern type names to indexers.
type Registry struct {
	indexers map[string]Indexer
}

func NewRegistry() *Registry {
	return &Registry{indexers: make(map[string]Indexer)}
}

func (r *Registry) Register(ix Indexer) {
	r.indexers[ix.Name()] = ix
}

// Lookup returns the indexer registered under name.
func (r *Registry) Lookup(name string) (Indexer, error) {
	ix, ok := r.indexers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPattern, name)
	}
	return ix, nil
}

// Names returns every registered pattern type, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.indexers))
	for name := range r.indexers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns a registry holding every built-in indexer.
func Default(g *parser.Grammars) (*Registry, error) {
	r := NewRegistry()

	builders := []func(*parser.Grammars) (Indexer, error){
		func(g *parser.Grammars) (Indexer, error) { return java.NewPOJOIndexer(g) },
		func(g *parser.Grammars) (Indexer, error) { return java.NewJPAIndexer(g) },
		func(g *parser.Grammars) (Indexer, error) { return javascript.NewMassiveIndexer(g) },
		func(g *parser.Grammars) (Indexer, error) { return javascript.NewPrismaIndexer(g) },
		func(g *parser.Grammars) (Indexer, error) { return javascript.NewKnexIndexer(g) },
		func(g *parser.Grammars) (Indexer, error) { return python.NewSQLAlchemyIndexer(g) },
		func(g *parser.Grammars) (Indexer, error) { return csharp.NewEFCoreIndexer(g) },
	}
	for _, build := range builders {
		ix, err := build(g)
		if err != nil {
			return nil, fmt.Errorf("build pattern indexer: %w", err)
		}
		r.Register(ix)
	}
	return r, nil
}
