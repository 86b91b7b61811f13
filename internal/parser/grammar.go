package parser

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/sql"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Grammars owns the tree-sitter languages and a pool of parsers per language.
// A single instance is created by the caller and shared by every extractor;
// it is safe for concurrent use.
type Grammars struct {
	languages map[Language]*sitter.Language
	pools     map[Language]*sync.Pool
}

func NewGrammars() *Grammars {
	g := &Grammars{
		languages: map[Language]*sitter.Language{
			LangSQL:        sql.GetLanguage(),
			LangJava:       java.GetLanguage(),
			LangJavaScript: javascript.GetLanguage(),
			LangTypeScript: typescript.GetLanguage(),
			LangPython:     python.GetLanguage(),
			LangGo:         golang.GetLanguage(),
			LangCSharp:     csharp.GetLanguage(),
		},
	}

	g.pools = make(map[Language]*sync.Pool, len(g.languages))
	for l, tsLang := range g.languages {
		g.pools[l] = &sync.Pool{
			New: func() any {
				p := sitter.NewParser()
				p.SetLanguage(tsLang)
				return p
			},
		}
	}
	return g
}

// Language returns the tree-sitter language for l.
func (g *Grammars) Language(l Language) (*sitter.Language, error) {
	tsLang, ok := g.languages[l]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", l)
	}
	return tsLang, nil
}

// Parse parses source into a tree. The caller must Close the tree.
func (g *Grammars) Parse(ctx context.Context, l Language, src []byte) (*sitter.Tree, error) {
	pool, ok := g.pools[l]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", l)
	}

	p, _ := pool.Get().(*sitter.Parser)
	if p == nil {
		return nil, fmt.Errorf("no parser available for language %s", l)
	}
	tree, err := p.ParseCtx(ctx, nil, src)
	pool.Put(p)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", l, err)
	}
	return tree, nil
}
