// Package ingestion selects analyzers for source files, runs them in
// parallel and distributes indexing work over Valkey.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/ectomigo/ectomigo/internal/parser"
	"github.com/ectomigo/ectomigo/internal/parser/embedded"
	"github.com/ectomigo/ectomigo/internal/parser/patterns"
	"github.com/ectomigo/ectomigo/internal/parser/sql"
)

// ChunkSize is the number of files analysed between two emits.
const ChunkSize = 64

// binding applies a pattern indexer to the files matching one glob.
type binding struct {
	glob    string
	indexer patterns.Indexer
}

// Dispatcher routes each file to the SQL extractor, or to the embedded SQL
// extractor and any pattern indexers configured for its path.
type Dispatcher struct {
	grammars *parser.Grammars
	langs    *parser.Registry
	sql      *sql.Extractor
	embedded *embedded.Extractor
	bindings []binding
	workers  int
	logger   *slog.Logger
}

// NewDispatcher resolves the pattern configuration, which maps a pattern
// type to the globs it applies to. An unknown type is an error.
func NewDispatcher(g *parser.Grammars, registry *patterns.Registry, patternGlobs map[string][]string, logger *slog.Logger) (*Dispatcher, error) {
	sqlx, err := sql.NewExtractor(g)
	if err != nil {
		return nil, fmt.Errorf("sql extractor: %w", err)
	}
	emb, err := embedded.New(g, sqlx, logger)
	if err != nil {
		return nil, fmt.Errorf("embedded extractor: %w", err)
	}

	d := &Dispatcher{
		grammars: g,
		langs:    parser.DefaultRegistry(),
		sql:      sqlx,
		embedded: emb,
		workers:  1,
		logger:   logger,
	}

	types := make([]string, 0, len(patternGlobs))
	for t := range patternGlobs {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		ix, err := registry.Lookup(t)
		if err != nil {
			return nil, err
		}
		for _, glob := range patternGlobs[t] {
			if !doublestar.ValidatePattern(glob) {
				return nil, fmt.Errorf("pattern %s: invalid glob %q", t, glob)
			}
			d.bindings = append(d.bindings, binding{glob: glob, indexer: ix})
		}
	}
	return d, nil
}

// SetWorkers sets how many files are analysed concurrently.
func (d *Dispatcher) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	d.workers = n
}

// Index analyses files, given relative to root, and passes every record to
// emit. Records come out in file order regardless of parallelism. An error
// from emit stops indexing.
func (d *Dispatcher) Index(ctx context.Context, root string, files []string, emit func(parser.Invocation) error) error {
	for start := 0; start < len(files); start += ChunkSize {
		chunk := files[start:min(start+ChunkSize, len(files))]
		results := make([][]parser.Invocation, len(chunk))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.workers)
		for i, rel := range chunk {
			g.Go(func() error {
				refs, err := d.IndexFile(gctx, root, rel)
				if err != nil {
					return err
				}
				results[i] = refs
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, refs := range results {
			for _, inv := range refs {
				if err := emit(inv); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// IndexFile analyses a single file. A file that cannot be read is logged
// and yields no records.
func (d *Dispatcher) IndexFile(ctx context.Context, root, rel string) ([]parser.Invocation, error) {
	rel = filepath.ToSlash(rel)
	lang, ok := d.langs.ForFile(rel)
	if !ok {
		d.logger.Debug("unsupported file skipped", slog.String("path", rel))
		return nil, nil
	}

	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		d.logger.Warn("read file failed",
			slog.String("path", rel),
			slog.String("error", err.Error()))
		return nil, nil
	}

	if lang == parser.LangSQL {
		refs, err := d.sql.Extract(ctx, rel, content, parser.Offset{})
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", rel, err)
		}
		return refs, nil
	}

	indexers := d.indexersFor(rel, lang)
	if !d.embedded.Supports(lang) && len(indexers) == 0 {
		return nil, nil
	}

	tree, err := d.grammars.Parse(ctx, lang, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rel, err)
	}
	defer tree.Close()

	file := parser.FileInput{Path: rel, Content: content, Language: lang}
	refs, err := d.embedded.Extract(ctx, file, tree)
	if err != nil {
		return nil, fmt.Errorf("embedded sql in %s: %w", rel, err)
	}
	for _, ix := range indexers {
		refs = append(refs, ix.Index(file, tree)...)
	}
	return refs, nil
}

// indexersFor returns the distinct indexers whose globs match rel and which
// understand lang, in configuration order.
func (d *Dispatcher) indexersFor(rel string, lang parser.Language) []patterns.Indexer {
	var out []patterns.Indexer
	for _, b := range d.bindings {
		if slices.Contains(out, b.indexer) || !slices.Contains(b.indexer.Languages(), lang) {
			continue
		}
		if ok, _ := doublestar.Match(b.glob, rel); ok {
			out = append(out, b.indexer)
		}
	}
	return out
}
