// Package migration runs the change matcher over migration scripts.
package migration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ectomigo/ectomigo/internal/parser"
	"github.com/ectomigo/ectomigo/internal/parser/sql"
)

// Match reads each path, relative to root, and returns the entities every
// script alters or drops keyed by the path as given. Unlike indexing, an
// unreadable file is an error since the caller named it explicitly.
func Match(ctx context.Context, m *sql.Matcher, root string, paths []string) (parser.MigrationResult, error) {
	result := make(parser.MigrationResult, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", p, err)
		}
		changes, err := m.Match(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("match migration %s: %w", p, err)
		}
		result[p] = changes
	}
	return result, nil
}
