package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ectomigo/ectomigo/internal/ingestion"
	"github.com/ectomigo/ectomigo/internal/migration"
	"github.com/ectomigo/ectomigo/internal/output"
	"github.com/ectomigo/ectomigo/internal/parser"
	"github.com/ectomigo/ectomigo/internal/parser/sql"
)

func newMatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "match [migration files...]",
		Short: "List the entities each migration alters or drops",
		Long: `Match the given migration scripts, relative to the repository root, or
every script under migration_paths when none are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			paths := args
			if len(paths) == 0 {
				var err error
				paths, err = ingestion.Glob(a.root, a.project.MigrationGlobs())
				if err != nil {
					return err
				}
			}
			if len(paths) == 0 {
				a.logger.Info("no migrations to match")
				return nil
			}

			m, err := sql.NewMatcher(a.grammars, a.logger)
			if err != nil {
				return err
			}
			result, err := migration.Match(ctx, m, a.root, paths)
			if err != nil {
				return err
			}

			upload, _ := cmd.Flags().GetBool("upload")
			return a.writeMigrations(ctx, result, upload)
		},
	}
}

func (a *app) writeMigrations(ctx context.Context, result parser.MigrationResult, upload bool) (err error) {
	out, closeOut, err := openOutput(a.project.Output)
	if err != nil {
		return err
	}
	defer closeOutput(closeOut, &err)

	var w io.Writer = out
	var artifact bytes.Buffer
	if upload {
		w = io.MultiWriter(out, &artifact)
	}
	if err := output.WriteMigrations(w, result); err != nil {
		return err
	}
	a.logger.Info("match complete", slog.Int("migrations", len(result)))

	if !upload {
		return nil
	}
	return a.upload(ctx, fmt.Sprintf("migrations/%s.json", uuid.New()), artifact.Bytes(), "application/json")
}
