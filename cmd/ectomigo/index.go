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
	"github.com/ectomigo/ectomigo/internal/ingestion/connectors"
	"github.com/ectomigo/ectomigo/internal/output"
	minioclient "github.com/ectomigo/ectomigo/internal/store/minio"
	vk "github.com/ectomigo/ectomigo/internal/store/valkey"
)

func newIndexCmd(a *app) *cobra.Command {
	var distribute, snapshot bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Record every database entity referenced by the repository",
		Long: `Walk the repository root, skipping ignore_paths and migration_paths, and
write one JSON invocation record per line.

With --distribute the files are split into chunks and queued for workers
instead of being indexed locally.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			files, err := ingestion.Discover(ctx, a.root, a.project.ExcludeGlobs())
			if err != nil {
				return err
			}
			a.logger.Info("files discovered", slog.String("root", a.root), slog.Int("files", len(files)))

			if distribute {
				return a.enqueue(ctx, cmd.OutOrStdout(), files, snapshot)
			}
			upload, _ := cmd.Flags().GetBool("upload")
			return a.index(ctx, files, upload)
		},
	}

	cmd.Flags().Int("workers", 0, "files analysed concurrently (default: number of CPUs)")
	cmd.Flags().BoolVar(&distribute, "distribute", false, "queue the files for workers instead of indexing locally")
	cmd.Flags().BoolVar(&snapshot, "snapshot", true, "with --distribute, upload the files so workers need no shared checkout")
	return cmd
}

func (a *app) index(ctx context.Context, files []string, upload bool) (err error) {
	d, err := ingestion.NewDispatcher(a.grammars, a.registry, a.project.Patterns, a.logger)
	if err != nil {
		return err
	}
	d.SetWorkers(a.project.Workers)

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

	nd := output.NewNDJSONWriter(w)
	if err := d.Index(ctx, a.root, files, nd.Write); err != nil {
		return err
	}
	if err := nd.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	a.logger.Info("index complete", slog.Int("invocations", nd.Count()))

	if !upload {
		return nil
	}
	name := fmt.Sprintf("invocations/%s.ndjson", uuid.New())
	return a.upload(ctx, name, artifact.Bytes(), "application/x-ndjson")
}

// enqueue splits files into index tasks for the worker fleet and prints the
// run ID.
func (a *app) enqueue(ctx context.Context, stdout io.Writer, files []string, snapshot bool) error {
	client, err := vk.NewClient(ctx, a.cfg.Valkey)
	if err != nil {
		return err
	}
	defer client.Close()

	runID := uuid.New()
	archive := ""
	if snapshot {
		store, err := a.artifactStore(ctx)
		if err != nil {
			return err
		}
		archive = connectors.SourceObjectName(runID.String())
		if err := connectors.NewZipConnector(store).Upload(ctx, archive, a.root, files); err != nil {
			return fmt.Errorf("upload snapshot: %w", err)
		}
		a.logger.Info("snapshot uploaded", slog.String("object", archive))
	}

	tasks := ingestion.SplitTasks(runID, a.root, archive, files, a.project.Patterns)
	for _, task := range tasks {
		if _, err := ingestion.EnqueueIndexTask(ctx, client, task); err != nil {
			return fmt.Errorf("enqueue chunk %d: %w", task.ChunkIndex, err)
		}
	}
	a.logger.Info("index run queued",
		slog.String("run_id", runID.String()),
		slog.Int("chunks", len(tasks)))
	_, err = fmt.Fprintln(stdout, runID.String())
	return err
}

func (a *app) artifactStore(ctx context.Context) (*minioclient.Client, error) {
	store, err := minioclient.NewClient(a.cfg.MinIO)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (a *app) upload(ctx context.Context, name string, data []byte, contentType string) error {
	store, err := a.artifactStore(ctx)
	if err != nil {
		return err
	}
	if err := store.UploadFile(ctx, name, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return err
	}
	a.logger.Info("artifact uploaded", slog.String("bucket", store.Bucket()), slog.String("object", name))
	return nil
}
