package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/valkey-io/valkey-go"

	"github.com/ectomigo/ectomigo/internal/ingestion/connectors"
	"github.com/ectomigo/ectomigo/internal/output"
	"github.com/ectomigo/ectomigo/internal/parser"
	"github.com/ectomigo/ectomigo/internal/parser/patterns"
)

// IndexWorker executes index chunks delivered by the ectomigo:index_tasks
// stream. Each chunk's records are uploaded as their own object so no
// process holds a whole run in memory.
type IndexWorker struct {
	grammars  *parser.Grammars
	registry  *patterns.Registry
	artifacts connectors.ObjectStore
	sources   *connectors.ZipConnector
	client    valkey.Client
	workers   int
	logger    *slog.Logger
}

func NewIndexWorker(g *parser.Grammars, registry *patterns.Registry, artifacts connectors.ObjectStore, client valkey.Client, workers int, logger *slog.Logger) *IndexWorker {
	return &IndexWorker{
		grammars:  g,
		registry:  registry,
		artifacts: artifacts,
		sources:   connectors.NewZipConnector(artifacts),
		client:    client,
		workers:   workers,
		logger:    logger,
	}
}

// RunPrefix is the object prefix holding every chunk of a run.
func RunPrefix(runID string) string {
	return "invocations/" + runID + "/"
}

// ChunkObjectName is the object a chunk's records are uploaded to.
func ChunkObjectName(runID string, chunk int) string {
	return fmt.Sprintf("%s%05d.ndjson", RunPrefix(runID), chunk)
}

// Handle indexes one chunk, uploads the records and signals completion.
// When the final chunk of a run completes it publishes a RunComplete.
func (w *IndexWorker) Handle(ctx context.Context, task IndexTask) error {
	w.logger.Info("index chunk started",
		slog.String("run_id", task.RunID.String()),
		slog.Int("chunk", task.ChunkIndex+1),
		slog.Int("total_chunks", task.TotalChunks),
		slog.Int("files", len(task.Files)))

	if task.Archive != "" {
		dir, err := os.MkdirTemp("", "ectomigo-chunk-*")
		if err != nil {
			return fmt.Errorf("create work dir: %w", err)
		}
		defer os.RemoveAll(dir)
		if err := w.sources.Extract(ctx, task.Archive, dir, task.Files); err != nil {
			return fmt.Errorf("extract chunk %d: %w", task.ChunkIndex, err)
		}
		task.Root = dir
	}

	data, count, err := w.indexChunk(ctx, task)
	if err != nil {
		return fmt.Errorf("index chunk %d: %w", task.ChunkIndex, err)
	}

	name := ChunkObjectName(task.RunID.String(), task.ChunkIndex)
	if err := w.artifacts.UploadFile(ctx, name, bytes.NewReader(data), int64(len(data)), "application/x-ndjson"); err != nil {
		return fmt.Errorf("upload chunk %d: %w", task.ChunkIndex, err)
	}

	w.logger.Info("index chunk uploaded",
		slog.String("run_id", task.RunID.String()),
		slog.Int("chunk", task.ChunkIndex+1),
		slog.Int("invocations", count),
		slog.String("object", name))

	if err := w.signalChunkComplete(ctx, task); err != nil {
		return fmt.Errorf("signal chunk complete: %w", err)
	}
	return nil
}

// indexChunk runs the dispatcher over the chunk's files and returns the
// NDJSON-encoded records.
func (w *IndexWorker) indexChunk(ctx context.Context, task IndexTask) ([]byte, int, error) {
	d, err := NewDispatcher(w.grammars, w.registry, task.Patterns, w.logger)
	if err != nil {
		return nil, 0, err
	}
	d.SetWorkers(w.workers)

	var buf bytes.Buffer
	nd := output.NewNDJSONWriter(&buf)
	if err := d.Index(ctx, task.Root, task.Files, nd.Write); err != nil {
		return nil, 0, err
	}
	if err := nd.Flush(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), nd.Count(), nil
}

// signalChunkComplete increments the Valkey completion counter for the run.
func (w *IndexWorker) signalChunkComplete(ctx context.Context, task IndexTask) error {
	counterKey := chunkCounterKey(task.RunID.String())

	resp := w.client.Do(ctx, w.client.B().Incr().Key(counterKey).Build())
	if err := resp.Error(); err != nil {
		return fmt.Errorf("incr chunk counter: %w", err)
	}

	completed, err := resp.AsInt64()
	if err != nil {
		return fmt.Errorf("read chunk counter: %w", err)
	}

	if int(completed) < task.TotalChunks {
		return nil
	}

	w.client.Do(ctx, w.client.B().Del().Key(counterKey).Build())

	w.logger.Info("all index chunks complete",
		slog.String("run_id", task.RunID.String()),
		slog.Int("total_chunks", task.TotalChunks))

	_, err = PublishRunComplete(ctx, w.client, RunComplete{
		RunID:       task.RunID,
		TotalChunks: task.TotalChunks,
		Prefix:      RunPrefix(task.RunID.String()),
	})
	return err
}

func chunkCounterKey(runID string) string {
	return "ectomigo:index:completed:" + runID
}
