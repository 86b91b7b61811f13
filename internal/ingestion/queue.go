package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

const (
	// IndexTaskStream is the Valkey stream used to distribute index chunks to workers.
	IndexTaskStream    = "ectomigo:index_tasks"
	IndexTaskGroupName = "ectomigo-index-workers"
	IndexTaskChunkSize = 500

	// RunStream receives one message per index run once every chunk is done.
	RunStream = "ectomigo:index_runs"
)

// IndexTask is a single chunk of files to be indexed by a worker. Files are
// read from Archive, a source snapshot in the artifact bucket, or from Root
// when no archive was uploaded.
type IndexTask struct {
	RunID       uuid.UUID           `json:"run_id"`
	Root        string              `json:"root"`
	Archive     string              `json:"archive,omitempty"`
	ChunkIndex  int                 `json:"chunk_index"`
	TotalChunks int                 `json:"total_chunks"`
	Files       []string            `json:"files"`
	Patterns    map[string][]string `json:"patterns,omitempty"`
}

// RunComplete announces that all chunks of an index run have been uploaded.
type RunComplete struct {
	RunID       uuid.UUID `json:"run_id"`
	TotalChunks int       `json:"total_chunks"`
	Prefix      string    `json:"prefix"`
}

// SplitTasks cuts files into IndexTaskChunkSize chunks for one run.
func SplitTasks(runID uuid.UUID, root, archive string, files []string, patterns map[string][]string) []IndexTask {
	total := (len(files) + IndexTaskChunkSize - 1) / IndexTaskChunkSize
	tasks := make([]IndexTask, 0, total)
	for i := 0; i < total; i++ {
		end := min((i+1)*IndexTaskChunkSize, len(files))
		tasks = append(tasks, IndexTask{
			RunID:       runID,
			Root:        root,
			Archive:     archive,
			ChunkIndex:  i,
			TotalChunks: total,
			Files:       files[i*IndexTaskChunkSize : end],
			Patterns:    patterns,
		})
	}
	return tasks
}

// EnqueueIndexTask publishes a single index-chunk message to the task stream.
func EnqueueIndexTask(ctx context.Context, client valkey.Client, task IndexTask) (string, error) {
	data, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("marshal index task: %w", err)
	}
	return xadd(ctx, client, IndexTaskStream, data)
}

// PublishRunComplete announces a finished run on RunStream.
func PublishRunComplete(ctx context.Context, client valkey.Client, msg RunComplete) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal run complete: %w", err)
	}
	return xadd(ctx, client, RunStream, data)
}

func xadd(ctx context.Context, client valkey.Client, stream string, data []byte) (string, error) {
	resp := client.Do(ctx, client.B().Xadd().
		Key(stream).Id("*").
		FieldValue().FieldValue("data", string(data)).
		Build())
	if err := resp.Error(); err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}

	id, err := resp.ToString()
	if err != nil {
		return "", fmt.Errorf("parse xadd response: %w", err)
	}
	return id, nil
}

// IndexTaskConsumer reads index-chunk jobs from the Valkey task stream.
type IndexTaskConsumer struct {
	client     valkey.Client
	consumerID string
	logger     *slog.Logger
}

func NewIndexTaskConsumer(client valkey.Client, consumerID string, logger *slog.Logger) *IndexTaskConsumer {
	return &IndexTaskConsumer{client: client, consumerID: consumerID, logger: logger}
}

// EnsureGroup creates the consumer group if it doesn't exist.
func (c *IndexTaskConsumer) EnsureGroup(ctx context.Context) error {
	resp := c.client.Do(ctx, c.client.B().XgroupCreate().
		Key(IndexTaskStream).Group(IndexTaskGroupName).Id("0").Mkstream().Build())
	if err := resp.Error(); err != nil {
		if !isBusyGroup(err) {
			return fmt.Errorf("xgroup create: %w", err)
		}
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err.Error() == "BUSYGROUP Consumer Group name already exists"
}

// Consume blocks reading index tasks, processing each via handler, and ACKs.
// On startup it first drains messages left pending by a previous crash.
func (c *IndexTaskConsumer) Consume(ctx context.Context, handler func(context.Context, IndexTask) error) error {
	c.drainPending(ctx, handler)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		resp := c.client.Do(ctx, c.client.B().Xreadgroup().
			Group(IndexTaskGroupName, c.consumerID).
			Count(1).Block(5000).
			Streams().Key(IndexTaskStream).Id(">").
			Build())

		if err := resp.Error(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Timeout is normal for BLOCK reads
			continue
		}

		results, err := resp.AsXRead()
		if err != nil {
			continue
		}

		for _, messages := range results {
			for _, msg := range messages {
				c.process(ctx, msg, handler)
			}
		}
	}
}

func (c *IndexTaskConsumer) drainPending(ctx context.Context, handler func(context.Context, IndexTask) error) {
	resp := c.client.Do(ctx, c.client.B().Xreadgroup().
		Group(IndexTaskGroupName, c.consumerID).
		Count(10).
		Streams().Key(IndexTaskStream).Id("0").
		Build())

	if err := resp.Error(); err != nil {
		c.logger.Warn("drain pending failed", slog.String("error", err.Error()))
		return
	}

	results, err := resp.AsXRead()
	if err != nil {
		return
	}

	for _, messages := range results {
		for _, msg := range messages {
			c.logger.Info("recovering pending index task", slog.String("id", msg.ID))
			c.process(ctx, msg, handler)
		}
	}
}

func (c *IndexTaskConsumer) process(ctx context.Context, msg valkey.XRangeEntry, handler func(context.Context, IndexTask) error) {
	task, err := decodeTask(msg)
	if err != nil {
		c.logger.Error("decode index task", slog.String("error", err.Error()), slog.String("id", msg.ID))
		c.ack(ctx, msg.ID)
		return
	}

	if err := handler(ctx, task); err != nil {
		c.logger.Error("handle index task", slog.String("error", err.Error()),
			slog.String("id", msg.ID),
			slog.String("run_id", task.RunID.String()),
			slog.Int("chunk_index", task.ChunkIndex))
		return
	}
	c.ack(ctx, msg.ID)
}

// decodeTask reads the JSON payload stored under the data field.
func decodeTask(msg valkey.XRangeEntry) (IndexTask, error) {
	var task IndexTask
	data, ok := msg.FieldValues["data"]
	if !ok {
		return task, fmt.Errorf("message missing data field")
	}
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return task, fmt.Errorf("unmarshal: %w", err)
	}
	return task, nil
}

func (c *IndexTaskConsumer) ack(ctx context.Context, msgID string) {
	resp := c.client.Do(ctx, c.client.B().Xack().
		Key(IndexTaskStream).Group(IndexTaskGroupName).Id(msgID).Build())
	if err := resp.Error(); err != nil {
		c.logger.Error("xack failed", slog.String("error", err.Error()), slog.String("id", msgID))
	}
}
