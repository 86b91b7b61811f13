package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ectomigo/ectomigo/internal/ingestion"
	vk "github.com/ectomigo/ectomigo/internal/store/valkey"
)

func newWorkerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Index chunks queued by index --distribute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			client, err := vk.NewClient(ctx, a.cfg.Valkey)
			if err != nil {
				return err
			}
			defer client.Close()
			a.logger.Info("connected to valkey")

			store, err := a.artifactStore(ctx)
			if err != nil {
				return err
			}
			a.logger.Info("connected to minio", slog.String("bucket", store.Bucket()))

			hostname, _ := os.Hostname()
			consumerID := fmt.Sprintf("%s-%d", hostname, os.Getpid())
			consumer := ingestion.NewIndexTaskConsumer(client, consumerID, a.logger)
			if err := consumer.EnsureGroup(ctx); err != nil {
				return err
			}

			w := ingestion.NewIndexWorker(a.grammars, a.registry, store, client, a.project.Workers, a.logger)
			a.logger.Info("worker started", slog.String("consumer_id", consumerID))

			err = consumer.Consume(ctx, w.Handle)
			if ctx.Err() != nil {
				a.logger.Info("worker shutting down")
				return nil
			}
			return err
		},
	}
	cmd.Flags().Int("workers", 0, "files analysed concurrently per chunk (default: number of CPUs)")
	return cmd
}
