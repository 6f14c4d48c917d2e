// Package main provides the Turnos stream ingester.
//
// It joins a Kafka consumer group and imports every message (a JSON array of shift
// rows) through the same pipeline as the batch endpoint. It exits non-zero when the
// shift store fails, leaving the failed message uncommitted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/turnos-io/turnos/internal/aliasing"
	"github.com/turnos-io/turnos/internal/config"
	"github.com/turnos-io/turnos/internal/ingestion"
	"github.com/turnos-io/turnos/internal/shift"
	"github.com/turnos-io/turnos/internal/storage"
	"github.com/turnos-io/turnos/internal/stream"
)

// Build-time version information, set with -ldflags.
var (
	Version = "1.0.0-dev"
	name    = "ingester"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s v%s\n", name, Version)
		os.Exit(0)
	}

	logger := config.NewLogger()
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Ingester stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Ingester stopped")
}

func run(logger *slog.Logger) error {
	streamConfig := stream.LoadConfig()

	reader, err := stream.NewReader(streamConfig)
	if err != nil {
		return err
	}

	store, err := storage.Open(storage.LoadConfig(), logger)
	if err != nil {
		_ = reader.Close()

		return err
	}

	defer func() {
		_ = store.Close()
	}()

	normalizer := shift.NewNormalizer(aliasing.NewResolverFromEnv())
	consumer := stream.NewConsumer(reader, ingestion.NewPipeline(store, normalizer, logger), logger)

	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Error("Failed to close kafka reader", slog.String("error", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting ingester",
		slog.String("version", Version),
		slog.String("stream", streamConfig.String()),
	)

	return consumer.Run(ctx)
}
