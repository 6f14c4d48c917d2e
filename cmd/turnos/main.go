// Package main provides the Turnos HTTP API service.
//
// It serves the shift record endpoints over the store selected by TURNOS_STORAGE
// (postgres or memory) and shuts down gracefully on SIGINT/SIGTERM.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/turnos-io/turnos/internal/aliasing"
	"github.com/turnos-io/turnos/internal/api"
	"github.com/turnos-io/turnos/internal/api/middleware"
	"github.com/turnos-io/turnos/internal/config"
	"github.com/turnos-io/turnos/internal/ingestion"
	"github.com/turnos-io/turnos/internal/shift"
	"github.com/turnos-io/turnos/internal/storage"
)

// Build-time version information, set with -ldflags.
var (
	Version = "1.0.0-dev"
	name    = "turnos"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s v%s\n", name, Version)
		os.Exit(0)
	}

	api.Version = Version

	logger := config.NewLogger()
	slog.SetDefault(logger)

	serverConfig := api.LoadServerConfig()

	logger.Info("Starting Turnos service",
		slog.String("service", name),
		slog.String("version", Version),
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.Int("max_upload_mb", serverConfig.MaxUploadMB),
	)

	middlewareConfig := middleware.LoadConfig()

	// Closed by the server on shutdown.
	rateLimiter := middleware.NewInMemoryRateLimiter(middlewareConfig)

	logger.Info("Rate limiter initialized",
		slog.Int("global_rps", middlewareConfig.GlobalRPS),
		slog.Int("client_rps", middlewareConfig.ClientRPS),
	)

	store, err := storage.Open(storage.LoadConfig(), logger)
	if err != nil {
		logger.Error("Failed to open shift store", slog.String("error", err.Error()))
		_ = rateLimiter.Close()
		os.Exit(1)
	}

	resolver := aliasing.NewResolverFromEnv()
	logger.Info("Shift aliases loaded", slog.Int("aliases", resolver.AliasCount()))

	normalizer := shift.NewNormalizer(resolver)

	server := api.NewServer(
		serverConfig,
		shift.NewService(store, normalizer),
		ingestion.NewPipeline(store, normalizer, logger),
		store,
		rateLimiter,
		logger,
	)

	err = server.Start()

	_ = store.Close()

	if err != nil {
		logger.Error("Server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Turnos service stopped")
}
