// Package main provides turnosctl, the Turnos admin CLI.
//
// It talks to the shift store directly (TURNOS_STORAGE, DATABASE_URL) and covers the
// operator tasks: importing a workbook, reading records and printing statistics.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/turnos-io/turnos/internal/aliasing"
	"github.com/turnos-io/turnos/internal/config"
	"github.com/turnos-io/turnos/internal/ingestion"
	"github.com/turnos-io/turnos/internal/shift"
	"github.com/turnos-io/turnos/internal/storage"
)

// Version is set at build time with -ldflags.
var Version = "1.0.0-dev"

// App holds the dependencies shared by every command. The store is opened lazily
// before the first command runs.
type App struct {
	store    storage.Store
	service  *shift.Service
	pipeline *ingestion.Pipeline
	logger   *slog.Logger
}

func main() {
	app := &App{logger: config.NewLogger()}

	err := newRootCmd(app).Execute()

	app.close()

	if err != nil {
		os.Exit(1)
	}
}

// newApp wires an App around an already opened store.
func newApp(store storage.Store, logger *slog.Logger) *App {
	app := &App{logger: logger}
	app.use(store)

	return app
}

func (a *App) use(store storage.Store) {
	normalizer := shift.NewNormalizer(aliasing.NewResolverFromEnv())

	a.store = store
	a.service = shift.NewService(store, normalizer)
	a.pipeline = ingestion.NewPipeline(store, normalizer, a.logger)
}

func (a *App) open() error {
	if a.store != nil {
		return nil
	}

	store, err := storage.Open(storage.LoadConfig(), a.logger)
	if err != nil {
		return fmt.Errorf("failed to open shift store: %w", err)
	}

	a.use(store)

	return nil
}

func (a *App) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "turnosctl",
		Short:        "Turnos admin CLI - import and inspect shift records",
		Long:         `A CLI tool for importing shift spreadsheets and inspecting the shift record store.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return app.open()
		},
	}

	rootCmd.AddCommand(importCmd(app))
	rootCmd.AddCommand(getCmd(app))
	rootCmd.AddCommand(rangeCmd(app))
	rootCmd.AddCommand(putCmd(app))
	rootCmd.AddCommand(statsCmd(app))

	return rootCmd
}
