// flowkeepd is the workflow service daemon: it owns the SQLite stores, the
// execution engine, and the HTTP/WebSocket API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowkeep/flowkeep/pkg/api"
	"github.com/flowkeep/flowkeep/pkg/app"
	"github.com/flowkeep/flowkeep/pkg/config"
	"github.com/flowkeep/flowkeep/pkg/engine"
	"github.com/flowkeep/flowkeep/pkg/infrastructure/eventbus"
	"github.com/flowkeep/flowkeep/pkg/logger"
	"github.com/flowkeep/flowkeep/pkg/store/sqlite"
)

// taskLogSink routes LogTask step output into the structured logger.
type taskLogSink struct{}

func (taskLogSink) Log(message string) {
	logger.InfoC(logger.CategoryEngine, message)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "flowkeepd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Setup(cfg.LogLevel, cfg.LogJSON); err != nil {
		return err
	}
	logger.InfoC(logger.CategoryConfig, "configuration loaded", "db", cfg.DatabasePath, "addr", cfg.Addr())

	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	revisions := sqlite.NewRevisionStore(db)
	executions := sqlite.NewExecutionStore(db)
	bus := eventbus.New()
	defer bus.Close()

	container := app.NewContainer(bus, revisions, executions, taskLogSink{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SweepOrphans {
		if _, err := engine.SweepOrphans(ctx, executions); err != nil {
			return fmt.Errorf("sweep orphaned executions: %w", err)
		}
	}

	server := api.NewServer(cfg, container)
	if err := server.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.InfoC(logger.CategoryAPI, "shutting down")
	return server.Stop()
}
