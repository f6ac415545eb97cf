package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kardianos/service"
	"go.uber.org/zap"

	"docqa/cache"
	"docqa/core"
	"docqa/db"
	"docqa/httpapi"
	"docqa/logging"
	"docqa/session"
	"docqa/shutdown"
)

const (
	historyRetention = 30 * 24 * time.Hour
	cleanupInterval  = 24 * time.Hour
)

func main() {
	if err := godotenv.Load(); err != nil {
		// logger isn't initialized yet
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}

	if len(os.Args) > 1 {
		handled, err := handleServiceCommand(os.Args[1])
		if handled {
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		}
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{
		Development: cfg.DevMode,
		FilePath:    cfg.LogFile,
		Level:       cfg.LogLevel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if !service.Interactive() {
		if err := runAsService(cfg, logger); err != nil {
			logger.Error("service run failed", zap.Error(err))
			_ = logger.Sync()
			os.Exit(1)
		}
		return
	}

	core.PrintStartupReport(os.Stdout, cfg)

	m := shutdown.NewManager(context.Background(), logger)
	m.Start()

	runErr := run(m, cfg, logger)
	if runErr != nil {
		logger.Error("server stopped with error", zap.Error(runErr))
	}
	if err := m.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
		os.Exit(1)
	}
	if runErr != nil {
		os.Exit(1)
	}
}

// run wires the application, registers its cleanup with m and serves until
// m's context is cancelled or the listener fails.
func run(m *shutdown.Manager, cfg *core.Config, logger *logging.Logger) error {
	ctx := m.Context()

	var (
		store         cache.Store
		recorder      session.HistoryRecorder
		historyReader httpapi.HistoryReader
	)

	m.Register("logger", shutdown.PriorityLogger, func(context.Context) error {
		_ = logger.Sync()
		return nil
	})

	if cfg.PersistenceEnabled() {
		database, err := db.Open(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		logger.Info("database opened", zap.String("path", database.Path()))

		history := db.NewHistoryWriter(database, logger)
		history.Start()
		scheduler := db.NewCleanupScheduler(database, historyRetention, cleanupInterval, logger)
		scheduler.Start()

		m.Register("cleanup-scheduler", shutdown.PriorityWorkers, func(context.Context) error {
			scheduler.Stop()
			return nil
		})
		m.Register("history", shutdown.PriorityStorage, func(context.Context) error {
			if !history.Stop() {
				return errors.New("history writer did not drain")
			}
			return nil
		})
		m.Register("database", shutdown.PriorityStorage, func(context.Context) error {
			return database.Close()
		})

		store, recorder, historyReader = database, history, database
	}

	pipeline, err := session.BuildPipeline(cfg, logger, store, recorder)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	sessions := session.NewManager(pipeline, cfg.SessionTTL)
	m.Register("sessions", shutdown.PriorityWorkers, func(context.Context) error {
		sessions.Close()
		return nil
	})

	server, err := httpapi.NewServer(httpapi.ConfigFromCore(cfg), sessions, historyReader, logger)
	if err != nil {
		return err
	}
	m.Register("http", shutdown.PriorityServer, server.Shutdown)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	logger.Info("docqa ready", zap.String("addr", server.Addr()))
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
