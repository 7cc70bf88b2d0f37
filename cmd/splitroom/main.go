package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"splitroom/internal/amqp"
	"splitroom/internal/backend"
	"splitroom/internal/config"
	"splitroom/internal/export"
	googleexport "splitroom/internal/export/google"
	apphttp "splitroom/internal/http"
	"splitroom/internal/log"
	"splitroom/internal/room"
	"splitroom/internal/store"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := backend.Open(ctx, backend.Config{
		Type:         backend.Type(cfg.DataBackend),
		SQLiteDBPath: cfg.SQLiteDBPath,
		PostgresURL:  cfg.PostgresURL,
	}, logger)
	if err != nil {
		logger.Error("Failed to open storage backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer repo.Close()

	ledger := store.NewLedger(repo, logger)

	g, gctx := errgroup.WithContext(ctx)

	// Optional AMQP relay: peers running against the same store converge
	// through room-change fanout.
	var relay *amqp.Client
	if cfg.AMQPURL != "" {
		relay, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP relay", log.FieldError, err)
			os.Exit(1)
		}
		defer relay.Close()
		ledger.SetRelay(relay)
		g.Go(func() error {
			return relay.ConsumeWithRetry(gctx, ledger)
		})
		logger.Info("AMQP relay enabled", log.FieldExchange, cfg.AMQPExchange)
	} else {
		logger.Info("AMQP relay disabled - no AMQP_URL provided")
	}

	var exporter export.SummaryWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := googleexport.NewFromEnv(ctx, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", log.FieldSpreadsheet, cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	rooms := room.NewManager(ledger, cfg.AccessCode, cfg.SessionTTL, logger)
	defer rooms.Close()

	srv := apphttp.NewServer(":"+cfg.Port, ledger, rooms, apphttp.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Exporter:       exporter,
		Logger:         logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 0 // SSE streams stay open indefinitely
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g.Go(func() error {
		logger.Info("Starting splitroom server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-gctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
