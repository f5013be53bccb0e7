package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/AddressImport/internal/config"
	"github.com/JonMunkholm/AddressImport/internal/core"
	"github.com/JonMunkholm/AddressImport/internal/logging"
	"github.com/JonMunkholm/AddressImport/internal/seed"
	"github.com/JonMunkholm/AddressImport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	rule, err := core.ParseContractRule(cfg.Import.ContractRule, core.DefaultAliases)
	if err != nil {
		slog.Error("invalid contract rule", "error", err)
		os.Exit(1)
	}

	importer, err := core.NewImporter(core.ImporterOptions{
		ContractRule:      rule,
		ChunkSize:         cfg.Import.ChunkSize,
		DecodeConcurrency: cfg.Import.DecodeConcurrency,
		CacheSize:         cfg.Import.CacheSize,
		MaxFileSize:       cfg.Import.MaxFileSize,
		Logger:            slog.Default(),
	})
	if err != nil {
		slog.Error("failed to create importer", "error", err)
		os.Exit(1)
	}

	records, err := core.NewCollection(nil)
	if err != nil {
		slog.Error("failed to create collection", "error", err)
		os.Exit(1)
	}

	if len(cfg.Data.SeedFiles) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Import.Timeout)
		added, err := seed.Load(ctx, importer, records, cfg.Data.SeedFiles)
		cancel()
		if err != nil {
			slog.Error("failed to load seed files", "error", err)
			os.Exit(1)
		}
		slog.Info("seed data loaded", "files", len(cfg.Data.SeedFiles), "records", added)
	}

	limiter := core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)
	activity := core.NewActivityLog(cfg.Data.ActivityCapacity)
	server := web.NewServer(cfg, importer, records, limiter, activity)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
