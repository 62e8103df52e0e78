package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/price-comb/app/cfg"
	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/ingest"
	"github.com/lysyi3m/price-comb/app/sources"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	setupLogger(appCfg.Debug)

	slog.Info("Starting Price Comb", "version", appCfg.Version)

	db, err := database.NewConnection(
		appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	catalog := sources.NewCatalog(appCfg.SourcesDir)
	if err := catalog.Load(); err != nil {
		slog.Error("Failed to load source configurations", "dir", appCfg.SourcesDir, "error", err)
		os.Exit(1)
	}

	srcs, err := selectSources(catalog, appCfg.Source)
	if err != nil {
		slog.Error("Failed to select sources", "error", err)
		os.Exit(1)
	}
	if len(srcs) == 0 {
		slog.Warn("No enabled sources found, nothing to do", "dir", appCfg.SourcesDir)
		return
	}
	slog.Info("Sources selected", "count", len(srcs))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{
		Timeout: 5 * time.Minute,
	}

	productRepo := database.NewProductRepo(db)
	ledgerRepo := database.NewLedgerRepo(db)
	storeRepo := database.NewStoreRepo(db)

	orchestrator := ingest.NewOrchestrator(productRepo, ledgerRepo, storeRepo, httpClient)
	stats := orchestrator.Run(ctx, srcs)

	if stats.Failed() {
		slog.Error("Run finished with failed sources")
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// selectSources resolves the --source filter against the catalog. Without
// a filter all enabled sources run.
func selectSources(catalog *sources.Catalog, name string) ([]*sources.Source, error) {
	if name == "" {
		return catalog.Enabled(), nil
	}
	source, err := catalog.Get(name)
	if err != nil {
		return nil, err
	}
	return []*sources.Source{source}, nil
}
