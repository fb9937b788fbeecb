// cmd/nutrition-agent/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"nutrition-agent/internal/agent"
	"nutrition-agent/internal/config"
	"nutrition-agent/internal/fdc"
	"nutrition-agent/internal/llm"
	"nutrition-agent/internal/server"
	"nutrition-agent/internal/storage"
)

var (
	configPath = flag.String("config", "nutrition-agent.toml", "Path to TOML config file")
	port       = flag.Int("port", 8012, "Port for HTTP transport")
	host       = flag.String("host", "0.0.0.0", "Host address")
	dbPath     = flag.String("db-path", "", "Database path (overrides config)")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	version    = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("nutrition-agent version 1.0.0")
		os.Exit(0)
	}

	logger, err := newLogger(*debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize ledger store", zap.Error(err))
	}
	defer store.Close()

	completer := llm.NewClient(cfg.LLM, logger)
	searcher := fdc.NewClient(cfg.Lookup, logger)
	engine := agent.NewEngine(completer, searcher, store, cfg.Estimation, logger)

	srv := server.New(&server.Config{Host: *host, Port: *port}, engine, store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	logger.Info("shutting down")
	cancel()
	if err := srv.Stop(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
