// Package main is the standalone MCP entry point. It serves the LAI-PrEP
// assessment tools over stdio with the assessment history enabled, and is
// configured only through bridge.yaml and LAIPREP_* environment variables.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/lai-prep-bridge/internal/config"
	"github.com/lai-prep-bridge/internal/history"
	"github.com/lai-prep-bridge/internal/mcp"
)

func main() {
	settings, err := config.LoadSettings(viper.New(), os.Getenv("LAIPREP_SETTINGS"))
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	logger := settings.NewLogger(os.Stderr)

	store, err := history.NewSQLiteStore(settings.HistoryDBPath())
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}

	server, err := mcp.NewServer(settings, mcp.WithLogger(logger), mcp.WithHistoryStore(store))
	if err != nil {
		store.Close()
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithField("history_db", settings.HistoryDBPath()).Info("LAI-PrEP MCP server starting")
	if err := server.Run(ctx); err != nil {
		logger.WithError(err).Error("MCP server stopped with error")
		return
	}
	logger.Info("LAI-PrEP MCP server stopped")
}
