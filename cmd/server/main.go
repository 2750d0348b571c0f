// Package main is the entry point for the timecracker API server. It reads
// configuration from the environment, prepares the logger and the database
// directory, and hands off to internal/server.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mmmykhailo/timecracker-api/internal/config"
	"github.com/mmmykhailo/timecracker-api/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// The sqlite driver creates the file but not its parent directories.
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	if cfg.GitHubClientID == "" {
		logger.Warn("GITHUB_CLIENT_ID not set, GitHub login will fail at the redirect step")
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
