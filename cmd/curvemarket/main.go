// Command curvemarket runs the market operator: the HTTP/WS API over the
// hosted ledger, the keeper loop, or both.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/curvemarket/internal/app"
	"github.com/alanyoungcy/curvemarket/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	checkOnly := flag.Bool("check", false, "validate the configuration and exit")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config failed", slog.String("path", *configPath), slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	// Validate has already restricted log_level to names slog understands.
	_ = level.UnmarshalText([]byte(cfg.LogLevel))

	logger.Debug("effective configuration", slog.Any("config", config.RedactedConfig(cfg)))
	if *checkOnly {
		logger.Info("configuration ok", slog.String("path", *configPath))
		return
	}

	logger.Info("curvemarket starting", slog.String("mode", cfg.Mode), slog.String("config", *configPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, logger)
	defer application.Close()

	err = application.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info("curvemarket stopped")
	default:
		logger.Error("curvemarket exited", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		application.Close()
		os.Exit(1)
	}
}
