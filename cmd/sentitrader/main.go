// Command sentitrader runs the sentiment trading agents. It loads
// configuration, validates it, wires dependencies, sets up signal handling,
// and runs the configured mode once.
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

	"github.com/alanyoungcy/sentitrader/internal/app"
	"github.com/alanyoungcy/sentitrader/internal/config"
	"github.com/alanyoungcy/sentitrader/internal/crypto"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file (empty for defaults + env)")
	mode := flag.String("mode", "", "override mode: tick, unwind, run-all, status, archive")
	agent := flag.String("agent", "", "override agent name for tick and unwind")
	encryptTo := flag.String("encrypt-key", "", "encrypt SENTITRADER_WALLET_PRIVATE_KEY with SENTITRADER_WALLET_KEY_PASSWORD into this file and exit")
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *encryptTo != "" {
		if err := encryptKey(*encryptTo); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Load configuration.
	path := *configPath
	if _, err := os.Stat(path); err != nil && path == "config.toml" {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *agent != "" {
		cfg.Agent = *agent
	}

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("sentitrader starting",
		slog.String("mode", cfg.Mode),
		slog.String("agent", cfg.Agent),
	)

	application := app.New(cfg, logger)

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err = application.Run(ctx)
	application.Close()
	stop()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("interrupted")
			return
		}
		logger.Error("application exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// encryptKey writes an encrypted key file for use as
// wallet.encrypted_key_path.
func encryptKey(path string) error {
	key := os.Getenv("SENTITRADER_WALLET_PRIVATE_KEY")
	password := os.Getenv("SENTITRADER_WALLET_KEY_PASSWORD")
	if key == "" || password == "" {
		return errors.New("SENTITRADER_WALLET_PRIVATE_KEY and SENTITRADER_WALLET_KEY_PASSWORD must be set")
	}
	blob, err := crypto.EncryptKey(key, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("Encrypted key written to %s\n", path)
	return nil
}
