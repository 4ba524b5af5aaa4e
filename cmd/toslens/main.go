// Command toslens serves the TOS staking dashboard. It loads configuration,
// validates it, wires dependencies, sets up signal handling, and starts the
// application in the configured mode.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alanyoungcy/toslens/internal/app"
	"github.com/alanyoungcy/toslens/internal/config"
	"github.com/alanyoungcy/toslens/internal/crypto"
)

// passwordEnv names the variable holding the sealing password for
// -encrypt-secret. It is the same variable the config loader reads.
const passwordEnv = "TOSLENS_CHAIN_RPC_URL_PASSWORD"

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	encrypt := flag.Bool("encrypt-secret", false, "read a secret from stdin, print it sealed with $"+passwordEnv+" and exit")
	flag.Parse()

	if *encrypt {
		if err := encryptSecret(os.Stdin, os.Stdout, os.Getenv(passwordEnv)); err != nil {
			fmt.Fprintf(os.Stderr, "encrypt-secret: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// In once mode stdout carries the snapshot, so logs go to stderr.
	logOut := io.Writer(os.Stdout)
	if cfg.Mode == "once" {
		logOut = os.Stderr
	}
	logger = slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("toslens starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)
	logger.Debug("effective configuration", slog.Any("config", config.RedactedConfig(cfg)))

	application := app.New(cfg, logger)

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	runErr := application.Run(ctx)
	stop()
	application.Close()

	if runErr != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(runErr, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", runErr.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", runErr)
			os.Exit(1)
		}
	}

	logger.Info("toslens stopped")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// encryptSecret seals the first line of in and writes the JSON document to out.
func encryptSecret(in io.Reader, out io.Writer, password string) error {
	if password == "" {
		return fmt.Errorf("%s must be set", passwordEnv)
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read secret: %w", err)
	}
	sealed, err := crypto.Seal(strings.TrimSpace(line), password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(sealed))
	return err
}
