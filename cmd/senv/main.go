package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/senvtool/senv/cmd/senv/commands"
	"github.com/senvtool/senv/pkg/telemetry"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	setupLogging()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := commands.Execute(ctx, Version, Commit, BuildDate); err != nil {
		var exit *commands.ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.Code)
		}
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// setupLogging points the global logger at stderr, honouring LOG_LEVEL,
// LOG_FORMAT and SENV_DEBUG.
func setupLogging() {
	cfg := telemetry.ConfigFromEnviron(os.LookupEnv)
	log.Logger = telemetry.NewLoggerTo(os.Stderr, cfg.Logging)
	zerolog.SetGlobalLevel(telemetry.ParseLevel(cfg.Logging.Level))
}
