// Command lexlive runs a live legal session from the terminal: it
// provisions a session, publishes mixed local audio to the media room and
// records the transcript until interrupted.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"

	"lexlive/internal/bootstrap"
	"lexlive/internal/config"
	"lexlive/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init(logging.Config{Level: "info", Format: "console"})
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.1,
		}); err != nil {
			log.Warn().Err(err).Msg("sentry init failed, continuing without error reporting")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	orchestrator := bootstrap.Build(cfg, consoleNotifier{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := orchestrator.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("could not start live session")
	}

	<-ctx.Done()
	stop()
	log.Info().Msg("shutting down")

	entries := orchestrator.Transcript()
	orchestrator.End(context.Background())

	if len(entries) > 0 {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(entries); err != nil {
			log.Error().Err(err).Msg("could not write transcript")
		}
	}
}

// consoleNotifier surfaces user-facing notifications through the logger;
// the terminal is the toast layer here.
type consoleNotifier struct{}

func (consoleNotifier) Notify(level, title, message string) {
	event := log.Info()
	if level == "error" {
		event = log.Error()
	}
	event.Str("title", title).Msg(message)
}
