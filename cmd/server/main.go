// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/openclub/courtbook/internal/api/apiutil"
	"github.com/openclub/courtbook/internal/api/availability"
	"github.com/openclub/courtbook/internal/api/payments"
	"github.com/openclub/courtbook/internal/api/reservations"
	"github.com/openclub/courtbook/internal/api/waitlist"
	"github.com/openclub/courtbook/internal/booking"
	"github.com/openclub/courtbook/internal/config"
	"github.com/openclub/courtbook/internal/db"
	"github.com/openclub/courtbook/internal/events"
	"github.com/openclub/courtbook/internal/ratelimit"
	"github.com/openclub/courtbook/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	configPath := flag.String("config", "configs/app.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	emitter, closeEmitter, err := buildEmitter(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up event publishing")
	}
	defer closeEmitter()

	engine, err := booking.NewEngine(database, emitter, booking.EngineConfig{
		DefaultPolicy:             cfg.Booking.DefaultPolicy,
		DefaultGranularityMinutes: cfg.Booking.DefaultGranularityMinutes,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build booking engine")
	}

	limiter := ratelimit.New(nil)
	defer limiter.Close()

	apiutil.InitRateLimit(limiter, cfg.App.TrustProxy)
	availability.InitHandlers(engine)
	reservations.InitHandlers(engine)
	waitlist.InitHandlers(engine)
	payments.InitHandlers(engine)

	sched, err := scheduler.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build sweep scheduler")
	}
	sweeper := scheduler.NewSweeper(database, emitter, cfg.NoShowGrace())
	if err := sched.RegisterSweeps(sweeper); err != nil {
		log.Fatal().Err(err).Msg("Failed to register sweeps")
	}
	sched.Start()

	server := newServer(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := sched.Stop(); err != nil {
			log.Error().Err(err).Msg("Sweep scheduler shutdown failed")
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}

// buildEmitter always logs events; AMQP publishing is layered on when
// configured.
func buildEmitter(cfg *config.Config) (events.Emitter, func(), error) {
	sinks := events.MultiEmitter{events.LogEmitter{}}
	closeFn := func() {}

	if cfg.Events.PublishAMQP {
		amqpEmitter, err := events.NewAMQPEmitter(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, amqpEmitter)
		closeFn = amqpEmitter.Close
	}

	return sinks, closeFn, nil
}
