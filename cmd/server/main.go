package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/linklearn/internal/api"
	"github.com/dom/linklearn/internal/bus"
	"github.com/dom/linklearn/internal/config"
	"github.com/dom/linklearn/internal/reconcile"
	"github.com/dom/linklearn/internal/repository/postgres"
	"github.com/dom/linklearn/internal/service"
	"github.com/dom/linklearn/internal/telemetry"
	"github.com/dom/linklearn/internal/websocket"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	telemetry.SetupLogging(cfg.IsProduction(), cfg.LogLevel)

	shutdownTracing, err := telemetry.InitTracing(ctx, "linklearn", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}

	// Initialize database
	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	repos := postgres.NewRepositories(db)

	// Realtime fan-out
	var relay websocket.Relay = websocket.NewLocalRelay()
	if cfg.RedisURL != "" {
		client, err := websocket.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		relay = websocket.NewRedisRelay(client)
		log.Info().Msg("redis relay enabled")
	}
	gateway := websocket.NewGateway(repos.Event, relay)

	opts := []service.Option{service.WithNotifier(gateway)}
	if cfg.NATSURL != "" {
		b, err := bus.New(cfg.NATSURL, nats.Name("linklearn-server"))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer b.Close()
		opts = append(opts, service.WithPublisher(b))
		log.Info().Str("subject", bus.SubjectSettled).Msg("settlement events enabled")
	}

	services := service.NewServices(repos, cfg, opts...)

	hub := websocket.NewHub(services, cfg.TimerPolicyWS)
	go hub.Run()
	go func() {
		if err := relay.Run(ctx, hub.Deliver); err != nil {
			log.Error().Err(err).Msg("relay stopped")
		}
	}()

	go services.Presence.RunSweeper(ctx, cfg.PresenceSweepInterval)

	pool, err := reconcile.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open reconciliation pool")
	}
	defer pool.Close()
	go reconcile.NewChecker(pool).Watch(ctx, cfg.ReconcileInterval)

	log.Info().
		Str("ws_policy", string(cfg.TimerPolicyWS)).
		Str("http_policy", string(cfg.TimerPolicyHTTP)).
		Int64("seconds_per_credit", cfg.SecondsPerCredit).
		Int64("bank_cut_percent", cfg.BankCutPercent).
		Msg("timer policies")

	router := api.NewRouter(services, hub, cfg)

	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("environment", cfg.Environment).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	hub.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracing shutdown")
	}
	if err := postgres.Close(db); err != nil {
		log.Warn().Err(err).Msg("close database")
	}

	log.Info().Msg("server stopped")
}
