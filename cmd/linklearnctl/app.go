package main

import (
	"context"
	"fmt"

	"github.com/dom/linklearn/internal/bus"
	"github.com/dom/linklearn/internal/config"
	"github.com/dom/linklearn/internal/repository"
	"github.com/dom/linklearn/internal/repository/postgres"
	"github.com/dom/linklearn/internal/service"
	"github.com/dom/linklearn/internal/telemetry"
	"github.com/dom/linklearn/internal/websocket"
	"github.com/nats-io/nats.go"
	"gorm.io/gorm"
)

// app holds the collaborators a command needs. Events raised by commands go
// through the same gateway as the server so connected sockets see them when
// redis is configured.
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	repos    *repository.Repositories
	services *service.Services
	closers  []func()
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	telemetry.SetupLogging(false, cfg.LogLevel)

	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	a := &app{cfg: cfg, db: db, repos: postgres.NewRepositories(db)}
	a.closers = append(a.closers, func() { postgres.Close(db) })

	var relay websocket.Relay = websocket.NewLocalRelay()
	if cfg.RedisURL != "" {
		client, err := websocket.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { client.Close() })
		relay = websocket.NewRedisRelay(client)
	}

	opts := []service.Option{service.WithNotifier(websocket.NewGateway(a.repos.Event, relay))}
	if cfg.NATSURL != "" {
		b, err := bus.New(cfg.NATSURL, nats.Name("linklearnctl"))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		a.closers = append(a.closers, b.Close)
		opts = append(opts, service.WithPublisher(b))
	}

	a.services = service.NewServices(a.repos, cfg, opts...)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
