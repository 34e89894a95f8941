package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pharmfinder/m/internal/admin"
	"pharmfinder/m/internal/api"
	"pharmfinder/m/internal/backend"
	"pharmfinder/m/internal/cart"
	"pharmfinder/m/internal/checkout"
	"pharmfinder/m/internal/config"
	"pharmfinder/m/internal/database"
	"pharmfinder/m/internal/geo"
	"pharmfinder/m/internal/migrations"
	"pharmfinder/m/internal/prescription"
	"pharmfinder/m/internal/search"
	"pharmfinder/m/internal/store"
)

// app is the wired application shared by every command.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	db     *sqlx.DB
	redis  *redis.Client
	client *backend.Client
	state  store.Store
	svc    api.Services
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, db: db}
	a.state = store.NewSQLStore(db)
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		a.state = store.NewRedisStore(a.redis)
		logger.Info("device state kept in redis", zap.String("addr", cfg.RedisAddr))
	}

	a.client = backend.New(cfg.BackendURL, cfg.BackendTimeout, logger)
	locations := geo.NewCache(a.state, logger)
	carts := cart.NewService(a.state, logger)
	finder := search.NewService(a.client, locations, logger)

	var extractor prescription.Extractor = prescription.BackendExtractor{Backend: a.client}
	if cfg.AIEnabled() {
		extractor = prescription.NewLLMExtractor(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, finder, logger)
		logger.Info("prescription text extraction through llm", zap.String("model", cfg.OpenAIModel))
	}

	a.svc = api.Services{
		Lookup:        a.client,
		Search:        finder,
		Locations:     locations,
		Carts:         carts,
		Checkout:      checkout.NewService(carts, a.client, db, logger),
		Prescriptions: prescription.NewService(a.client, extractor, logger),
		Admin:         admin.NewService(a.client, logger),
	}
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.db.Close()
}
