package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rescue/rescue/internal/config"
	"github.com/rescue/rescue/internal/domain/hospital"
	"github.com/rescue/rescue/internal/domain/hospitalrequest"
	"github.com/rescue/rescue/internal/domain/identity"
	"github.com/rescue/rescue/internal/domain/sos"
	"github.com/rescue/rescue/internal/platform/db"
	"github.com/rescue/rescue/internal/platform/events"
	"github.com/rescue/rescue/internal/platform/metrics"
	"github.com/rescue/rescue/internal/platform/push"
	"github.com/rescue/rescue/internal/platform/push/expo"
	"github.com/rescue/rescue/internal/platform/push/fcm"
	"github.com/rescue/rescue/internal/platform/settings"
	"github.com/rescue/rescue/migrations"
)

const (
	metricsJob   = "rescuectl"
	eventsMaxLen = 10000
)

// app is the dependency graph one command runs against.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	pool    *pgxpool.Pool
	redis   *redis.Client
	metrics *metrics.Metrics

	settingsStore *settings.Store
	settingsCache *settings.CachedProvider
	stream        *events.RedisStreamPublisher

	users     *identity.Service
	hospitals *hospital.Service
	sos       *sos.Service
	requests  *hospitalrequest.Service
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg != nil && cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	level := zerolog.InfoLevel
	if cfg != nil {
		if l, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil && l != zerolog.NoLevel {
			level = l
		}
	}
	return logger.Level(level)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
}

func migrationFiles(cfg *config.Config) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
}

// newApp connects to Postgres (and Redis when REDIS_URL is set) and builds
// the services.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: newLogger(cfg)}

	a.pool, err = openPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Msg("connected to database")

	var publisher events.Publisher = events.NopPublisher{}
	var radius settings.Provider
	a.settingsStore = settings.NewStore(a.pool, cfg.StoreTimeout, a.logger)
	radius = a.settingsStore

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		a.settingsCache = settings.NewCachedProvider(a.redis, a.settingsStore, cfg.SettingsCacheTTL, a.logger)
		radius = a.settingsCache
		a.stream = events.NewRedisStreamPublisher(a.redis, cfg.EventsStream, eventsMaxLen)
		publisher = a.stream
	}

	a.metrics = metrics.New(prometheus.NewRegistry())

	provider, err := newPushProvider(ctx, cfg, a.logger)
	if err != nil {
		a.close()
		return nil, err
	}
	gateway := push.NewGateway(provider, push.Config{
		MaxConcurrency: cfg.PushMaxConcurrency,
		SendTimeout:    cfg.PushSendTimeout,
	}, a.metrics, a.logger)
	templates := push.NewTemplateEngine()

	userRepo := identity.NewRepo(a.pool, cfg.StoreTimeout)
	a.users = identity.NewService(userRepo, a.logger)
	a.hospitals = hospital.NewService(hospital.NewRepo(a.pool, cfg.StoreTimeout))

	a.sos = sos.NewService(sos.Deps{
		Requests:  sos.NewRepo(a.pool, cfg.StoreTimeout),
		Users:     userRepo,
		Hospitals: a.hospitals,
		Settings:  radius,
		Gateway:   gateway,
		Templates: templates,
		Events:    publisher,
		Metrics:   a.metrics,
		Tx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.WithTx(ctx, a.pool, fn)
		},
		DefaultRadiusKm: cfg.SosDefaultRadiusKm,
		Logger:          a.logger,
	})
	a.requests = hospitalrequest.NewService(hospitalrequest.Deps{
		Requests:  hospitalrequest.NewRepo(a.pool, cfg.StoreTimeout),
		Users:     userRepo,
		Hospitals: a.hospitals,
		Sos:       a.sos,
		Gateway:   gateway,
		Templates: templates,
		Events:    publisher,
		Metrics:   a.metrics,
		Logger:    a.logger,
	})
	return a, nil
}

func newPushProvider(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (push.Provider, error) {
	switch cfg.PushProvider {
	case config.PushProviderFCM:
		p, err := fcm.New(ctx, cfg.FirebaseCredentialsFile, cfg.FirebaseProjectID)
		if err != nil {
			return nil, fmt.Errorf("init fcm provider: %w", err)
		}
		return p, nil
	case config.PushProviderExpo:
		return expo.New(cfg.ExpoBaseURL, cfg.ExpoAccessToken), nil
	default:
		return push.NewLogProvider(logger), nil
	}
}

// close pushes metrics when a pushgateway is configured and releases
// connections.
func (a *app) close() {
	if a.metrics != nil && a.cfg.PushgatewayURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.StoreTimeout)
		if err := a.metrics.Push(ctx, a.cfg.PushgatewayURL, metricsJob); err != nil {
			a.logger.Warn().Err(err).Msg("push metrics failed")
		}
		cancel()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
