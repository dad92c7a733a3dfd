package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/leadflow-api/internal/handler"
	"github.com/noah-isme/leadflow-api/internal/repository"
	"github.com/noah-isme/leadflow-api/internal/service"
	"github.com/noah-isme/leadflow-api/pkg/cache"
	"github.com/noah-isme/leadflow-api/pkg/config"
	"github.com/noah-isme/leadflow-api/pkg/database"
)

const cacheNamespace = "leadflow"

// app owns the long-lived infrastructure shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *sqlx.DB
	redis    *redis.Client
	validate *validator.Validate
	metrics  *service.MetricsService
	auth     *service.AuthService
	store    *service.LeadStore
}

// bootstrap connects the configured persistence and loads the lead collection.
func bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		validate: service.NewValidator(),
		metrics:  service.NewMetricsService(),
	}

	persister, err := a.persister(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	a.auth = service.NewAuthService(cfg.Auth.Users, a.validate, logger, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	a.store = service.NewLeadStore(service.LeadStoreParams{
		Persister: persister,
		Validator: a.validate,
		Metrics:   a.metrics,
		Logger:    logger,
	})
	if err := a.store.Load(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("load leads: %w", err)
	}
	logger.Info("lead store loaded", zap.String("driver", cfg.Persistence.Driver), zap.Int("leads", a.store.Len()))
	return a, nil
}

func (a *app) persister(ctx context.Context) (service.LeadPersister, error) {
	switch a.cfg.Persistence.Driver {
	case config.DriverRedis:
		client, err := a.redisClient()
		if err != nil {
			return nil, err
		}
		return repository.NewRedisLeadRepository(client, a.cfg.Persistence.LeadsKey), nil
	case config.DriverPostgres, config.DriverSQLite:
		db, err := database.Open(a.cfg)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", a.cfg.Persistence.Driver, err)
		}
		a.db = db
		if err := repository.EnsureSchema(ctx, db); err != nil {
			return nil, err
		}
		return repository.NewSQLLeadRepository(db), nil
	default:
		a.logger.Warn("using in-memory lead persistence; data is lost on restart")
		return repository.NewMemoryLeadRepository(), nil
	}
}

func (a *app) redisClient() (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	client, err := cache.NewRedis(a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.redis = client
	return client, nil
}

// dashboardCache returns nil when caching is disabled or redis is unreachable.
func (a *app) dashboardCache() *service.CacheService {
	if !a.cfg.Dashboard.CacheEnabled {
		return nil
	}
	client, err := a.redisClient()
	if err != nil {
		a.logger.Warn("dashboard cache disabled", zap.Error(err))
		return nil
	}
	repo := repository.NewCacheRepository(client, cacheNamespace, a.logger)
	return service.NewCacheService(repo, a.metrics, a.cfg.Dashboard.CacheTTL, a.logger, true)
}

func (a *app) readinessChecks() map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"store": func(context.Context) error {
			if a.store == nil {
				return fmt.Errorf("lead store not loaded")
			}
			return nil
		},
	}
	if a.db != nil {
		checks["database"] = func(ctx context.Context) error { return a.db.PingContext(ctx) }
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	return checks
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
}

func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
