package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/AlibekovAA/authcore/internal/account/repository"
	authhttp "github.com/AlibekovAA/authcore/internal/auth/http"
	"github.com/AlibekovAA/authcore/internal/auth/service"
	"github.com/AlibekovAA/authcore/internal/auth/token"
	"github.com/AlibekovAA/authcore/internal/common/clock"
	"github.com/AlibekovAA/authcore/internal/common/config"
	"github.com/AlibekovAA/authcore/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/authcore/internal/common/crypto"
	"github.com/AlibekovAA/authcore/internal/common/db"
	commonhttp "github.com/AlibekovAA/authcore/internal/common/http"
	"github.com/AlibekovAA/authcore/internal/common/jwtverify"
	"github.com/AlibekovAA/authcore/internal/common/logger"
	"github.com/AlibekovAA/authcore/internal/common/resilience"
)

// AuthApp owns every long-lived dependency of the auth service.
type AuthApp struct {
	Config        config.AuthConfig
	Log           *logger.Logger
	Store         *repository.BreakerStore
	Tokens        *token.Service
	Authenticator *jwtverify.Authenticator
	Service       *service.AuthService
	RateLimiter   *commonhttp.PathRateLimiter
	HealthChecks  map[string]commonhttp.HealthCheck

	closers []func()
}

func NewAuthApp(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) (*AuthApp, error) {
	app := &AuthApp{
		Config:       cfg,
		Log:          log,
		HealthChecks: map[string]commonhttp.HealthCheck{},
	}

	inner, err := app.openStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = repository.NewBreakerStore(inner, resilience.CircuitBreakerConfig{
		Threshold:  cfg.CircuitBreakerThreshold,
		Timeout:    cfg.CircuitBreakerTimeout,
		ResetAfter: cfg.CircuitBreakerReset,
		Name:       "account_store",
		Logger:     log,
	})

	hasher, err := commoncrypto.NewArgon2idHasher(commoncrypto.Argon2Params{
		Memory:      cfg.HashMemoryKiB,
		Time:        cfg.HashTime,
		Parallelism: cfg.HashParallelism,
		SaltLength:  constants.HashSaltLength,
		KeyLength:   constants.HashKeyLength,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	pool := commoncrypto.NewHashPool(hasher, cfg.HashWorkers)
	log.Infof("password hashing: argon2id m=%d t=%d p=%d workers=%d",
		cfg.HashMemoryKiB, cfg.HashTime, cfg.HashParallelism, pool.Workers())

	ids := commoncrypto.NewUUIDGenerator()
	clk := clock.NewRealClock()

	app.Tokens, err = token.NewService(token.Config{
		Secret:   []byte(cfg.JWTSecret),
		Lifetime: cfg.TokenLifetime,
		Issuer:   cfg.TokenIssuer,
	}, ids, clk)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Authenticator = jwtverify.NewAuthenticator(app.Tokens)

	app.Service, err = service.NewAuthService(service.AuthServiceDeps{
		Store:       app.Store,
		Hasher:      pool,
		Tokens:      app.Tokens,
		IDGenerator: ids,
		Clock:       clk,
		Log:         log,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	clientIP, err := commonhttp.NewClientIPResolver(cfg.TrustedProxies)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.RateLimiter = commonhttp.NewPathRateLimiter(commonhttp.DefaultAuthRateLimits(), clientIP)
	app.closers = append(app.closers, app.RateLimiter.Stop)

	return app, nil
}

// Handler is the complete HTTP surface with the shared middleware chain.
func (a *AuthApp) Handler() http.Handler {
	api := authhttp.NewHandler(authhttp.HandlerDeps{
		Auth:          a.Service,
		Authenticator: a.Authenticator,
		RateLimiter:   a.RateLimiter,
		HealthChecks:  a.HealthChecks,
		Config:        a.Config,
		Log:           a.Log,
	})
	return commonhttp.BuildBaseHandler("auth", a.Log, api, commonhttp.BaseHandlerOptions{
		MaxRequestBytes: a.Config.MaxRequestBytes,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *AuthApp) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *AuthApp) openStore(ctx context.Context) (repository.Store, error) {
	switch a.Config.StoreDriver {
	case config.StoreMemory:
		a.Log.Warn("using in-memory account store: accounts are lost on restart")
		return repository.NewMemoryStore(), nil

	case config.StorePostgres:
		if err := MigrateDatabase(ctx, a.Config, a.Log); err != nil {
			return nil, err
		}
		pool, err := db.NewPool(ctx, a.Log, a.Config.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)

		metricsCtx, stopMetrics := context.WithCancel(context.Background())
		a.closers = append(a.closers, stopMetrics)
		db.StartPoolMetrics(metricsCtx, pool, constants.DBPoolMetricsInterval)

		a.HealthChecks["database"] = pingPool(pool)
		return repository.NewPgStore(pool), nil

	case config.StoreSQLite:
		conn, err := db.OpenSQLite(ctx, a.Config.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = conn.Close() })

		if err := repository.Migrate(ctx, conn, repository.DialectSQLite, a.Log); err != nil {
			return nil, err
		}
		a.HealthChecks["database"] = conn.PingContext
		return repository.NewSQLiteStore(conn), nil
	}

	return nil, fmt.Errorf("unknown store driver %q", a.Config.StoreDriver)
}

// MigrateDatabase brings the configured database to the latest schema.
func MigrateDatabase(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) error {
	conn, dialect, err := openMigrationDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	return repository.Migrate(ctx, conn, dialect, log)
}

// SchemaVersion reports the applied schema version of the configured database.
func SchemaVersion(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) (int64, error) {
	conn, dialect, err := openMigrationDB(ctx, cfg, log)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	return repository.SchemaVersion(ctx, conn, dialect)
}

func openMigrationDB(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) (*sql.DB, string, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		conn, err := db.OpenPostgresSQL(ctx, log, cfg.DatabaseURL)
		return conn, repository.DialectPostgres, err
	case config.StoreSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.DatabaseURL)
		return conn, repository.DialectSQLite, err
	}
	return nil, "", fmt.Errorf("store driver %q has no schema", cfg.StoreDriver)
}

func pingPool(pool *pgxpool.Pool) commonhttp.HealthCheck {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}
