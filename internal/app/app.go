// Package app arma el grafo de dependencias del servicio a partir de la
// configuración. Lo usan cmd/service y cmd/tunetrail.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"

	"github.com/tunetrail/tunetrail/internal/apptoken"
	"github.com/tunetrail/tunetrail/internal/auth"
	"github.com/tunetrail/tunetrail/internal/cache"
	"github.com/tunetrail/tunetrail/internal/config"
	"github.com/tunetrail/tunetrail/internal/domain/repository"
	authctrl "github.com/tunetrail/tunetrail/internal/http/controllers/auth"
	catalogctrl "github.com/tunetrail/tunetrail/internal/http/controllers/catalog"
	healthctrl "github.com/tunetrail/tunetrail/internal/http/controllers/health"
	usersctrl "github.com/tunetrail/tunetrail/internal/http/controllers/users"
	"github.com/tunetrail/tunetrail/internal/http/router"
	"github.com/tunetrail/tunetrail/internal/jwt"
	"github.com/tunetrail/tunetrail/internal/metrics"
	"github.com/tunetrail/tunetrail/internal/oauthlink"
	"github.com/tunetrail/tunetrail/internal/observability/logger"
	"github.com/tunetrail/tunetrail/internal/provider/deezer"
	"github.com/tunetrail/tunetrail/internal/provider/overpass"
	"github.com/tunetrail/tunetrail/internal/provider/spotify"
	"github.com/tunetrail/tunetrail/internal/rate"
	"github.com/tunetrail/tunetrail/internal/security/password"
	"github.com/tunetrail/tunetrail/internal/security/secretbox"
	"github.com/tunetrail/tunetrail/internal/session"
	"github.com/tunetrail/tunetrail/internal/store/memory"
	"github.com/tunetrail/tunetrail/internal/store/pg"
	"github.com/tunetrail/tunetrail/internal/tokenrefresh"
	"github.com/tunetrail/tunetrail/internal/upstream"
	migrations "github.com/tunetrail/tunetrail/migrations/postgres"
)

// Storage es lo mínimo que la app necesita del backend de datos.
type Storage struct {
	UoW repository.UnitOfWork
	// PG es nil con el driver memory.
	PG *pg.Store
}

// OpenStorage abre el store configurado. Con Postgres.Migrate aplica las
// migraciones pendientes.
func OpenStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg.Storage.Driver != "postgres" {
		return &Storage{UoW: memory.New()}, nil
	}
	st, err := pg.New(ctx, cfg.Storage.DSN, pg.PoolConfig{
		MaxConns:        cfg.Storage.Postgres.MaxConns,
		MinConns:        cfg.Storage.Postgres.MinConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Postgres.Migrate {
		if _, err := st.Migrate(ctx, migrations.PostgresFS, pg.Up, 0); err != nil {
			st.Close()
			return nil, err
		}
	}
	return &Storage{UoW: st, PG: st}, nil
}

func (s *Storage) Close() {
	if s.PG != nil {
		s.PG.Close()
	}
}

// Hashing devuelve los parámetros argon2id configurados.
func Hashing(cfg *config.Config) password.Params {
	if cfg.Security.PasswordHashing == "fast" {
		return password.Fast
	}
	return password.Default
}

// App es el servicio cableado.
type App struct {
	Handler   http.Handler
	Storage   *Storage
	Sessions  *session.Store
	Auth      *auth.Service
	AppTokens *apptoken.Registry
	Spotify   *spotify.Client

	closers []func() error
}

// New construye todas las piezas. Registry nil = prometheus.DefaultRegisterer.
func New(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	log := logger.From(ctx).With(logger.Component("app"))
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	// 1. Storage
	st, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("app: storage: %w", err)
	}
	a.Storage = st
	a.closers = append(a.closers, func() error { st.Close(); return nil })

	// 2. Métricas
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}
	if st.PG != nil {
		if err := metrics.RegisterPool(reg, st.PG.Pool); err != nil {
			return nil, fmt.Errorf("app: pool metrics: %w", err)
		}
	}

	// 3. Cache + rate limiter (comparten el cliente redis)
	var (
		shared  cache.Client
		limiter rate.Limiter
		redis   *rdb.Client
	)
	if cfg.Cache.Kind == "redis" {
		redis = rdb.NewClient(&rdb.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		shared = cache.FromRedis(redis, cfg.Cache.Redis.Prefix)
		if err := shared.Ping(ctx); err != nil {
			log.Warn("redis not reachable at startup", logger.Err(err))
		}
	} else {
		shared = cache.NewMemory(cfg.Cache.Redis.Prefix)
	}
	a.closers = append(a.closers, shared.Close)
	if cfg.Rate.Enabled {
		if redis != nil {
			limiter = rate.NewRedisLimiter(redis, cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.Login.Limit, cfg.Rate.Login.Window)
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.Login.Limit, cfg.Rate.Login.Window)
		}
	}

	// 4. Seguridad
	box, err := secretbox.FromString(cfg.Security.SecretBoxMasterKey)
	if err != nil {
		return nil, fmt.Errorf("app: secretbox: %w", err)
	}
	issuer, err := jwt.NewIssuer(cfg.JWT.Secret, cfg.JWT.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("app: issuer: %w", err)
	}

	// 5. Providers, cada uno con su gateway y su gate
	gates := map[string]*upstream.Gate{}
	spGW := upstream.New(spotify.GatewayConfig(cfg.Upstream.MaxRetries, cfg.Upstream.AttemptTimeout))
	gates[spotify.Provider] = spGW.Gate()
	if !cfg.SpotifyConfigured() {
		log.Warn("spotify credentials missing; OAuth and catalog calls will fail")
	}
	a.Spotify = spotify.New(spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURI:  cfg.Spotify.RedirectURI,
		Scopes:       cfg.Spotify.Scopes,
		AccountsURL:  cfg.Spotify.AccountsURL,
		APIURL:       cfg.Spotify.APIURL,
	}, spGW, spotify.WithSharedAppToken(shared))
	a.AppTokens = apptoken.NewRegistry()
	a.AppTokens.Register(a.Spotify.AppTokens())

	catalog := &catalogctrl.Controller{Tracks: a.Spotify}
	if cfg.Deezer.Enabled {
		gw := upstream.New(deezer.GatewayConfig(cfg.Upstream.MaxRetries, cfg.Upstream.AttemptTimeout))
		gates[deezer.Provider] = gw.Gate()
		catalog.ISRC = deezer.New(cfg.Deezer.APIURL, gw)
	}
	if cfg.Overpass.Enabled {
		gw := upstream.New(overpass.GatewayConfig(cfg.Upstream.MaxRetries, cfg.Upstream.AttemptTimeout))
		gates[overpass.Provider] = gw.Gate()
		catalog.Localities = overpass.New(cfg.Overpass.APIURL, gw)
	}

	// 6. Core
	a.Sessions = session.New(session.WithTTL(cfg.Session.TTL))
	links := oauthlink.NewManager(box)
	deps := auth.Deps{
		UoW:      st.UoW,
		Sessions: a.Sessions,
		Links:    links,
		Tokens: tokenrefresh.New(tokenrefresh.Deps{
			UoW:          st.UoW,
			Links:        links,
			Sessions:     a.Sessions,
			Refresher:    a.Spotify,
			SafetyMargin: cfg.Spotify.SafetyMargin,
		}),
		Issuer:  issuer,
		Spotify: a.Spotify,
		Hashing: Hashing(cfg),
	}
	if cfg.Spotify.StateCheck {
		deps.States = auth.NewStateStore(shared)
	}
	a.Auth = auth.NewService(deps)

	// 7. HTTP
	health := healthctrl.Deps{Gates: gates, Version: cfg.App.Version}
	if st.PG != nil {
		health.DB = st.PG.Ping
	}
	if redis != nil {
		health.Cache = shared.Ping
	}
	var gatherer prometheus.Gatherer
	if g, isGatherer := reg.(prometheus.Gatherer); isGatherer {
		gatherer = g
	}
	a.Handler = router.New(router.Deps{
		Issuer:       issuer,
		Auth:         authctrl.NewController(a.Auth),
		Users:        usersctrl.NewController(a.Auth),
		Catalog:      catalog,
		Health:       healthctrl.NewHealthController(health),
		LoginLimiter: limiter,
		Gatherer:     gatherer,
	})

	ok = true
	log.Info("app wired",
		logger.String("storage", cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Kind),
		logger.Bool("rate_limit", limiter != nil),
		logger.Int("providers", len(gates)))
	return a, nil
}

// Close libera recursos en orden inverso.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
