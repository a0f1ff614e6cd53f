// Package app wires the Supreme server runtime: config, logging, stores, HTTP routes,
// the change feed and the realtime gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	authapi "github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/auth/api"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/auth/session"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/chat"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/leads"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/metrics"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/ratelimit"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/realtime"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/whatsapp"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/security/password"
)

// App is the Supreme server runtime: it owns the HTTP server, the change feed and every
// resource they depend on.
type App struct {
	cfg Config
	log Logger

	metrics *metrics.Metrics

	dbPool    *pgxpool.Pool
	dbEnabled bool
	rdb       redis.UniversalClient

	feed *realtime.Feed
	hub  *realtime.Hub

	handler http.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogColor)
	}

	a := &App{cfg: cfg, log: log, metrics: metrics.New()}
	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	fp, err := loadFingerprint(cfg)
	if err != nil {
		return err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	if sessCfg.EphemeralKey {
		log.Warn("auth.ephemeral_key", "note", "tokens will not survive a restart")
	}
	tokens, err := session.NewPasetoV4PublicManager(sessCfg)
	if err != nil {
		return err
	}
	sessions := session.NewService(sessCfg, tokens)

	hasher, err := password.HasherFromEnv()
	if err != nil {
		return fmt.Errorf("password config: %w", err)
	}

	msgStore, leadStore, err := a.openStores(ctx)
	if err != nil {
		return err
	}

	var limitStore ratelimit.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.rdb = rdb
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		limitStore = ratelimit.NewRedisStore(rdb, "")

		a.feed, err = realtime.NewRedisFeed(ctx, log, rdb, realtime.RedisFeedConfig{
			Group:  cfg.FeedGroup,
			Tables: realtime.Tables(),
		})
		if err != nil {
			return err
		}
		log.Info("redis.enabled", "addr", cfg.RedisAddr, "feed_group", cfg.FeedGroup)
	} else {
		a.feed = realtime.NewMemoryFeed(log)
		log.Info("redis.disabled.inprocess_feed")
	}

	a.hub = realtime.NewHub(log, a.metrics)
	ws := realtime.NewWSGateway(log, a.hub, sessions, realtime.LoadGatewayConfigFromEnv())

	authCfg := authapi.LoadConfigFromEnv()
	authCfg.TrustProxy = cfg.TrustProxy
	authOpts := []authapi.HandlerOption{
		authapi.WithMetrics(a.metrics),
		authapi.WithFingerprint(fp),
		authapi.WithPasswordHasher(hasher),
	}
	if limitStore != nil {
		authOpts = append(authOpts, authapi.WithLimitStore(limitStore))
	}
	auth, err := authapi.NewHandler(log, authCfg, sessions, authOpts...)
	if err != nil {
		return err
	}
	if authCfg.AdminPasswordHash == "" {
		log.Warn("auth.admin.disabled", "reason", "SUPREME_ADMIN_PASSWORD_HASH not set")
	}

	chatOpts := []chat.ServiceOption{chat.WithMetrics(a.metrics)}
	leadOpts := []leads.ServiceOption{leads.WithMetrics(a.metrics)}
	if limitStore != nil {
		chatOpts = append(chatOpts, chat.WithLimitStore(limitStore))
		leadOpts = append(leadOpts, leads.WithLimitStore(limitStore))
	}
	chatSvc := chat.NewService(log, msgStore, a.feed, chatOpts...)
	leadSvc := leads.NewService(log, leadStore, a.feed, leadOpts...)

	var sender whatsapp.Sender
	if waCfg := whatsapp.LoadConfigFromEnv(); waCfg.Enabled() {
		sender = whatsapp.NewClient(waCfg, nil)
		log.Info("whatsapp.enabled", "phone_number_id", waCfg.PhoneNumberID, "api_version", waCfg.APIVersion)
	} else {
		log.Info("whatsapp.disabled")
	}

	mux := http.NewServeMux()
	registerHTTP(mux, routes{
		log:       log,
		cfg:       cfg,
		dbPool:    a.dbPool,
		dbEnabled: a.dbEnabled,
		metrics:   a.metrics,
		ws:        ws,
		auth:      auth,
		chat:      chat.NewHandler(log, chatSvc, auth),
		leads:     leads.NewHandler(log, leadSvc, auth, fp, cfg.TrustProxy),
		whatsapp:  whatsapp.NewHandler(log, sender, auth, a.metrics),
	})

	a.handler = WithRequestLogging(WithSecurityHeaders(WithCORS(mux, cfg, log)), log)
	return nil
}

// openStores decides between Postgres-backed persistence and in-memory dev stores.
// The app owns the pool; the stores' Close is a no-op.
func (a *App) openStores(ctx context.Context) (chat.MessageStore, leads.Store, error) {
	if a.cfg.DatabaseURL == "" {
		a.log.Info("db.disabled.inmemory_store")
		return chat.NewInMemoryStore(), leads.NewInMemoryStore(), nil
	}

	pool, err := NewDBPool(ctx, a.cfg)
	if err != nil {
		return nil, nil, err
	}
	a.dbPool = pool
	a.dbEnabled = true

	msgStore, err := chat.NewPostgresStore(pool, chat.WithSchema(a.cfg.DBSchema))
	if err != nil {
		return nil, nil, err
	}
	if err := msgStore.EnsureSchema(ctx); err != nil {
		return nil, nil, err
	}
	leadStore, err := leads.NewPostgresStore(pool, a.cfg.DBSchema)
	if err != nil {
		return nil, nil, err
	}
	if err := leadStore.EnsureSchema(ctx); err != nil {
		return nil, nil, err
	}

	a.log.Info("db.enabled.postgres_store", "schema", a.cfg.DBSchema)
	return msgStore, leadStore, nil
}

// Handler exposes the fully wrapped HTTP handler (tests).
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP and pumps the change feed into the hub until ctx ends or either fails.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"url", base,
		"ws_url", wsBaseURL(base)+"/realtime",
		"db_enabled", a.dbEnabled,
		"redis_enabled", a.rdb != nil,
	)

	g, gctx := errgroup.WithContext(ctx)

	// Subscribe before serving: the in-process feed drops changes nobody listens to yet.
	changes, err := a.feed.Subscribe(gctx, realtime.Tables())
	if err != nil {
		return fmt.Errorf("realtime feed: %w", err)
	}

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := changes.Run(a.hub.Deliver)
		if err != nil && gctx.Err() == nil {
			a.log.Error("realtime.feed.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	err = g.Wait()
	a.log.Info("server.stopped")
	return err
}

func (a *App) close() {
	if a.feed != nil {
		if err := a.feed.Close(); err != nil {
			a.log.Error("realtime.feed.close.fail", "err", err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// runtimeBaseURL turns a listen address into a URL a local client can dial.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// wsBaseURL maps an http(s) base URL to its ws(s) form.
func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
