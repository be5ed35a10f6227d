package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/restaurant-storefront/internal/config"
	"github.com/iliyamo/restaurant-storefront/internal/database"
	"github.com/iliyamo/restaurant-storefront/internal/handler"
	"github.com/iliyamo/restaurant-storefront/internal/logger"
	"github.com/iliyamo/restaurant-storefront/internal/middleware"
	"github.com/iliyamo/restaurant-storefront/internal/orders"
	"github.com/iliyamo/restaurant-storefront/internal/queue"
	"github.com/iliyamo/restaurant-storefront/internal/repository"
	"github.com/iliyamo/restaurant-storefront/internal/router"
	queue_publisher "github.com/iliyamo/restaurant-storefront/internal/service"
	"github.com/iliyamo/restaurant-storefront/internal/storage"
	"github.com/iliyamo/restaurant-storefront/internal/storefront"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	sessCfg, err := config.LoadSessionConfig()
	if err != nil {
		log.Fatal("invalid session config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		User:         cfg.DBUser,
		Pass:         cfg.DBPass,
		Host:         cfg.DBHost,
		Port:         cfg.DBPort,
		Name:         cfg.DBName,
		PingAttempts: cfg.DBPingAttempts,
	})
	if err != nil {
		log.Fatal("mysql connect failed", "error", err)
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal("schema migration failed", "error", err)
		}
	}

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn("redis unavailable, caching and rate limiting disabled", "error", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	backend := sessionBackend(sessCfg, db, rdb, log)
	menuRepo := repository.NewMenuRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	publisher := queue_publisher.NewPublisher(cfg.AMQPURL, log)

	registry := storefront.NewRegistry(backend, orderRepo, storefront.Config{
		Policy:         sessCfg.Policy(),
		IdleTimeout:    sessCfg.IdleTimeout,
		Tracker:        orders.Config{SweepInterval: sessCfg.SweepInterval, PollInterval: sessCfg.PollInterval},
		ScrollThrottle: sessCfg.ScrollThrottle,
	}, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			kv := []interface{}{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String()}
			if v.Error != nil {
				log.Warn("request failed", append(kv, "error", v.Error)...)
				return nil
			}
			log.Debug("request", kv...)
			return nil
		},
	}))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log, middleware.WithJWTSecret(cfg.JWTSecret)))

	checks := map[string]handler.Pinger{"mysql": db.PingContext}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	router.Register(e, router.Handlers{
		Health:       &handler.HealthHandler{Checks: checks},
		Session:      &handler.SessionHandler{Registry: registry, Log: log},
		Cart:         &handler.CartHandler{},
		ActiveOrders: &handler.ActiveOrdersHandler{Log: log},
		Navigation:   &handler.NavigationHandler{},
		Menu:         &handler.MenuHandler{Menu: menuRepo, Log: log},
		Orders: &handler.OrderHandler{
			Orders:         orderRepo,
			Events:         publisher,
			Log:            log,
			DeliveryFee:    cfg.DeliveryFee,
			DeliveryWindow: orders.DefaultDeliveryWindow,
		},
		Auth:  &handler.AuthHandler{Cfg: cfg, Log: log},
		Admin: &handler.AdminHandler{Cfg: cfg, Orders: orderRepo, Events: publisher, Log: log},

		SessionMiddleware: middleware.Session(registry, middleware.SessionCookieConfig{Secure: cfg.CookieSecure, MaxAge: sessCfg.SlotExpiry}, log),
		Cache:             middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log),
		JWTSecret:         cfg.JWTSecret,
	})

	registry.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info("listening", "addr", addr, "env", cfg.Env, "session_store", sessCfg.Store)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return queue.StartOrderEventConsumer(gctx, cfg.AMQPURL, cfg.OrderLogDir, log)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := e.Shutdown(shutdownCtx)
		registry.Close(shutdownCtx)
		log.Info("shutdown complete")
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
	}
}

// sessionBackend picks the slot store named by SESSION_STORE.  Redis falls
// back to process memory when the server is unreachable.
func sessionBackend(cfg config.SessionConfig, db *sql.DB, rdb *redis.Client, log *logger.Logger) storage.Backend {
	switch cfg.Store {
	case "mysql":
		return storage.NewMySQLBackend(db)
	case "memory":
		return storage.NewMemoryBackend()
	default:
		if rdb == nil {
			log.Warn("session store redis unavailable, using memory")
			return storage.NewMemoryBackend()
		}
		return storage.NewRedisBackend(rdb, cfg.KeyPrefix, cfg.SlotExpiry)
	}
}
