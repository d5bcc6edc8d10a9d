package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"shop-service/internal/auth"
	"shop-service/internal/handler"
	mid "shop-service/internal/middleware"
	"shop-service/internal/service"
	"shop-service/internal/store"
	"shop-service/pkg/cache"
	"shop-service/pkg/config"
	"shop-service/pkg/database"
	"shop-service/pkg/jwtutil"
	"shop-service/pkg/logger"
	"shop-service/prometheus"
)

const bodyLimit = "1M"

func main() {
	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	if err := logger.InitLogger(appConfig); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting shop-service", appConfig.LogConfig()...)

	// Initialize Prometheus metrics
	metrics := prometheus.NewMetrics(appConfig.Metrics.Prefix)
	log.Info("Prometheus metrics initialized", zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize database
	db, err := database.InitDB(&appConfig.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := store.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database connection established")
	st := store.New(db)

	ctx := context.Background()
	checks := map[string]handler.Pinger{"database": st}

	// The product cache is optional; the service runs against the database alone
	var productCache service.ProductCache
	var cacheClient *cache.Cache
	if appConfig.Cache.Enabled {
		client, err := cache.NewClient(ctx, &appConfig.Cache)
		if err != nil {
			log.Warn("Redis unavailable, product cache disabled", zap.String("addr", appConfig.Cache.Addr), zap.Error(err))
		} else {
			cacheClient = cache.New(client, appConfig.Cache.Prefix, appConfig.Cache.TTL)
			productCache = cacheClient
			checks["cache"] = cacheClient
			log.Info("Product cache enabled",
				zap.String("addr", appConfig.Cache.Addr),
				zap.Duration("ttl", appConfig.Cache.TTL))
		}
	}

	// Initialize JWT utility
	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      appConfig.JWT.SigningKey,
		ExpirationHours: appConfig.JWT.ExpirationHours,
	})

	catalog := service.NewCatalogService(st, productCache, metrics)
	users := service.NewUserService(st, jwt, auth.NewPasswordHasher(), metrics)
	h := handler.New(handler.Services{
		Users:    users,
		Catalog:  catalog,
		Carts:    service.NewCartService(st),
		Orders:   service.NewOrderService(st, catalog, metrics),
		Comments: service.NewCommentService(st),
	}, appConfig.JWT, checks)

	if err := users.EnsureAdmin(ctx, appConfig.Admin); err != nil {
		log.Fatal("Failed to bootstrap admin account", zap.Error(err))
	}

	// Initialize Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     appConfig.Server.AllowOrigins,
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(mid.RequestID())
	e.Use(metrics.Middleware())
	e.Use(logger.Middleware(log))

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	h.RegisterRoutes(e, mid.NewAuth(jwt, appConfig.JWT.CookieName, metrics))

	// Start server
	go func() {
		port := appConfig.Server.Port
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	operations := map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			log.Info("Shutting down HTTP server")
			return e.Shutdown(ctx)
		},
		"database": func(ctx context.Context) error {
			log.Info("Closing database connection")
			return database.Close(db)
		},
	}
	if cacheClient != nil {
		operations["redis"] = func(ctx context.Context) error {
			log.Info("Closing Redis connection", zap.Any("cache_stats", cacheClient.Snapshot()))
			return cacheClient.Close()
		}
	}

	// Wait for shutdown signal and exit with appropriate code
	wait := gfshutdown.GracefulShutdown(context.Background(), appConfig.Server.ShutdownTimeout, operations)
	exitCode := <-wait
	log.Info("Application exited", zap.Int("exit_code", exitCode))
	log.Sync()
	os.Exit(exitCode)
}
