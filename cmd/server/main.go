/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the tour pricing and refund engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and environment, then parse command-line flags
  2. Pick the booking backend: local SQLite store or remote REST API
  3. Pick the guide cache: Redis when REDIS_ADDR is set, else in-memory
  4. Create booking service and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port         HTTP server port (APP_PORT, default: 8080)
  -db           SQLite database path (DB_PATH, default: tours.db)
                Use ":memory:" for in-memory database
  -backend-url  Booking system base URL (BACKEND_URL)
                When set, the SQLite store is not opened

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the cache janitor and close the database and Redis client
  4. Exit

EXAMPLES:
  # Standalone with demo scenarios
  ./server -db=":memory:"

  # Against the booking system, guides cached in Redis
  REDIS_ADDR=localhost:6379 ./server -backend-url=https://booking.internal/api

SEE ALSO:
  - config/config.go: Environment keys and defaults
  - api/server.go: Router configuration
  - booking/service.go: Quote, save and refund orchestration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/warp/tour-pricing/api"
	"github.com/warp/tour-pricing/backend"
	"github.com/warp/tour-pricing/booking"
	"github.com/warp/tour-pricing/cache"
	"github.com/warp/tour-pricing/config"
	"github.com/warp/tour-pricing/store/sqlite"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, dotenv, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	if !dotenv {
		logger.Debug("No .env file found, using environment")
	}

	// Flags
	port := flag.String("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	backendURL := flag.String("backend-url", cfg.BackendURL, "Booking system base URL (empty for standalone)")
	flag.Parse()

	cfg.Port = *port
	cfg.DBPath = *dbPath
	cfg.BackendURL = strings.TrimRight(*backendURL, "/")
	logger.SetLevel(cfg.LogLevel)

	// Booking backend
	var (
		bookings backend.Backend
		store    *sqlite.Store
	)
	if cfg.Standalone() {
		store, err = sqlite.New(cfg.DBPath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize database")
		}
		defer store.Close()
		bookings = store
		logger.WithField("db", cfg.DBPath).Info("Using local SQLite backend")
	} else {
		bookings = backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, logger)
		logger.WithField("backend_url", cfg.BackendURL).Info("Using remote booking backend")
	}

	// Guide cache
	guideCache, stopCache := newGuideCache(cfg, logger)
	defer stopCache()

	// Services
	svc := booking.NewService(bookings, cfg.BalanceDue, logger)
	if store != nil {
		svc.Recorder = store
	}
	guides := booking.NewGuideDirectory(bookings, guideCache, logger)

	handler := api.NewHandler(svc, guides, store, logger)
	router := api.NewRouter(handler, cfg.CORSOrigins...)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"port":        cfg.Port,
			"balance_due": cfg.BalanceDue,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
		return
	}

	logger.Info("Server stopped")
}

// newGuideCache returns the Redis cache when REDIS_ADDR is set and
// reachable, else a bounded in-memory cache purged by a janitor. The
// returned func releases whatever was started.
func newGuideCache(cfg config.Config, logger *logrus.Logger) (cache.Cache[[]backend.Guide], func()) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err == nil {
			logger.WithField("redis_addr", cfg.RedisAddr).Info("Caching guides in Redis")
			return cache.NewRedis[[]backend.Guide](client, "guides", cfg.GuideCacheTTL), func() { client.Close() }
		}
		logger.WithError(err).WithField("redis_addr", cfg.RedisAddr).Warn("Redis unreachable, caching guides in memory")
		client.Close()
	}

	mem := cache.NewMemory[[]backend.Guide](cfg.GuideCacheMaxEntries, cfg.GuideCacheTTL)
	janitor := cache.NewJanitor(mem, logger)
	if cfg.GuideCacheTTL > 0 {
		janitor.Interval = cfg.GuideCacheTTL
	}
	janitor.Start()
	return mem, janitor.Stop
}
