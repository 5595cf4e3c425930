package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/designpm/designpm-core/internal/adapters/driven/notify"
	"github.com/designpm/designpm-core/internal/adapters/driven/postgres"
	redisadapter "github.com/designpm/designpm-core/internal/adapters/driven/redis"
	"github.com/designpm/designpm-core/internal/adapters/driven/render"
	"github.com/designpm/designpm-core/internal/adapters/driving/http"
	"github.com/designpm/designpm-core/internal/config"
	"github.com/designpm/designpm-core/internal/core/ports/driven"
	"github.com/designpm/designpm-core/internal/core/services"
	"github.com/designpm/designpm-core/internal/mediatypes"
	"github.com/designpm/designpm-core/internal/worker"
)

var version = "dev"

// backend is the wired storage: the key-value store, its lock and a health check.
type backend struct {
	store driven.KeyValueStore
	lock  driven.DistributedLock
	ping  http.Pinger
	close func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	log.Printf("designpm-core %s starting (storage=%s)", version, cfg.StorageBackend())

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b, err := connectBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialise storage: %v", err)
	}
	defer b.close()

	// ===== Driven adapters =====
	feed := notify.NewFeed(notify.FeedConfig{TTL: cfg.NotificationTTL(), Logger: logger})
	previews := worker.NewWorker(worker.WorkerConfig{
		Renderer: render.NewPDFRenderer(),
		Logger:   logger,
	})

	// ===== Services =====
	gateway := services.NewPersistenceGateway(services.PersistenceConfig{
		Store:       b.store,
		Lock:        b.lock,
		Notifier:    feed,
		Logger:      logger,
		AutosaveKey: cfg.AutosaveKey,
		Debounce:    cfg.SaveDebounce(),
	})
	ingestor := services.NewMediaIngestor(services.MediaIngestorConfig{
		Registry: mediatypes.DefaultRegistry(),
		Notifier: feed,
		MaxBytes: cfg.MaxMediaBytes,
		Logger:   logger,
	})
	report := services.NewReportService(services.ReportServiceConfig{
		Gateway:          gateway,
		Ingestor:         ingestor,
		Notifier:         feed,
		Previews:         previews,
		Logger:           logger,
		RestoreDelay:     cfg.RestoreDelay(),
		AutosaveInterval: cfg.AutosaveInterval(),
		FlushThreshold:   cfg.FlushThreshold(),
	})
	previews.SetSink(report)

	if err := previews.Start(ctx); err != nil {
		log.Fatalf("Failed to start preview worker: %v", err)
	}

	if err := report.Init(ctx); err != nil {
		log.Fatalf("Failed to restore report: %v", err)
	}

	// ===== HTTP =====
	server := http.NewServer(http.Config{
		Host:           "0.0.0.0",
		Port:           cfg.Port,
		Version:        version,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		Logger:         logger,
	}, report, feed, http.Checks{
		"store":    b.ping,
		"lock":     b.lock,
		"previews": previews,
	})

	serveErr := server.Start(ctx)
	if serveErr != nil {
		log.Printf("Server error: %v", serveErr)
	}

	// Flush whatever the last debounce has not written yet
	log.Println("Shutting down, flushing report...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	previews.Stop()
	if err := report.Teardown(shutdownCtx); err != nil {
		log.Printf("Final flush failed: %v", err)
	}
	log.Println("Stopped")

	if serveErr != nil {
		os.Exit(1)
	}
}

// connectBackend picks Redis when REDIS_URL is set, PostgreSQL when
// DATABASE_URL is set, and an embedded in-memory Redis otherwise.
func connectBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.StorageBackend() {
	case "redis":
		log.Println("Connecting to Redis...")
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return redisBackend(ctx, redis.NewClient(opts), cfg.StorageQuotaBytes, func() {})

	case "postgres":
		log.Println("Connecting to PostgreSQL...")
		dbConfig := postgres.DefaultConfig(cfg.DatabaseURL)
		dbConfig.MaxOpenConns = cfg.DBMaxOpenConns
		dbConfig.MaxIdleConns = cfg.DBMaxIdleConns
		db, err := postgres.Connect(ctx, dbConfig)
		if err != nil {
			return nil, err
		}
		// Initialize schema (idempotent)
		if err := db.InitSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		log.Println("PostgreSQL connected and schema initialized")
		return &backend{
			store: postgres.NewStore(db, cfg.StorageQuotaBytes),
			lock:  postgres.NewAdvisoryLock(db),
			ping:  db,
			close: func() { db.Close() },
		}, nil

	default:
		log.Println("Warning: no REDIS_URL or DATABASE_URL set, using in-memory storage (lost on exit)")
		mr, err := miniredis.Run()
		if err != nil {
			return nil, err
		}
		return redisBackend(ctx, redis.NewClient(&redis.Options{Addr: mr.Addr()}), cfg.StorageQuotaBytes, mr.Close)
	}
}

func redisBackend(ctx context.Context, client *redis.Client, quota int64, onClose func()) (*backend, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		onClose()
		return nil, err
	}
	log.Println("Redis connected")
	store := redisadapter.NewStore(client, quota)
	return &backend{
		store: store,
		lock:  redisadapter.NewLock(client),
		ping:  store,
		close: func() {
			client.Close()
			onClose()
		},
	}, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
