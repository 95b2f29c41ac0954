package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wordwatch/internal/catalog"
	"wordwatch/internal/clients/redis"
	"wordwatch/internal/config"
	"wordwatch/internal/database"
	"wordwatch/internal/handlers"
	"wordwatch/internal/logger"
	"wordwatch/internal/repository"
	"wordwatch/internal/security"
	"wordwatch/internal/service"
)

func main() {
	// Load configuration
	cfg := config.Load()

	mode := cfg.LogMode
	if cfg.Debug {
		mode = "development"
	}
	log, err := logger.New(mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load the stimulus catalog; a broken catalog aborts startup
	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatal("failed to load catalog", "error", err)
	}
	log.Info("catalog loaded",
		"instructions", len(cat.Instructions),
		"stimuli", len(cat.Stimuli),
		"assignments", len(cat.Assignments))

	storage, closeStorage, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open result storage", "backend", cfg.StoreBackend, "error", err)
	}
	defer closeStorage()

	// Initialize services
	images := service.NewPreloadService(cfg.StaticFilesPath, cfg.PreloadConcurrency, log)
	deps := service.SessionDeps{
		Catalog:   cat,
		Storage:   storage,
		Preloader: images,
		Logger:    log,
		TTL:       cfg.SessionTTL,
	}
	notifier, err := service.NewNotificationService(ctx, log, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.NotifyEmail)
	if err != nil {
		log.Warn("completion emails disabled", "error", err)
	} else {
		deps.Notifier = notifier
	}
	sessions := service.NewSessionService(deps)

	secret := cfg.SessionSecret
	if secret == "" {
		if secret, err = security.RandomSecret(); err != nil {
			log.Fatal("failed to generate session secret", "error", err)
		}
		log.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}
	tokens := security.NewSessionTokens(secret, cfg.SessionTTL)
	csrf := security.NewCSRFGenerator(secret)
	limiter := security.NewRateLimiter(10, time.Minute)

	// Initialize handlers
	middleware := handlers.NewMiddleware(tokens, csrf, log)
	experimentHandler := handlers.NewExperimentHandler(sessions, images, tokens, csrf, service.SessionOptions{
		Local:        cfg.LocalMode,
		TestAll:      cfg.TestAll,
		SkipTutorial: cfg.SkipTutorial,
	}, log)

	// Setup routes
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, middleware, experimentHandler, limiter)

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handlers.Logging(log, mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background cleanup
	go sessions.RunSweeper(ctx, time.Minute)
	go cleanupRateLimiter(ctx, limiter)

	go func() {
		log.Info("server starting", "addr", addr, "store", cfg.StoreBackend, "local", cfg.LocalMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	// Stop pending timers, then let in-flight writes finish
	sessions.CloseAll()
	sessions.Wait()
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

// openStorage selects the result store. The returned func releases it.
func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (service.Storage, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreSQL:
		// Initialize database with config (supports sqlite, postgres, mysql)
		db, err := database.InitializeWithConfig(cfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info("database connection established", "type", cfg.DatabaseType)

		applied, err := db.RunMigrations(database.MigrationsFS(cfg.MigrationsPath))
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		for _, name := range applied {
			log.Info("applied migration", "file", name)
		}

		repo := repository.NewResultRepository(db)
		return service.NewSQLStorage(repo, cfg.CounterKey), func() { db.Close() }, nil

	case config.StoreRedis:
		store, err := redis.NewResultStore(ctx, log, redis.Options{
			Addr:       cfg.RedisAddr,
			Prefix:     cfg.RedisPrefix,
			CounterKey: cfg.CounterKey,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info("redis connection established", "addr", cfg.RedisAddr)
		return store, func() { store.Close() }, nil

	case config.StoreNone:
		log.Warn("result storage disabled, nothing will be persisted")
		return service.NewNopStorage(log), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store backend: %s", cfg.StoreBackend)
	}
}

// cleanupRateLimiter periodically drops idle clients from the limiter
func cleanupRateLimiter(ctx context.Context, limiter *security.RateLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Cleanup()
		}
	}
}
