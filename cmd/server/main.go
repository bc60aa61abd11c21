package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/almajlis/backend/internal/admin"
	"github.com/almajlis/backend/internal/api"
	"github.com/almajlis/backend/internal/config"
	"github.com/almajlis/backend/internal/database"
	"github.com/almajlis/backend/internal/events"
	"github.com/almajlis/backend/internal/game"
	"github.com/almajlis/backend/internal/migrations"
	"github.com/almajlis/backend/internal/redis"
	"github.com/almajlis/backend/internal/store"
	"github.com/almajlis/backend/internal/store/memstore"
	"github.com/almajlis/backend/internal/store/pgstore"
	"github.com/almajlis/backend/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Initialize configuration (loads .env if present)
	cfg := config.Load()
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var (
		st store.Store
		db *sqlx.DB
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		mem := memstore.New()
		if cfg.SeedFile != "" {
			f, err := os.Open(cfg.SeedFile)
			if err != nil {
				log.Fatalf("Failed to open seed file: %v", err)
			}
			if err := mem.LoadSeed(f); err != nil {
				log.Fatalf("Failed to load seed file: %v", err)
			}
			f.Close()
			log.Printf("[STORE] memory store seeded from %s", cfg.SeedFile)
		}
		st = mem
		log.Println("[STORE] using in-memory store; data is lost on restart")
	default:
		var err error
		db, err = database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if cfg.MigrateOnStart {
			log.Println("[MIGRATE] Running DB migrations on startup...")
			if err := migrations.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
		}

		// Runtime overrides edited through the admin API
		if err := admin.ApplyRuntimeConfigToConfig(db, cfg); err != nil {
			log.Printf("[CONFIG] Runtime config not applied: %v", err)
		}
		st = pgstore.New(db)
	}

	// Initialize Redis (optional)
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Printf("[REDIS] unavailable, running single-instance: %v", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	hub := ws.NewHub()
	tun := cfg.Tunables()
	mgr := game.NewMatchManager(st, nil, game.Options{
		CandidateLimit: tun.SamplerCandidateLimit,
		FirstMatchFree: tun.FirstMatchFree,
	})

	// Snapshots go through redis when available so every instance sees them
	if rdb != nil {
		mgr.SetNotifier(events.NewRedisNotifier(rdb))
		ws.StartMatchEventSubscriber(ctx, rdb, hub)
	} else {
		mgr.SetNotifier(hub)
	}

	if _, err := game.StartStaleMatchReaper(ctx, mgr, cfg); err != nil {
		log.Printf("[REAPER] not started: %v", err)
	}

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, db, rdb, cfg, mgr, hub)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: router}

	go func() {
		log.Printf("Starting Al Majlis server on port %s (store=%s)", port, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

func setupLogging(cfg *config.Config) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
