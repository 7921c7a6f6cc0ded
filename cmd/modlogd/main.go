package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Joel-Projects/modlogd/config"
	"github.com/Joel-Projects/modlogd/internal/api"
	"github.com/Joel-Projects/modlogd/internal/database"
	"github.com/Joel-Projects/modlogd/internal/dedup"
	"github.com/Joel-Projects/modlogd/internal/logger"
	"github.com/Joel-Projects/modlogd/internal/maintenance"
	"github.com/Joel-Projects/modlogd/internal/metrics"
	middlewares "github.com/Joel-Projects/modlogd/internal/middleware"
	"github.com/Joel-Projects/modlogd/internal/notify"
	"github.com/Joel-Projects/modlogd/internal/persist"
	"github.com/Joel-Projects/modlogd/internal/queue"
	"github.com/Joel-Projects/modlogd/internal/reddit"
	"github.com/Joel-Projects/modlogd/internal/registry"
	"github.com/Joel-Projects/modlogd/internal/store"
	"github.com/Joel-Projects/modlogd/internal/supervise"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting modlogd",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit,
	)

	// Initialize metrics
	if cfg.Metrics.Enabled {
		metrics.Init()
		logger.Info("Metrics enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer db.Close(ctx)

	// Initialize store
	actionStore := store.New(db)

	// Redis backs the dedup cache and the webhook snapshot mirror
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Failed to parse redis url", "error", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to redis", "error", err)
	}
	cache := dedup.NewWithClient(rdb)

	// Load the registration snapshot and write the webhook mirror before
	// any stream worker starts.
	reg := registry.New(registry.NewPostgresSource(db), rdb, cfg.Registry)
	if db.IsConfigured() {
		if err := reg.Refresh(ctx); err != nil {
			logger.Fatal("Failed to load registrations", "error", err)
		}
	} else {
		logger.Warn("No database configured; starting with an empty registration snapshot")
	}
	snap := reg.Snapshot()
	logger.Info("Registrations loaded",
		"subreddits", len(snap.Subreddits),
		"webhooks", len(snap.Webhooks),
	)

	// Queue producer, used by every dispatcher
	queueClient, err := queue.NewClient(cfg.Redis.URL, cfg.Queue)
	if err != nil {
		logger.Fatal("Failed to create queue client", "error", err)
	}
	defer queueClient.Close()

	// Queue consumer: persistence plus conditional alerting
	notifier := notify.New(registry.NewRedisLookup(rdb), cfg.Alert)
	handler := persist.NewHandler(actionStore, cache, notifier)
	queueServer, err := queue.NewServer(cfg.Redis.URL, cfg.Queue, handler)
	if err != nil {
		logger.Fatal("Failed to create queue server", "error", err)
	}

	// Stream workers under supervision
	chunks := supervise.Partition(snap.Subreddits, cfg.Dispatch.ChunkSize)
	tree := supervise.NewTree(chunks, queueClient, cache, reddit.EnvCredentialSource{}, cfg)
	logger.Info("Stream workers partitioned", "chunks", len(chunks))

	rebuilder := maintenance.NewRebuilder(actionStore, cache, cfg.Maintenance)

	// Ops HTTP server
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.Logging)
	r.Use(middlewares.Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Ops.ReadTimeout))
	r.Use(middlewares.Security)

	opsHandler := api.NewHandler(actionStore, rdb, Version)
	opsHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Ops.Host, cfg.Ops.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Ops.ReadTimeout,
		WriteTimeout: cfg.Ops.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return tree.Serve(gctx)
	})
	g.Go(func() error {
		return queueServer.Run(gctx)
	})
	g.Go(func() error {
		return reg.Run(gctx)
	})
	g.Go(func() error {
		return rebuilder.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting ops server", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Ops.GracefulShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Shutdown with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
