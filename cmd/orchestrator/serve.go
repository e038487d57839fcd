package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"fleet-orchestrator/internal/config"
	"fleet-orchestrator/internal/identity"
	"fleet-orchestrator/internal/metrics"
	"fleet-orchestrator/internal/reconciler"
	"fleet-orchestrator/internal/repository/memory"
	"fleet-orchestrator/internal/repository/postgresql"
	"fleet-orchestrator/internal/service"
	httptransport "fleet-orchestrator/internal/transport/http"
	"fleet-orchestrator/internal/worker"
)

func buildServeCommand(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, orphan sweeper and endpoint reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logConfig(cfg)

	var (
		m              *metrics.Collector
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		m = metrics.NewCollector()
		metricsHandler = m.Handler()
	}

	var (
		jobRepo    service.JobRepository
		workerRepo service.WorkerRepository
	)
	if cfg.PostgresDSN != "" {
		pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		defer pool.Close()
		if err := postgresql.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("pg migrate: %w", err)
		}
		jobRepo = postgresql.NewJobRepository(pool)
		workerRepo = postgresql.NewWorkerRepository(pool)
	} else {
		log.Printf("[orchestrator] POSTGRES_DSN not set, using in-memory stores")
		jobRepo = memory.NewJobRepository()
		workerRepo = memory.NewWorkerRepository()
	}

	// DI
	paging := service.Paging{Default: cfg.DefaultPageSize, Max: cfg.MaxPageSize}
	jobs := service.NewJobService(jobRepo, paging)
	workers := service.NewWorkerService(workerRepo, paging)
	heartbeats := service.NewHeartbeatService(jobRepo, workers, m, service.HeartbeatConfig{
		LivenessTimeout:     cfg.LivenessTimeout,
		MaxJobsPerWorker:    cfg.MaxJobsPerWorker,
		AssignmentScanLimit: cfg.AssignmentScanLimit,
	})

	go worker.NewSweeper(heartbeats, cfg.OrphanSweepInterval).Run(ctx)

	urls := config.NewURLSource(cfg.OrchestratorURL)
	if cfg.Path != "" {
		go func() {
			err := config.Watch(ctx, cfg.Path, func(c config.Config) { urls.Set(c.OrchestratorURL) })
			if err != nil {
				log.Printf("[config] watch error: %v", err)
			}
		}()
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()

		dir := identity.NewRedisDirectory(rdb, cfg.IdentityKeyPrefix)
		rec := reconciler.New(dir, urls, m, reconciler.Config{Interval: cfg.EndpointSyncInterval})
		rec.Start()
		// stops before the client closes
		defer rec.Stop()
	} else {
		log.Printf("[orchestrator] REDIS_ADDR not set, endpoint reconciler disabled")
	}

	h := httptransport.NewHandler(jobs, workers, heartbeats)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httptransport.Routes(h, metricsHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[orchestrator] listening addr=%s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[orchestrator] shutdown error: %v", err)
	}
	log.Println("orchestrator stopped")
	return nil
}
