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

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"

	"controller-eligibility-backend/internal/api"
	"controller-eligibility-backend/internal/db"
	"controller-eligibility-backend/internal/eligibility"
	"controller-eligibility-backend/internal/hours"
	"controller-eligibility-backend/internal/notify"
	"controller-eligibility-backend/internal/queue"
	"controller-eligibility-backend/internal/store"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server, task workers, and eligibility scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, log, err := commonSetup()
	if err != nil {
		return err
	}
	defer log.Sync()

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info("database initialized")

	appStore := store.NewGormStore(gormDB)

	var taskQueue queue.Queue
	if cfg.Redis.Addr != "" {
		rq, err := queue.NewRedisQueue(&cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect task queue: %w", err)
		}
		taskQueue = rq
		log.Info("using redis task queue", "addr", cfg.Redis.Addr)
	} else {
		taskQueue = queue.NewMemoryQueue(0)
		log.Info("using in-process task queue")
	}
	defer taskQueue.Close()

	policy := eligibility.NewPolicy(&cfg.Eligibility)
	updater := eligibility.NewUpdater(log, appStore, appStore, appStore, taskQueue, policy, cfg.Eligibility.ExcludedFacility)

	var webpushOptions *webpush.Options
	var notifier hours.Notifier
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		notifier = notify.New(log, appStore, webpushOptions)
	} else {
		log.Warn("VAPID keys not configured, push notifications disabled")
	}

	verifier := hours.NewVerifier(log, appStore, appStore, hours.NewHTTPClient(&cfg.Hours), policy, &cfg.Hours, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := queue.NewPool(cfg.WorkerPool.Size, taskQueue, log)
	pool.Register(queue.TaskVerifyHours, func(ctx context.Context, t queue.Task) error {
		return verifier.Run(ctx, t.CID)
	})
	pool.Start(ctx)

	if cfg.Scheduler.Enabled {
		go updater.Run(ctx, cfg.Scheduler.Interval)
	} else {
		log.Info("eligibility scheduler is disabled")
	}

	router := api.NewRouter(&cfg.Server, appStore, updater, webpushOptions)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server ListenAndServe", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	log.Info("server gracefully stopped")
	return nil
}
