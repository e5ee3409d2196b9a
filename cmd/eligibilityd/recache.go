package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"controller-eligibility-backend/internal/db"
	"controller-eligibility-backend/internal/eligibility"
	"controller-eligibility-backend/internal/hours"
	"controller-eligibility-backend/internal/queue"
	"controller-eligibility-backend/internal/store"
)

func recacheCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "recache [cid]",
		Short: "Recompute eligibility records (all controllers, or one CID)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cid int64
			if len(args) == 1 {
				var err error
				cid, err = strconv.ParseInt(args[0], 10, 64)
				if err != nil || cid <= 0 {
					return fmt.Errorf("invalid cid %q", args[0])
				}
			}
			return runRecache(cid)
		},
	}
}

// runRecache performs a one-shot pass. With redis configured, hours tasks
// are only enqueued for the serving deployment's workers; otherwise they go
// to an in-process queue drained before exit.
func runRecache(cid int64) error {
	cfg, log, err := commonSetup()
	if err != nil {
		return err
	}
	defer log.Sync()

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)

	var taskQueue queue.Queue
	var memQueue *queue.MemoryQueue
	if cfg.Redis.Addr != "" {
		rq, err := queue.NewRedisQueue(&cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect task queue: %w", err)
		}
		taskQueue = rq
	} else {
		memQueue = queue.NewMemoryQueue(0)
		taskQueue = memQueue
	}
	defer taskQueue.Close()

	policy := eligibility.NewPolicy(&cfg.Eligibility)
	updater := eligibility.NewUpdater(log, appStore, appStore, appStore, taskQueue, policy, cfg.Eligibility.ExcludedFacility)

	ctx := context.Background()
	if cid > 0 {
		err = updater.RunOne(ctx, cid)
	} else {
		err = updater.RunBatch(ctx)
	}
	if err != nil {
		return err
	}

	if memQueue != nil {
		verifier := hours.NewVerifier(log, appStore, appStore, hours.NewHTTPClient(&cfg.Hours), policy, &cfg.Hours, nil)
		pool := queue.NewPool(1, taskQueue, log)
		pool.Register(queue.TaskVerifyHours, func(ctx context.Context, t queue.Task) error {
			return verifier.Run(ctx, t.CID)
		})
		if err := pool.Drain(ctx); err != nil {
			return err
		}
	}

	log.Info("recache complete")
	return nil
}
