package eligibility

import (
	"context"
	"errors"
	"fmt"
	"time"

	"controller-eligibility-backend/internal/logger"
	"controller-eligibility-backend/internal/metrics"
	"controller-eligibility-backend/internal/model"
	"controller-eligibility-backend/internal/queue"
	"controller-eligibility-backend/internal/store"
)

// Updater recomputes eligibility records from controller history. It owns
// the batch pass and enqueues hours-verification tasks; it never calls the
// hours service itself.
type Updater struct {
	log        *logger.Logger
	identities store.IdentityStore
	histories  store.HistoryStore
	records    store.EligibilityStore
	tasks      queue.Queue
	policy     Policy
	excluded   string
	now        func() time.Time
}

// NewUpdater wires an Updater. excludedFacility is the facility whose
// members never enter tracking.
func NewUpdater(
	log *logger.Logger,
	identities store.IdentityStore,
	histories store.HistoryStore,
	records store.EligibilityStore,
	tasks queue.Queue,
	policy Policy,
	excludedFacility string,
) *Updater {
	return &Updater{
		log:        log.With("component", "eligibility-updater"),
		identities: identities,
		histories:  histories,
		records:    records,
		tasks:      tasks,
		policy:     policy,
		excluded:   excludedFacility,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// EnsureRecord creates the eligibility record for cid if it does not exist.
// Idempotent.
func (u *Updater) EnsureRecord(ctx context.Context, cid int64) (*model.EligibilityRecord, error) {
	return u.records.Ensure(ctx, cid)
}

// Run executes the batch pass immediately and then on every interval until
// ctx is cancelled.
func (u *Updater) Run(ctx context.Context, interval time.Duration) {
	u.log.Info("starting eligibility scheduler", "interval", interval)

	if err := u.RunBatch(ctx); err != nil {
		u.log.Error("batch pass failed", "error", err)
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			u.log.Info("eligibility scheduler shutting down")
			return
		case <-timer.C:
			if err := u.RunBatch(ctx); err != nil {
				u.log.Error("batch pass failed", "error", err)
			}
			timer.Reset(interval)
		}
	}
}

// RunBatch performs the full pass: discover untracked controllers, recompute
// every record, then sweep for records still awaiting consolidation hours.
// Per-controller problems are logged and skipped; storage failures abort.
func (u *Updater) RunBatch(ctx context.Context) error {
	start := u.now()

	created, err := u.discover(ctx)
	if err != nil {
		return err
	}

	updated, skipped, err := u.updateAll(ctx)
	if err != nil {
		return err
	}

	enqueued, err := u.sweepHours(ctx)
	if err != nil {
		return err
	}

	u.log.Info("batch pass finished",
		"created", created,
		"updated", updated,
		"skipped", skipped,
		"hours_tasks", enqueued,
		"elapsed", time.Since(start),
	)
	return nil
}

// RunOne recomputes the record for a single controller and, when hours are
// still outstanding, enqueues a verification task. Used by the CLI and the
// recache endpoint.
func (u *Updater) RunOne(ctx context.Context, cid int64) error {
	ctrl, err := u.identities.Find(ctx, cid)
	if errors.Is(err, store.ErrNotFound) {
		u.log.Warn("controller not found, skipping", "cid", cid)
		return nil
	}
	if err != nil {
		return err
	}

	rec, err := u.records.Ensure(ctx, cid)
	if err != nil {
		return err
	}

	h, err := u.fetchHistories(ctx, []int64{cid})
	if err != nil {
		return err
	}

	Apply(u.policy, u.now(), rec, ctrl, h.forCID(cid))
	if err := u.records.Save(ctx, rec); err != nil {
		return err
	}
	metrics.Updates.Inc()

	if hoursPending(rec) {
		return u.enqueueHoursCheck(ctx, cid)
	}
	return nil
}

// discover creates records for controllers that qualify for tracking but
// have none yet.
func (u *Updater) discover(ctx context.Context) (int, error) {
	candidates, err := u.identities.UntrackedCandidates(ctx, u.excluded)
	if err != nil {
		return 0, err
	}

	for i, ctrl := range candidates {
		if _, err := u.records.Ensure(ctx, ctrl.CID); err != nil {
			return i, err
		}
		metrics.RecordsCreated.Inc()
		u.log.Info("created eligibility record", "cid", ctrl.CID,
			"progress", fmt.Sprintf("%d/%d", i+1, len(candidates)))
	}
	return len(candidates), nil
}

// updateAll recomputes every existing record. Histories for the whole CID
// set are fetched in four bulk queries and grouped per controller.
func (u *Updater) updateAll(ctx context.Context) (updated, skipped int, err error) {
	recs, err := u.records.All(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(recs) == 0 {
		return 0, 0, nil
	}

	cids := make([]int64, len(recs))
	for i, r := range recs {
		cids[i] = r.CID
	}

	ctrls, err := u.identities.FindAll(ctx, cids)
	if err != nil {
		return 0, 0, err
	}

	h, err := u.fetchHistories(ctx, cids)
	if err != nil {
		return 0, 0, err
	}

	now := u.now()
	for i := range recs {
		rec := &recs[i]
		ctrl, ok := ctrls[rec.CID]
		if !ok {
			u.log.Warn("controller identity no longer exists, skipping record", "cid", rec.CID)
			metrics.UpdateSkips.Inc()
			skipped++
			continue
		}

		Apply(u.policy, now, rec, &ctrl, h.forCID(rec.CID))
		if err := u.records.Save(ctx, rec); err != nil {
			return updated, skipped, err
		}
		metrics.Updates.Inc()
		updated++
	}
	return updated, skipped, nil
}

// sweepHours enqueues a verification task for every record still awaiting
// consolidation hours. Queue failures are logged per task, not fatal.
func (u *Updater) sweepHours(ctx context.Context) (int, error) {
	pending, err := u.records.PendingHours(ctx)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, rec := range pending {
		if err := u.enqueueHoursCheck(ctx, rec.CID); err != nil {
			u.log.Warn("failed to enqueue hours check", "cid", rec.CID, "error", err)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

func (u *Updater) enqueueHoursCheck(ctx context.Context, cid int64) error {
	if err := u.tasks.Enqueue(ctx, queue.NewTask(queue.TaskVerifyHours, cid)); err != nil {
		return err
	}
	metrics.TasksEnqueued.Inc()
	return nil
}

func hoursPending(rec *model.EligibilityRecord) bool {
	return rec.HasConsolidationHours == model.TriFalse &&
		rec.InitialSelection == model.TriFalse &&
		rec.CompetencyRating > model.RatingOBS
}

// histories holds the bulk-fetched event maps for a batch of CIDs.
type histories struct {
	transfers    map[int64][]model.TransferEvent
	promotions   map[int64][]model.PromotionEvent
	visits       map[int64][]model.VisitEvent
	competencies map[int64][]model.CompetencyEvent
}

func (u *Updater) fetchHistories(ctx context.Context, cids []int64) (*histories, error) {
	transfers, err := u.histories.TransfersFor(ctx, cids)
	if err != nil {
		return nil, err
	}
	promotions, err := u.histories.PromotionsFor(ctx, cids)
	if err != nil {
		return nil, err
	}
	visits, err := u.histories.VisitsFor(ctx, cids)
	if err != nil {
		return nil, err
	}
	competencies, err := u.histories.CompetenciesFor(ctx, cids)
	if err != nil {
		return nil, err
	}
	return &histories{
		transfers:    transfers,
		promotions:   promotions,
		visits:       visits,
		competencies: competencies,
	}, nil
}

func (h *histories) forCID(cid int64) History {
	return History{
		Transfers:    h.transfers[cid],
		Promotions:   h.promotions[cid],
		Visits:       h.visits[cid],
		Competencies: h.competencies[cid],
	}
}
