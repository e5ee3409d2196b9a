package hours

import (
	"context"
	"errors"
	"time"

	"controller-eligibility-backend/config"
	"controller-eligibility-backend/internal/eligibility"
	"controller-eligibility-backend/internal/logger"
	"controller-eligibility-backend/internal/metrics"
	"controller-eligibility-backend/internal/model"
	"controller-eligibility-backend/internal/store"
)

// Notifier is told when a controller's consolidation hours are confirmed.
type Notifier interface {
	EligibilityAchieved(ctx context.Context, cid int64)
}

// Verifier reconciles a record's consolidation-hours fields against the
// external hours service. It runs as an asynchronous task so the batch pass
// never blocks on external I/O.
type Verifier struct {
	log        *logger.Logger
	records    store.EligibilityStore
	identities store.IdentityStore
	client     Client
	policy     eligibility.Policy
	notifier   Notifier

	attempts int
	backoff  time.Duration
	required float64
	tierKeys map[int]string
	senior   []string
}

// NewVerifier wires a Verifier. notifier may be nil.
func NewVerifier(
	log *logger.Logger,
	records store.EligibilityStore,
	identities store.IdentityStore,
	client Client,
	policy eligibility.Policy,
	cfg *config.HoursConfig,
	notifier Notifier,
) *Verifier {
	return &Verifier{
		log:        log.With("component", "hours-verifier"),
		records:    records,
		identities: identities,
		client:     client,
		policy:     policy,
		notifier:   notifier,
		attempts:   cfg.Attempts,
		backoff:    time.Duration(cfg.BackoffSeconds) * time.Second,
		required:   cfg.RequiredHours,
		tierKeys:   cfg.TierKeys,
		senior:     cfg.SeniorTierKeys,
	}
}

// Run verifies the consolidation hours for one controller. Missing records
// or identities are logged and skipped; only storage failures are returned.
func (v *Verifier) Run(ctx context.Context, cid int64) error {
	rec, err := v.records.Get(ctx, cid)
	if errors.Is(err, store.ErrNotFound) {
		v.log.Warn("no eligibility record, skipping hours check", "cid", cid)
		return nil
	}
	if err != nil {
		return err
	}

	ctrl, err := v.identities.Find(ctx, cid)
	if errors.Is(err, store.ErrNotFound) {
		v.log.Warn("controller not found, skipping hours check", "cid", cid)
		return nil
	}
	if err != nil {
		return err
	}

	if ctrl.Rating <= model.RatingOBS {
		return nil
	}

	wasMet := rec.HasConsolidationHours == model.TriTrue
	if v.shouldCheck(rec, ctrl) {
		v.check(ctx, rec, ctrl)
	}

	// Saved exactly once, whatever the retry loop did.
	if err := v.records.Save(ctx, rec); err != nil {
		return err
	}

	if !wasMet && rec.HasConsolidationHours == model.TriTrue && v.notifier != nil {
		v.notifier.EligibilityAchieved(ctx, cid)
	}
	return nil
}

// shouldCheck is the gate for calling the external service at all.
func (v *Verifier) shouldCheck(rec *model.EligibilityRecord, ctrl *model.Controller) bool {
	if rec.HasConsolidationHours == model.TriTrue {
		return false
	}
	if rec.InitialSelection == model.TriTrue {
		return false
	}
	if ctrl.HomeController {
		return !v.policy.IsHolding(ctrl.Facility)
	}
	return ctrl.Rating >= model.RatingS3
}

// check runs the bounded retry loop. After the final failed attempt it gives
// up silently; a later scheduled run will retry.
func (v *Verifier) check(ctx context.Context, rec *model.EligibilityRecord, ctrl *model.Controller) {
	for attempt := 1; attempt <= v.attempts; attempt++ {
		buckets, err := v.client.Fetch(ctx, ctrl.CID)
		if err != nil || len(buckets) == 0 {
			v.log.Warn("hours service returned no data",
				"cid", ctrl.CID, "attempt", attempt, "error", err)
			metrics.HoursRetries.Inc()
			if attempt < v.attempts && !sleep(ctx, v.backoff) {
				return
			}
			continue
		}

		v.evaluate(rec, ctrl, buckets)
		return
	}
	metrics.HoursChecks.WithLabelValues("exhausted").Inc()
}

// evaluate applies the tier thresholds to a successful response. Controllers
// above C1 may also satisfy the requirement with the summed senior buckets.
func (v *Verifier) evaluate(rec *model.EligibilityRecord, ctrl *model.Controller, buckets map[string]float64) {
	own := buckets[v.tierKeys[ctrl.Rating]]
	var seniorSum float64
	for _, key := range v.senior {
		seniorSum += buckets[key]
	}

	switch {
	case own >= v.required:
		rec.HasConsolidationHours = model.TriTrue
		metrics.HoursChecks.WithLabelValues("met").Inc()
	case ctrl.Rating > model.RatingC1 && seniorSum >= v.required:
		rec.HasConsolidationHours = model.TriTrue
		metrics.HoursChecks.WithLabelValues("met").Inc()
	case ctrl.Rating > model.RatingC1:
		rec.HasConsolidationHours = model.TriFalse
		rec.ConsolidationHours = seniorSum
		metrics.HoursChecks.WithLabelValues("insufficient").Inc()
	default:
		rec.HasConsolidationHours = model.TriFalse
		rec.ConsolidationHours = own
		metrics.HoursChecks.WithLabelValues("insufficient").Inc()
	}
}

// sleep waits for d unless ctx is cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
