package eligibility

import (
	"sort"
	"time"

	"controller-eligibility-backend/config"
	"controller-eligibility-backend/internal/model"
)

// Promotions only count toward the last-promotion date when they start below
// C1 and land below I1.
const (
	promotionFromBelow = model.RatingC1
	promotionToBelow   = model.RatingI1
)

// Policy is the facility and windowing policy the merge rules run under.
type Policy struct {
	holding       map[string]bool
	CompetencyCap int
	Revalidation  time.Duration
}

// NewPolicy builds a Policy from configuration.
func NewPolicy(cfg *config.EligibilityConfig) Policy {
	holding := make(map[string]bool, len(cfg.HoldingFacilities))
	for _, f := range cfg.HoldingFacilities {
		holding[f] = true
	}
	return Policy{
		holding:       holding,
		CompetencyCap: cfg.CompetencyCap,
		Revalidation:  time.Duration(cfg.RevalidationDays) * 24 * time.Hour,
	}
}

// IsHolding reports whether the facility is an onboarding/overflow facility.
func (p Policy) IsHolding(facility string) bool {
	return p.holding[facility]
}

// History bundles the pre-fetched event collections for one controller.
type History struct {
	Transfers    []model.TransferEvent
	Promotions   []model.PromotionEvent
	Visits       []model.VisitEvent
	Competencies []model.CompetencyEvent
}

// Apply merges a controller's history into its eligibility record. Pure:
// it mutates only rec, reads nothing beyond its arguments, and is
// deterministic for identical inputs. Persistence is the caller's job.
func Apply(p Policy, now time.Time, rec *model.EligibilityRecord, ctrl *model.Controller, h History) {
	if ctrl.HomeController {
		applySelection(p, rec, h.Transfers)
		applyPromotion(rec, h.Promotions)
		applyTransfer(p, rec, h.Transfers)
		applyVisit(rec, h.Visits)
	}
	if ctrl.Rating > model.RatingOBS {
		applyCompetency(p, now, rec, ctrl, h)
	}
}

// applySelection determines whether the controller has left the holding
// facilities. Once settled to "not initial" with a date, it is never
// recomputed.
func applySelection(p Policy, rec *model.EligibilityRecord, transfers []model.TransferEvent) {
	if rec.InitialSelection == model.TriFalse && rec.FirstSelectionDate != nil {
		return
	}

	var first *model.TransferEvent
	for i := range transfers {
		t := &transfers[i]
		if p.IsHolding(t.ToFacility) {
			continue
		}
		if first == nil || t.CreatedAt.Before(first.CreatedAt) {
			first = t
		}
	}

	if first != nil {
		d := first.CreatedAt
		rec.FirstSelectionDate = &d
		rec.InitialSelection = model.TriFalse
	} else {
		rec.InitialSelection = model.TriTrue
	}
}

// applyPromotion records the most recent qualifying promotion. Unlike the
// visit date this overwrites unconditionally on every run.
func applyPromotion(rec *model.EligibilityRecord, promotions []model.PromotionEvent) {
	var latest *model.PromotionEvent
	for i := range promotions {
		e := &promotions[i]
		if e.FromRating >= promotionFromBelow || e.ToRating >= promotionToBelow {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	if latest != nil {
		d := latest.CreatedAt
		rec.LastPromotionDate = &d
	}
}

func applyTransfer(p Policy, rec *model.EligibilityRecord, transfers []model.TransferEvent) {
	var latest *model.TransferEvent
	for i := range transfers {
		t := &transfers[i]
		if p.IsHolding(t.ToFacility) || t.Status != model.TransferAccepted {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}
	if latest != nil {
		d := latest.CreatedAt
		rec.LastTransferDate = &d
	}
}

// applyVisit advances the last-visit date. The stored date never regresses.
func applyVisit(rec *model.EligibilityRecord, visits []model.VisitEvent) {
	var latest *model.VisitEvent
	for i := range visits {
		v := &visits[i]
		if latest == nil || v.CreatedAt.After(latest.CreatedAt) {
			latest = v
		}
	}
	if latest == nil {
		return
	}
	if rec.LastVisitDate == nil || latest.CreatedAt.After(*rec.LastVisitDate) {
		d := latest.CreatedAt
		rec.LastVisitDate = &d
	}
}

func applyCompetency(p Policy, now time.Time, rec *model.EligibilityRecord, ctrl *model.Controller, h History) {
	target := ctrl.Rating
	if target > p.CompetencyCap {
		target = p.CompetencyCap
	}

	// Hours must be re-accrued at the new tier. Checked against the
	// pre-update competency rating.
	if target > rec.CompetencyRating {
		rec.HasConsolidationHours = model.TriFalse
	}

	if !p.IsHolding(ctrl.Facility) || len(h.Visits) > 0 {
		rec.CompetencyRating = target
		d := now
		rec.CompetencyDate = &d
	}

	if rec.CompetencyDate != nil && now.Sub(*rec.CompetencyDate) <= p.Revalidation {
		return
	}

	// Re-evaluate from recorded competencies, newest first. Each match only
	// advances the rating and date, resetting the hours flag.
	comps := make([]model.CompetencyEvent, len(h.Competencies))
	copy(comps, h.Competencies)
	sort.Slice(comps, func(i, j int) bool {
		return comps[i].CompletedAt.After(comps[j].CompletedAt)
	})

	for _, c := range comps {
		if c.CourseRating < rec.CompetencyRating {
			continue
		}
		if rec.CompetencyDate != nil && !c.CompletedAt.After(*rec.CompetencyDate) {
			continue
		}
		r := c.CourseRating
		if r > p.CompetencyCap {
			r = p.CompetencyCap
		}
		rec.CompetencyRating = r
		d := c.CompletedAt
		rec.CompetencyDate = &d
		rec.HasConsolidationHours = model.TriFalse
	}
}
