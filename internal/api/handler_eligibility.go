package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"controller-eligibility-backend/internal/model"
	"controller-eligibility-backend/internal/store"
)

// eligibilityResponse is the API shape of an eligibility record. Nullable
// fields stay null until the corresponding history yields a value.
type eligibilityResponse struct {
	CID                   int64          `json:"cid"`
	InitialSelection      model.Tristate `json:"initial_selection"`
	FirstSelectionDate    *time.Time     `json:"first_selection_date"`
	LastPromotionDate     *time.Time     `json:"last_promotion_date"`
	LastTransferDate      *time.Time     `json:"last_transfer_date"`
	LastVisitDate         *time.Time     `json:"last_visit_date"`
	CompetencyRating      int            `json:"competency_rating"`
	CompetencyDate        *time.Time     `json:"competency_date"`
	HasConsolidationHours model.Tristate `json:"has_consolidation_hours"`
	ConsolidationHours    float64        `json:"consolidation_hours"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

func toEligibilityResponse(rec *model.EligibilityRecord) eligibilityResponse {
	return eligibilityResponse{
		CID:                   rec.CID,
		InitialSelection:      rec.InitialSelection,
		FirstSelectionDate:    rec.FirstSelectionDate,
		LastPromotionDate:     rec.LastPromotionDate,
		LastTransferDate:      rec.LastTransferDate,
		LastVisitDate:         rec.LastVisitDate,
		CompetencyRating:      rec.CompetencyRating,
		CompetencyDate:        rec.CompetencyDate,
		HasConsolidationHours: rec.HasConsolidationHours,
		ConsolidationHours:    rec.ConsolidationHours,
		UpdatedAt:             rec.UpdatedAt,
	}
}

func cidParam(c *gin.Context) (int64, bool) {
	cid, err := strconv.ParseInt(c.Param("cid"), 10, 64)
	if err != nil || cid <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid cid"})
		return 0, false
	}
	return cid, true
}

// GetEligibility handles GET /api/controllers/:cid/eligibility.
func (h *Handler) GetEligibility(c *gin.Context) {
	cid, ok := cidParam(c)
	if !ok {
		return
	}

	rec, err := h.store.Get(c.Request.Context(), cid)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "eligibility record not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve eligibility record"})
		return
	}

	c.JSON(http.StatusOK, toEligibilityResponse(rec))
}

// ListEligibility handles GET /api/eligibility.
func (h *Handler) ListEligibility(c *gin.Context) {
	recs, err := h.store.All(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve eligibility records"})
		return
	}

	responses := make([]eligibilityResponse, 0, len(recs))
	for i := range recs {
		responses = append(responses, toEligibilityResponse(&recs[i]))
	}
	c.JSON(http.StatusOK, responses)
}

// RecacheEligibility handles POST /api/controllers/:cid/eligibility/recache.
// Recomputes the record synchronously and returns the updated snapshot; the
// hours verification, if warranted, still runs asynchronously.
func (h *Handler) RecacheEligibility(c *gin.Context) {
	cid, ok := cidParam(c)
	if !ok {
		return
	}

	if err := h.updater.RunOne(c.Request.Context(), cid); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to recompute eligibility"})
		return
	}

	rec, err := h.store.Get(c.Request.Context(), cid)
	if errors.Is(err, store.ErrNotFound) {
		// RunOne skips controllers unknown to the roster.
		c.JSON(http.StatusNotFound, gin.H{"error": "controller not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve eligibility record"})
		return
	}

	c.JSON(http.StatusOK, toEligibilityResponse(rec))
}
