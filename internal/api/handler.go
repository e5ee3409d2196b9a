package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"controller-eligibility-backend/internal/eligibility"
	"controller-eligibility-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	updater *eligibility.Updater
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, updater *eligibility.Updater, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		updater: updater,
		webpush: webpushOptions,
	}
}
