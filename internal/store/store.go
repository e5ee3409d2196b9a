package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"controller-eligibility-backend/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// IdentityStore reads controller identities. Identities are owned by the
// roster system; this service never writes them.
type IdentityStore interface {
	Find(ctx context.Context, cid int64) (*model.Controller, error)
	// FindAll returns the identities for the given CIDs keyed by CID.
	FindAll(ctx context.Context, cids []int64) (map[int64]model.Controller, error)
	// UntrackedCandidates returns controllers that qualify for eligibility
	// tracking but have no EligibilityRecord yet.
	UntrackedCandidates(ctx context.Context, excludedFacility string) ([]model.Controller, error)
}

// HistoryStore bulk-reads history events for a set of CIDs. Each method is a
// single query whose results are grouped by CID, so callers never issue
// one query per controller.
type HistoryStore interface {
	TransfersFor(ctx context.Context, cids []int64) (map[int64][]model.TransferEvent, error)
	PromotionsFor(ctx context.Context, cids []int64) (map[int64][]model.PromotionEvent, error)
	VisitsFor(ctx context.Context, cids []int64) (map[int64][]model.VisitEvent, error)
	CompetenciesFor(ctx context.Context, cids []int64) (map[int64][]model.CompetencyEvent, error)
}

// EligibilityStore owns the EligibilityRecord rows.
type EligibilityStore interface {
	Get(ctx context.Context, cid int64) (*model.EligibilityRecord, error)
	// Ensure returns the record for cid, creating a default one if missing.
	Ensure(ctx context.Context, cid int64) (*model.EligibilityRecord, error)
	Save(ctx context.Context, rec *model.EligibilityRecord) error
	All(ctx context.Context) ([]model.EligibilityRecord, error)
	// PendingHours returns records still awaiting a consolidation-hours
	// confirmation: hours not yet met, past initial selection, and at a
	// competency tier where hours apply.
	PendingHours(ctx context.Context) ([]model.EligibilityRecord, error)
}

// SubscriptionStore owns push subscriptions and their watched controllers.
type SubscriptionStore interface {
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, []int64, error)
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription, cids []int64) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsFor(ctx context.Context, cid int64) ([]model.PushSubscription, error)
}

// Store is the full persistence surface of the service.
type Store interface {
	IdentityStore
	HistoryStore
	EligibilityStore
	SubscriptionStore
	DB() *gorm.DB
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Find(ctx context.Context, cid int64) (*model.Controller, error) {
	var ctrl model.Controller
	err := s.db.WithContext(ctx).First(&ctrl, "cid = ?", cid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("controller %d: %w", cid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch controller %d: %w", cid, err)
	}
	return &ctrl, nil
}

func (s *gormStore) FindAll(ctx context.Context, cids []int64) (map[int64]model.Controller, error) {
	var ctrls []model.Controller
	if err := s.db.WithContext(ctx).Where("cid IN ?", cids).Find(&ctrls).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch controllers: %w", err)
	}
	ctrlMap := make(map[int64]model.Controller, len(ctrls))
	for _, c := range ctrls {
		ctrlMap[c.CID] = c
	}
	return ctrlMap, nil
}

func (s *gormStore) UntrackedCandidates(ctx context.Context, excludedFacility string) ([]model.Controller, error) {
	var ctrls []model.Controller
	err := s.db.WithContext(ctx).
		Where("rating > ?", model.RatingInactive).
		Where("home_controller = ? OR rating > ?", true, model.RatingS2).
		Where("facility <> ?", excludedFacility).
		Where("cid NOT IN (?)", s.db.Model(&model.EligibilityRecord{}).Select("cid")).
		Find(&ctrls).Error
	if err != nil {
		return nil, fmt.Errorf("failed to discover tracking candidates: %w", err)
	}
	return ctrls, nil
}

func (s *gormStore) TransfersFor(ctx context.Context, cids []int64) (map[int64][]model.TransferEvent, error) {
	var events []model.TransferEvent
	if err := s.db.WithContext(ctx).Where("cid IN ?", cids).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch transfers: %w", err)
	}
	grouped := make(map[int64][]model.TransferEvent)
	for _, e := range events {
		grouped[e.CID] = append(grouped[e.CID], e)
	}
	return grouped, nil
}

func (s *gormStore) PromotionsFor(ctx context.Context, cids []int64) (map[int64][]model.PromotionEvent, error) {
	var events []model.PromotionEvent
	if err := s.db.WithContext(ctx).Where("cid IN ?", cids).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch promotions: %w", err)
	}
	grouped := make(map[int64][]model.PromotionEvent)
	for _, e := range events {
		grouped[e.CID] = append(grouped[e.CID], e)
	}
	return grouped, nil
}

func (s *gormStore) VisitsFor(ctx context.Context, cids []int64) (map[int64][]model.VisitEvent, error) {
	var events []model.VisitEvent
	if err := s.db.WithContext(ctx).Where("cid IN ?", cids).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch visits: %w", err)
	}
	grouped := make(map[int64][]model.VisitEvent)
	for _, e := range events {
		grouped[e.CID] = append(grouped[e.CID], e)
	}
	return grouped, nil
}

func (s *gormStore) CompetenciesFor(ctx context.Context, cids []int64) (map[int64][]model.CompetencyEvent, error) {
	var events []model.CompetencyEvent
	if err := s.db.WithContext(ctx).Where("cid IN ?", cids).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch competencies: %w", err)
	}
	grouped := make(map[int64][]model.CompetencyEvent)
	for _, e := range events {
		grouped[e.CID] = append(grouped[e.CID], e)
	}
	return grouped, nil
}

func (s *gormStore) Get(ctx context.Context, cid int64) (*model.EligibilityRecord, error) {
	var rec model.EligibilityRecord
	err := s.db.WithContext(ctx).First(&rec, "cid = ?", cid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("eligibility record %d: %w", cid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch eligibility record %d: %w", cid, err)
	}
	return &rec, nil
}

func (s *gormStore) Ensure(ctx context.Context, cid int64) (*model.EligibilityRecord, error) {
	rec := model.EligibilityRecord{CID: cid, CompetencyRating: model.RatingOBS}
	err := s.db.WithContext(ctx).
		Where(model.EligibilityRecord{CID: cid}).
		Attrs(rec).
		FirstOrCreate(&rec).Error
	if err != nil {
		return nil, fmt.Errorf("failed to ensure eligibility record %d: %w", cid, err)
	}
	return &rec, nil
}

func (s *gormStore) Save(ctx context.Context, rec *model.EligibilityRecord) error {
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("failed to save eligibility record %d: %w", rec.CID, err)
	}
	return nil
}

func (s *gormStore) All(ctx context.Context) ([]model.EligibilityRecord, error) {
	var recs []model.EligibilityRecord
	if err := s.db.WithContext(ctx).Order("cid").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch eligibility records: %w", err)
	}
	return recs, nil
}

func (s *gormStore) PendingHours(ctx context.Context) ([]model.EligibilityRecord, error) {
	var recs []model.EligibilityRecord
	err := s.db.WithContext(ctx).
		Where("has_consolidation_hours = ?", false).
		Where("initial_selection = ?", false).
		Where("competency_rating > ?", model.RatingOBS).
		Order("cid").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch hours-pending records: %w", err)
	}
	return recs, nil
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, []int64, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Preload("Controllers").First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	cids := make([]int64, len(sub.Controllers))
	for i, c := range sub.Controllers {
		cids[i] = c.CID
	}
	return &sub, cids, nil
}

func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription, cids []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(sub).Error; err != nil {
			return err
		}

		var ctrls []model.Controller
		if len(cids) > 0 {
			if err := tx.Where("cid IN ?", cids).Find(&ctrls).Error; err != nil {
				return err
			}
		}
		return tx.Model(sub).Association("Controllers").Replace(&ctrls)
	})
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}

func (s *gormStore) SubscriptionsFor(ctx context.Context, cid int64) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_controller_mapping scm ON scm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("scm.controller_c_id = ?", cid).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for controller %d: %w", cid, err)
	}
	return subs, nil
}
