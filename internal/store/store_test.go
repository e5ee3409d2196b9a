package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"controller-eligibility-backend/internal/db"
	"controller-eligibility-backend/internal/model"
)

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: conn,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// A helper function to create a migrated in-memory database.
func newTestDB(t *testing.T) Store {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	return NewGormStore(gormDB)
}

func TestGormStore_PendingHoursQuery(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT * FROM "eligibility_records" WHERE has_consolidation_hours = $1 AND initial_selection = $2 AND competency_rating > $3 ORDER BY cid`)).
		WithArgs(false, false, model.RatingOBS).
		WillReturnRows(sqlmock.NewRows([]string{"cid", "competency_rating"}).
			AddRow(1000, 2).
			AddRow(1001, 5))

	recs, err := s.PendingHours(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(1000), recs[0].CID)
	assert.Equal(t, int64(1001), recs[1].CID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_UntrackedCandidatesQuery(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT * FROM "controllers" WHERE rating > $1 AND (home_controller = $2 OR rating > $3) AND facility <> $4 AND cid NOT IN (SELECT "cid" FROM "eligibility_records")`)).
		WithArgs(model.RatingInactive, true, model.RatingS2, "ZZN").
		WillReturnRows(sqlmock.NewRows([]string{"cid", "rating", "facility", "home_controller"}).
			AddRow(1000, 4, "ZAB", true))

	ctrls, err := s.UntrackedCandidates(context.Background(), "ZZN")
	require.NoError(t, err)
	require.Len(t, ctrls, 1)
	assert.Equal(t, int64(1000), ctrls[0].CID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_EnsureIsIdempotent(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	rec, err := s.Ensure(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), rec.CID)
	assert.Equal(t, model.RatingOBS, rec.CompetencyRating)
	assert.Equal(t, model.TriUnknown, rec.InitialSelection)

	rec.CompetencyRating = 4
	rec.InitialSelection = model.TriFalse
	require.NoError(t, s.Save(ctx, rec))

	again, err := s.Ensure(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, 4, again.CompetencyRating)
	assert.Equal(t, model.TriFalse, again.InitialSelection)
}

func TestGormStore_GetNotFound(t *testing.T) {
	s := newTestDB(t)

	_, err := s.Get(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Find(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_TristateRoundTrip(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	rec, err := s.Ensure(ctx, 1000)
	require.NoError(t, err)

	// Unknown persists as NULL and comes back as Unknown.
	got, err := s.Get(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, model.TriUnknown, got.InitialSelection)
	assert.Equal(t, model.TriUnknown, got.HasConsolidationHours)

	rec.InitialSelection = model.TriTrue
	rec.HasConsolidationHours = model.TriFalse
	require.NoError(t, s.Save(ctx, rec))

	got, err = s.Get(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, model.TriTrue, got.InitialSelection)
	assert.Equal(t, model.TriFalse, got.HasConsolidationHours)
}

func TestGormStore_HistoryGrouping(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.DB().Create(&[]model.TransferEvent{
		{CID: 1000, FromFacility: "ZAE", ToFacility: "ZAB", Status: model.TransferAccepted, CreatedAt: now.Add(-48 * time.Hour)},
		{CID: 1000, FromFacility: "ZAB", ToFacility: "ZDV", Status: model.TransferAccepted, CreatedAt: now.Add(-24 * time.Hour)},
		{CID: 2000, FromFacility: "ZAE", ToFacility: "ZHU", Status: model.TransferPending, CreatedAt: now},
	}).Error)

	grouped, err := s.TransfersFor(ctx, []int64{1000, 2000, 3000})
	require.NoError(t, err)
	assert.Len(t, grouped[1000], 2)
	assert.Len(t, grouped[2000], 1)
	assert.NotContains(t, grouped, int64(3000))
}

func TestGormStore_FindAll(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.DB().Create(&[]model.Controller{
		{CID: 1000, Rating: 4, Facility: "ZAB", HomeController: true},
		{CID: 2000, Rating: 5, Facility: "ZDV", HomeController: false},
	}).Error)

	ctrls, err := s.FindAll(ctx, []int64{1000, 2000, 9999})
	require.NoError(t, err)
	require.Len(t, ctrls, 2)
	assert.Equal(t, "ZAB", ctrls[1000].Facility)
	assert.Equal(t, "ZDV", ctrls[2000].Facility)
}

func TestGormStore_SubscriptionLifecycle(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.DB().Create(&[]model.Controller{
		{CID: 1000, Rating: 4, Facility: "ZAB", HomeController: true},
		{CID: 2000, Rating: 5, Facility: "ZDV", HomeController: true},
	}).Error)

	sub := &model.PushSubscription{Endpoint: "https://push.example/a", P256DH: "key", Auth: "auth"}
	require.NoError(t, s.UpsertSubscription(ctx, sub, []int64{1000, 2000}))

	got, cids, err := s.GetSubscription(ctx, "https://push.example/a")
	require.NoError(t, err)
	assert.Equal(t, "key", got.P256DH)
	assert.ElementsMatch(t, []int64{1000, 2000}, cids)

	// Upserting again replaces keys and watched controllers.
	sub2 := &model.PushSubscription{Endpoint: "https://push.example/a", P256DH: "key2", Auth: "auth2"}
	require.NoError(t, s.UpsertSubscription(ctx, sub2, []int64{2000}))

	got, cids, err = s.GetSubscription(ctx, "https://push.example/a")
	require.NoError(t, err)
	assert.Equal(t, "key2", got.P256DH)
	assert.Equal(t, []int64{2000}, cids)

	watching, err := s.SubscriptionsFor(ctx, 2000)
	require.NoError(t, err)
	require.Len(t, watching, 1)
	assert.Equal(t, "https://push.example/a", watching[0].Endpoint)

	watching, err = s.SubscriptionsFor(ctx, 1000)
	require.NoError(t, err)
	assert.Empty(t, watching)

	require.NoError(t, s.DeleteSubscription(ctx, "https://push.example/a"))
	_, _, err = s.GetSubscription(ctx, "https://push.example/a")
	assert.True(t, errors.Is(err, ErrNotFound))
}
