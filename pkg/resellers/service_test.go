package resellers

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testResellerID = "5f0c1f8e-3a55-4c61-9a43-2d7c1b8e9f10"

func resellerRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "slug", "display_name", "brand_color", "logo_url", "tagline",
		"contact_email", "contact_phone", "contact_line_id", "contact_whatsapp",
		"status", "subscription_status", "subscription_tier", "subscription_period_end",
		"provider_customer_id", "provider_subscription_id", "subscription_synced_at",
		"commission_tier", "referrer_id", "created_at", "updated_at",
	}).AddRow(
		testResellerID, "golf-master-88", "Golf Master", "#0f5132", "https://cdn.example/logo.png", "",
		"guide@example.com", "", "golfmaster", "",
		"approved", "active", "growth", nil,
		"cus_1", "sub_1", now,
		"standard", nil, now, now,
	)
}

func TestPostgresService_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO resellers").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("INSERT INTO reseller_balances").
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := NewPostgresService(db)
	r := &Reseller{Slug: "golf-master-88", Brand: Brand{Name: "Golf Master"}}
	require.NoError(t, svc.Create(context.Background(), r))

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, SubscriptionInactive, r.Subscription.Status)
	assert.Equal(t, TierGrowth, r.Subscription.Tier)
	assert.Equal(t, DefaultCommissionTier, r.CommissionTier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresService_CreateSlugTaken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO resellers").
		WillReturnError(&pq.Error{Code: "23505"})

	svc := NewPostgresService(db)
	err = svc.Create(context.Background(), &Reseller{Slug: "golf-master-88"})
	assert.ErrorIs(t, err, ErrSlugTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresService_CreateRejectsBadSlug(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewPostgresService(db)
	err = svc.Create(context.Background(), &Reseller{Slug: "DROP TABLE"})
	assert.ErrorIs(t, err, ErrInvalidSlug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresService_GetBySlug(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM resellers WHERE slug = $1")).
		WithArgs("golf-master-88").
		WillReturnRows(resellerRow(now))

	svc := NewPostgresService(db)
	r, err := svc.GetBySlug(context.Background(), "golf-master-88")
	require.NoError(t, err)

	assert.Equal(t, testResellerID, r.ID)
	assert.Equal(t, "Golf Master", r.Brand.Name)
	assert.Equal(t, "golfmaster", r.Contact.LineID)
	assert.Equal(t, SubscriptionActive, r.Subscription.Status)
	assert.Nil(t, r.Subscription.PeriodEnd)
	assert.NotNil(t, r.Subscription.SyncedAt)
	assert.Nil(t, r.ReferrerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresService_GetBySlugNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM resellers WHERE slug").WillReturnError(sql.ErrNoRows)

	svc := NewPostgresService(db)
	_, err = svc.GetBySlug(context.Background(), "nobody-here")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresService_GetBySlugMalformedSkipsDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewPostgresService(db)
	for _, slug := range []string{"../etc/passwd", "DROP TABLE", "x"} {
		_, err := svc.GetBySlug(context.Background(), slug)
		assert.ErrorIs(t, err, ErrInvalidSlug, slug)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresService_GetNonUUID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewPostgresService(db)
	_, err = svc.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresService_ApplySubscription(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	end := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE resellers").
		WithArgs(testResellerID, SubscriptionActive, TierPartner, end, "cus_1", "sub_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := NewPostgresService(db)
	err = svc.ApplySubscription(context.Background(), testResellerID, Subscription{
		Status:         SubscriptionActive,
		Tier:           TierPartner,
		PeriodEnd:      &end,
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresService_ApplySubscriptionUnknownReseller(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE resellers").WillReturnResult(sqlmock.NewResult(0, 0))

	svc := NewPostgresService(db)
	err = svc.ApplySubscription(context.Background(), testResellerID, Subscription{Status: SubscriptionActive})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresService_SetCommissionTier(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, 4, 1, 0, 30, 0, 0, time.UTC)
	mock.ExpectExec("SET commission_tier").
		WithArgs(testResellerID, "silver", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := NewPostgresService(db)
	require.NoError(t, svc.SetCommissionTier(context.Background(), testResellerID, "silver", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresService_SetStatusInvalid(t *testing.T) {
	svc := NewPostgresService(nil)
	err := svc.SetStatus(context.Background(), testResellerID, Status("banned"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestPostgresService_ListIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM resellers").
		WithArgs(StatusSuspended).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a").AddRow("b"))

	svc := NewPostgresService(db)
	ids, err := svc.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}
