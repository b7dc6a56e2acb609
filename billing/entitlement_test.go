package billing

import (
	"path/filepath"
	"testing"
	"time"

	"sincrongrupos/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.Subscription{},
		&models.Customer{},
		&models.Instance{},
		&models.HistoryEvent{},
	).Error)
	return db
}

func seedSubscription(t *testing.T, db *gorm.DB, sub models.Subscription) {
	t.Helper()
	require.NoError(t, db.Create(&sub).Error)
}

func tp(v time.Time) *time.Time { return &v }

func TestGetSubscriptionStatusNone(t *testing.T) {
	db := testDB(t)

	info := GetSubscriptionStatus(db, "user-1", time.Now())

	assert.Equal(t, STATUS_NONE, info.Status)
	assert.Nil(t, info.DaysRemaining)
	assert.Nil(t, info.Subscription)
	assert.False(t, info.CanSendMessages)
}

func TestGetSubscriptionStatusActive(t *testing.T) {
	db := testDB(t)
	seedSubscription(t, db, models.Subscription{
		ID:     "sub_1",
		UserID: "user-1",
		Status: models.SUBSCRIPTION_STATUS_ACTIVE,
	})

	info := GetSubscriptionStatus(db, "user-1", time.Now())

	assert.Equal(t, STATUS_ACTIVE, info.Status)
	assert.Nil(t, info.DaysRemaining)
	assert.True(t, info.CanSendMessages)
	require.NotNil(t, info.Subscription)
	assert.Equal(t, "sub_1", info.Subscription.ID)
}

func TestGetSubscriptionStatusTrialEndBoundary(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		trialEnd time.Time
		wantDays int
	}{
		{"exatamente agora", now, 0},
		{"um segundo no futuro", now.Add(time.Second), 1},
		{"um segundo no passado", now.Add(-time.Second), 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := testDB(t)
			seedSubscription(t, db, models.Subscription{
				ID:       "sub_1",
				UserID:   "user-1",
				Status:   models.SUBSCRIPTION_STATUS_TRIALING,
				TrialEnd: tp(tc.trialEnd),
			})

			info := GetSubscriptionStatus(db, "user-1", now)

			assert.Equal(t, STATUS_TRIALING, info.Status)
			require.NotNil(t, info.DaysRemaining)
			assert.Equal(t, tc.wantDays, *info.DaysRemaining)
			assert.True(t, info.CanSendMessages)
		})
	}
}

func TestGetSubscriptionStatusTrialingRoundsUp(t *testing.T) {
	db := testDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	seedSubscription(t, db, models.Subscription{
		ID:       "sub_1",
		UserID:   "user-1",
		Status:   models.SUBSCRIPTION_STATUS_TRIALING,
		TrialEnd: tp(now.Add(23 * time.Hour)),
	})

	info := GetSubscriptionStatus(db, "user-1", now)

	assert.Equal(t, STATUS_TRIALING, info.Status)
	require.NotNil(t, info.DaysRemaining)
	// 23h restantes ainda contam como 1 dia
	assert.Equal(t, 1, *info.DaysRemaining)
	assert.True(t, info.CanSendMessages)
}

func TestGetSubscriptionStatusGracePeriod(t *testing.T) {
	db := testDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	// Período encerrou há 6 dias e 23 horas: ainda dentro da graça, último dia.
	seedSubscription(t, db, models.Subscription{
		ID:               "sub_1",
		UserID:           "user-1",
		Status:           models.SUBSCRIPTION_STATUS_CANCELED,
		CurrentPeriodEnd: tp(now.Add(-6*24*time.Hour - 23*time.Hour)),
	})

	info := GetSubscriptionStatus(db, "user-1", now)

	assert.Equal(t, STATUS_GRACE_PERIOD, info.Status)
	require.NotNil(t, info.DaysRemaining)
	assert.Equal(t, 1, *info.DaysRemaining)
	assert.False(t, info.CanSendMessages)
}

func TestGetSubscriptionStatusBlockedAfterGrace(t *testing.T) {
	db := testDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	seedSubscription(t, db, models.Subscription{
		ID:               "sub_1",
		UserID:           "user-1",
		Status:           models.SUBSCRIPTION_STATUS_CANCELED,
		CurrentPeriodEnd: tp(now.Add(-7*24*time.Hour - time.Second)),
	})

	info := GetSubscriptionStatus(db, "user-1", now)

	assert.Equal(t, STATUS_BLOCKED, info.Status)
	require.NotNil(t, info.DaysRemaining)
	assert.Equal(t, 0, *info.DaysRemaining)
	assert.False(t, info.CanSendMessages)
}

func TestGetSubscriptionStatusPastDueUsesTrialEndFallback(t *testing.T) {
	db := testDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	seedSubscription(t, db, models.Subscription{
		ID:       "sub_1",
		UserID:   "user-1",
		Status:   models.SUBSCRIPTION_STATUS_PAST_DUE,
		TrialEnd: tp(now.Add(-24 * time.Hour)),
	})

	info := GetSubscriptionStatus(db, "user-1", now)

	assert.Equal(t, STATUS_GRACE_PERIOD, info.Status)
	assert.False(t, info.CanSendMessages)
}

func TestGetSubscriptionStatusPicksMostRecent(t *testing.T) {
	db := testDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	seedSubscription(t, db, models.Subscription{
		ID:      "sub_old",
		UserID:  "user-1",
		Status:  models.SUBSCRIPTION_STATUS_CANCELED,
		Created: tp(now.Add(-60 * 24 * time.Hour)),
	})
	seedSubscription(t, db, models.Subscription{
		ID:      "sub_new",
		UserID:  "user-1",
		Status:  models.SUBSCRIPTION_STATUS_ACTIVE,
		Created: tp(now.Add(-1 * 24 * time.Hour)),
	})

	info := GetSubscriptionStatus(db, "user-1", now)

	assert.Equal(t, STATUS_ACTIVE, info.Status)
	require.NotNil(t, info.Subscription)
	assert.Equal(t, "sub_new", info.Subscription.ID)
}

func TestGetSubscriptionStatusIgnoresOutOfAllowlist(t *testing.T) {
	db := testDB(t)
	seedSubscription(t, db, models.Subscription{
		ID:     "sub_1",
		UserID: "user-1",
		Status: "incomplete_expired",
	})

	info := GetSubscriptionStatus(db, "user-1", time.Now())

	assert.Equal(t, STATUS_NONE, info.Status)
}
