package controllers

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"sincrongrupos/config"
	dbpkg "sincrongrupos/db"
	"sincrongrupos/models"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_teste"

func newWebhookEnv(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.Subscription{},
		&models.Customer{},
	).Error)

	var cfg config.Configuration
	cfg.Stripe.WebhookSecret = testWebhookSecret
	SetConfigurations(cfg)
	t.Cleanup(func() { SetConfigurations(config.Configuration{}) })

	r := gin.New()
	r.Use(dbpkg.SetDBtoContext(db))
	r.POST("/api/billing/webhook", StripeWebhook)
	return r, db
}

func signedRequest(t *testing.T, payload []byte) *http.Request {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, testWebhookSecret)
	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig)))
	return req
}

func subscriptionEventPayload(eventType, status string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": %q,
		"data": {"object": {
			"id": "sub_1",
			"customer": "cus_1",
			"status": %q,
			"created": %d,
			"items": {"data": [{"quantity": 1, "current_period_end": %d, "price": {"id": "price_1"}}]},
			"metadata": {"user_id": "auth-1"}
		}}
	}`, eventType, status, time.Now().Unix(), time.Now().Add(30*24*time.Hour).Unix()))
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	r, _ := newWebhookEnv(t)

	payload := subscriptionEventPayload("customer.subscription.updated", "active")
	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStripeWebhookSyncsSubscription(t *testing.T) {
	r, db := newWebhookEnv(t)
	org := models.Organization{Nome: "Org"}
	require.NoError(t, db.Create(&org).Error)
	require.NoError(t, db.Create(&models.User{AuthUserID: "auth-1", Email: "a@exemplo.com", OrganizationID: org.ID}).Error)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, subscriptionEventPayload("customer.subscription.created", "trialing")))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received": true}`, w.Body.String())

	var sub models.Subscription
	require.NoError(t, db.Where("id = ?", "sub_1").First(&sub).Error)
	assert.Equal(t, "auth-1", sub.UserID)
	assert.Equal(t, models.SUBSCRIPTION_STATUS_TRIALING, sub.Status)

	var updatedOrg models.Organization
	require.NoError(t, db.First(&updatedOrg, org.ID).Error)
	assert.Equal(t, "sub_1", updatedOrg.StripeSubscriptionID)
}

func TestStripeWebhookCheckoutCreatesCustomer(t *testing.T) {
	r, db := newWebhookEnv(t)

	payload := []byte(`{
		"id": "evt_2",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"mode": "subscription",
			"customer": "cus_1",
			"metadata": {"user_id": "auth-1"}
		}}
	}`)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, payload))

	require.Equal(t, http.StatusOK, w.Code)
	var customer models.Customer
	require.NoError(t, db.Where("user_id = ?", "auth-1").First(&customer).Error)
	assert.Equal(t, "cus_1", customer.StripeCustomerID)
}

func TestStripeWebhookAcksUnknownEvents(t *testing.T) {
	r, _ := newWebhookEnv(t)

	payload := []byte(`{"id": "evt_3", "type": "invoice.paid", "data": {"object": {}}}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, payload))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received": true}`, w.Body.String())
}

func TestStripeWebhookAcksProcessingFailures(t *testing.T) {
	r, _ := newWebhookEnv(t)

	// sem user_id nos metadados: o sync vira no-op logado, mas o evento é
	// confirmado para não reentregar para sempre
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_4",
		"type": "customer.subscription.updated",
		"data": {"object": {"id": "sub_x", "customer": "cus_1", "status": "active", "created": %d}}
	}`, time.Now().Unix()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, payload))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received": true}`, w.Body.String())
}
