package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"sincrongrupos/billing"
	dbpkg "sincrongrupos/db"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeWebhook recebe os eventos de billing do Stripe. Assinatura inválida é
// o único caso que não responde 200: qualquer falha de processamento é logada
// e confirmada mesmo assim, para o Stripe não reentregar eternamente um evento
// que nunca vai processar.
func StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		RespondError(c, "corpo inválido", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		conf.Stripe.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		log.Warn().Err(err).Msg("billing: assinatura de webhook inválida")
		RespondError(c, "assinatura inválida", http.StatusBadRequest)
		return
	}

	db := dbpkg.DBInstance(c)

	switch event.Type {
	case "checkout.session.completed":
		var session billing.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			log.Error().Err(err).Str("event_id", event.ID).Msg("billing: payload de checkout inválido")
			break
		}
		if session.Mode != string(stripe.CheckoutSessionModeSubscription) {
			break
		}
		userID := session.Metadata["user_id"]
		if userID == "" || session.Customer == "" {
			log.Warn().Str("event_id", event.ID).Msg("billing: checkout sem user_id ou customer")
			break
		}
		if err := billing.CreateCustomerRecord(db, userID, session.Customer); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("billing: falha ao registrar customer")
		}
		invalidateEntitlement(userID)

	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		var ev billing.SubscriptionEvent
		if err := json.Unmarshal(event.Data.Raw, &ev); err != nil {
			log.Error().Err(err).Str("event_id", event.ID).Msg("billing: payload de assinatura inválido")
			break
		}
		if err := billing.SyncSubscription(db, &ev); err != nil {
			log.Error().Err(err).Str("subscription_id", ev.ID).Msg("billing: falha ao sincronizar assinatura")
		}
		invalidateEntitlement(ev.UserID())

	case "customer.subscription.trial_will_end":
		var ev billing.SubscriptionEvent
		if err := json.Unmarshal(event.Data.Raw, &ev); err == nil {
			log.Info().Str("subscription_id", ev.ID).Int64("trial_end", ev.TrialEnd).Msg("billing: trial prestes a encerrar")
		}

	case "invoice.payment_failed":
		// O estado da assinatura muda via customer.subscription.updated; aqui
		// só fica o rastro para investigação.
		log.Warn().Str("event_id", event.ID).Msg("billing: pagamento de fatura falhou")

	default:
		log.Debug().Str("type", string(event.Type)).Msg("billing: evento ignorado")
	}

	RespondSuccess(c, gin.H{"received": true})
}

func invalidateEntitlement(userID string) {
	if entitlements == nil || userID == "" {
		return
	}
	entitlements.Invalidate(context.Background(), userID)
}
