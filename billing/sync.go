package billing

import (
	"strings"
	"time"

	"sincrongrupos/models"

	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog/log"
)

// CheckoutSession é a representação mínima de um checkout.session.completed.
// Decodificamos só o que usamos; o shape completo do provedor nunca passa
// desta fronteira.
type CheckoutSession struct {
	ID       string            `json:"id"`
	Mode     string            `json:"mode"`
	Customer string            `json:"customer"`
	Metadata map[string]string `json:"metadata"`
}

// SubscriptionEvent é a representação mínima de um evento customer.subscription.*.
// Desde a reestruturação da API do provedor os limites de período vivem no
// primeiro item da assinatura, não na raiz.
type SubscriptionEvent struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CancelAt          int64  `json:"cancel_at"`
	CanceledAt        int64  `json:"canceled_at"`
	TrialStart        int64  `json:"trial_start"`
	TrialEnd          int64  `json:"trial_end"`
	Created           int64  `json:"created"`
	Items             struct {
		Data []struct {
			Quantity           int64 `json:"quantity"`
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// UserID devolve o user_id plantado nos metadados da assinatura no checkout.
func (e *SubscriptionEvent) UserID() string {
	return strings.TrimSpace(e.Metadata["user_id"])
}

// CreateCustomerRecord vincula o usuário ao customer do provedor. Upsert por
// user_id: replays do mesmo checkout não criam linha nova.
func CreateCustomerRecord(db *gorm.DB, userID, stripeCustomerID string) error {
	var existing models.Customer
	err := db.Where("user_id = ?", userID).First(&existing).Error
	if err != nil {
		if !gorm.IsRecordNotFoundError(err) {
			return err
		}
		return db.Create(&models.Customer{UserID: userID, StripeCustomerID: stripeCustomerID}).Error
	}

	if existing.StripeCustomerID == stripeCustomerID {
		return nil
	}
	return db.Model(&models.Customer{}).
		Where("user_id = ?", userID).
		Update("stripe_customer_id", stripeCustomerID).Error
}

// SyncSubscription converge a linha local de assinatura para o estado do evento
// e propaga o resumo desnormalizado para a organização do usuário.
//
// Upsert chaveado pelo id da assinatura no provedor, sempre sobrescrevendo
// todos os campos (last-write-wins). Entrega fora de ordem é detectada pelo
// timestamp created/period e logada em warn, mas o evento ainda é aplicado.
func SyncSubscription(db *gorm.DB, ev *SubscriptionEvent) error {
	userID := ev.UserID()
	if userID == "" {
		log.Error().Str("subscription_id", ev.ID).Msg("billing sync: evento sem user_id nos metadados")
		return nil
	}

	row := models.Subscription{
		ID:                ev.ID,
		UserID:            userID,
		StripeCustomerID:  ev.Customer,
		Status:            ev.Status,
		Quantity:          1,
		CancelAtPeriodEnd: ev.CancelAtPeriodEnd,
		CancelAt:          unixTime(ev.CancelAt),
		CanceledAt:        unixTime(ev.CanceledAt),
		TrialStart:        unixTime(ev.TrialStart),
		TrialEnd:          unixTime(ev.TrialEnd),
		Created:           unixTime(ev.Created),
	}
	if len(ev.Items.Data) > 0 {
		item := ev.Items.Data[0]
		row.PriceID = item.Price.ID
		if item.Quantity > 0 {
			row.Quantity = item.Quantity
		}
		row.CurrentPeriodStart = unixTime(item.CurrentPeriodStart)
		row.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
	}

	var existing models.Subscription
	err := db.Where("id = ?", ev.ID).First(&existing).Error
	if err != nil {
		if !gorm.IsRecordNotFoundError(err) {
			return err
		}
		if err := db.Create(&row).Error; err != nil {
			return err
		}
	} else {
		if isOlderThan(&row, &existing) {
			log.Warn().
				Str("subscription_id", ev.ID).
				Str("incoming_status", row.Status).
				Str("stored_status", existing.Status).
				Msg("billing sync: evento fora de ordem, aplicando mesmo assim (last-write-wins)")
		}
		updates := map[string]any{
			"user_id":              row.UserID,
			"stripe_customer_id":   row.StripeCustomerID,
			"status":               row.Status,
			"price_id":             row.PriceID,
			"quantity":             row.Quantity,
			"cancel_at_period_end": row.CancelAtPeriodEnd,
			"cancel_at":            row.CancelAt,
			"canceled_at":          row.CanceledAt,
			"current_period_start": row.CurrentPeriodStart,
			"current_period_end":   row.CurrentPeriodEnd,
			"trial_start":          row.TrialStart,
			"trial_end":            row.TrialEnd,
			"created":              row.Created,
		}
		if err := db.Model(&models.Subscription{}).Where("id = ?", ev.ID).Updates(updates).Error; err != nil {
			return err
		}
	}

	syncOrganizationBilling(db, userID, ev.Customer, &row)
	return nil
}

// syncOrganizationBilling copia o resumo de cobrança para a organização do
// usuário. Falha aqui não derruba o sync da assinatura; só loga.
func syncOrganizationBilling(db *gorm.DB, userID, stripeCustomerID string, sub *models.Subscription) {
	var user models.User
	if err := db.Where("auth_user_id = ?", userID).First(&user).Error; err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("billing sync: usuário sem organização")
		return
	}

	err := db.Model(&models.Organization{}).
		Where("id = ?", user.OrganizationID).
		Updates(map[string]any{
			"stripe_customer_id":     stripeCustomerID,
			"stripe_subscription_id": sub.ID,
			"subscription_status":    sub.Status,
			"trial_ends_at":          sub.TrialEnd,
		}).Error
	if err != nil {
		log.Error().Err(err).Int64("org_id", user.OrganizationID).Msg("billing sync: falha ao atualizar organização")
		return
	}
	log.Info().Int64("org_id", user.OrganizationID).Str("status", sub.Status).Msg("billing sync: organização atualizada")
}

// isOlderThan compara o relógio do provedor entre evento e linha armazenada.
func isOlderThan(incoming, stored *models.Subscription) bool {
	if incoming.Created != nil && stored.Created != nil && incoming.Created.Before(*stored.Created) {
		return true
	}
	if incoming.CurrentPeriodEnd != nil && stored.CurrentPeriodEnd != nil &&
		incoming.CurrentPeriodEnd.Before(*stored.CurrentPeriodEnd) {
		return true
	}
	return false
}

func unixTime(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
