package billing

import (
	"time"

	"sincrongrupos/models"

	"github.com/jinzhu/gorm"
)

/************************************************
/**** MARK: ENTITLEMENT STATUS (derivado) ****/
/************************************************/
const STATUS_ACTIVE = "active"
const STATUS_TRIALING = "trialing"
const STATUS_GRACE_PERIOD = "grace_period"
const STATUS_BLOCKED = "blocked"
const STATUS_NONE = "none"

// GRACE_PERIOD_DAYS é a janela fixa após o fim da assinatura em que o acesso
// de leitura continua mas o envio é revogado.
const GRACE_PERIOD_DAYS = 7

// SubscriptionInfo é o entitlement derivado de um usuário. Nunca é persistido;
// é recalculado a cada acesso a partir da assinatura armazenada + relógio.
type SubscriptionInfo struct {
	Status          string               `json:"status"`
	DaysRemaining   *int                 `json:"days_remaining"`
	Subscription    *models.Subscription `json:"subscription"`
	CanSendMessages bool                 `json:"can_send_messages"`
}

// GetSubscriptionStatus resolve o entitlement do usuário em now.
//
// A cadeia é um if/elif estrito: active > trialing > grace_period > blocked >
// none. Dias restantes sempre arredondam PARA CIMA, para nunca mostrar
// "0 dias" a um usuário ainda dentro do prazo.
func GetSubscriptionStatus(db *gorm.DB, userID string, now time.Time) SubscriptionInfo {
	var sub models.Subscription
	err := db.
		Where("user_id = ?", userID).
		Where("status in (?)", models.SubscriptionStatusAllowlist).
		Order("created desc").
		First(&sub).Error
	if err != nil {
		return SubscriptionInfo{Status: STATUS_NONE, DaysRemaining: nil, Subscription: nil, CanSendMessages: false}
	}

	if sub.Status == models.SUBSCRIPTION_STATUS_ACTIVE {
		return SubscriptionInfo{Status: STATUS_ACTIVE, DaysRemaining: nil, Subscription: &sub, CanSendMessages: true}
	}

	if sub.Status == models.SUBSCRIPTION_STATUS_TRIALING && sub.TrialEnd != nil {
		days := daysUntil(now, *sub.TrialEnd)
		if days < 0 {
			days = 0
		}
		return SubscriptionInfo{Status: STATUS_TRIALING, DaysRemaining: &days, Subscription: &sub, CanSendMessages: true}
	}

	if sub.Status == models.SUBSCRIPTION_STATUS_PAST_DUE || sub.Status == models.SUBSCRIPTION_STATUS_CANCELED {
		end := sub.CurrentPeriodEnd
		if end == nil {
			end = sub.TrialEnd
		}
		if end != nil {
			graceEnd := end.Add(GRACE_PERIOD_DAYS * 24 * time.Hour)
			if now.Before(graceEnd) {
				days := daysUntil(now, graceEnd)
				return SubscriptionInfo{Status: STATUS_GRACE_PERIOD, DaysRemaining: &days, Subscription: &sub, CanSendMessages: false}
			}
		}
	}

	zero := 0
	return SubscriptionInfo{Status: STATUS_BLOCKED, DaysRemaining: &zero, Subscription: &sub, CanSendMessages: false}
}

// daysUntil arredonda para cima: 23h restantes contam como 1 dia.
func daysUntil(now, end time.Time) int {
	d := end.Sub(now)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}
