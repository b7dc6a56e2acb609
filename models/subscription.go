package models

import "time"

/************************************************
/**** MARK: SUBSCRIPTION STATUS (provider) ****/
/************************************************/
const SUBSCRIPTION_STATUS_ACTIVE = "active"
const SUBSCRIPTION_STATUS_TRIALING = "trialing"
const SUBSCRIPTION_STATUS_PAST_DUE = "past_due"
const SUBSCRIPTION_STATUS_CANCELED = "canceled"

// SubscriptionStatusAllowlist define quais linhas contam como "assinatura corrente"
// na resolução de entitlement. Qualquer outro status do provedor é ignorado.
var SubscriptionStatusAllowlist = []string{
	SUBSCRIPTION_STATUS_ACTIVE,
	SUBSCRIPTION_STATUS_TRIALING,
	SUBSCRIPTION_STATUS_PAST_DUE,
	SUBSCRIPTION_STATUS_CANCELED,
}

// Subscription espelha a assinatura do provedor de cobrança. A chave primária é o
// id da assinatura no provedor (sub_...): replays do mesmo evento fazem upsert e
// nunca insert duplicado. Escrita exclusiva do sincronizador de billing; o resto
// do sistema só lê.
type Subscription struct {
	ID                 string     `gorm:"primary_key" json:"id"`
	UserID             string     `gorm:"column:user_id;not null;index" json:"user_id"`
	StripeCustomerID   string     `gorm:"column:stripe_customer_id" json:"stripe_customer_id"`
	Status             string     `gorm:"not null;index" json:"status"`
	PriceID            string     `gorm:"column:price_id" json:"price_id"`
	Quantity           int64      `gorm:"default:1" json:"quantity"`
	CancelAtPeriodEnd  bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CancelAt           *time.Time `json:"cancel_at"`
	CanceledAt         *time.Time `json:"canceled_at"`
	CurrentPeriodStart *time.Time `gorm:"column:current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `gorm:"column:current_period_end" json:"current_period_end"`
	TrialStart         *time.Time `json:"trial_start"`
	TrialEnd           *time.Time `json:"trial_end"`

	// Created é o timestamp de criação no provedor, usado para escolher a linha
	// mais recente quando um usuário acumula mais de uma assinatura.
	Created *time.Time `gorm:"column:created;index" json:"created"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// Customer liga um usuário (auth_user_id) ao customer do provedor de cobrança.
// Criado no checkout.session.completed, antes da assinatura chegar via webhook.
type Customer struct {
	UserID           string     `gorm:"column:user_id;primary_key" json:"user_id"`
	StripeCustomerID string     `gorm:"column:stripe_customer_id;not null" json:"stripe_customer_id"`
	CreatedAt        *time.Time `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at"`
}
