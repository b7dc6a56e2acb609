package models

import (
	"encoding/json"
	"strings"
	"time"
)

// DEFAULT_INSTANCE_LIMIT vale quando a organização ainda não tem plan_limits configurado.
const DEFAULT_INSTANCE_LIMIT = 1

// Organization é a fronteira de tenant: dona das instâncias e do vínculo de cobrança.
// Os campos stripe_* são um resumo desnormalizado mantido pelo sincronizador de billing
// para leituras rápidas (badge de trial, página de cobrança).
type Organization struct {
	ID   int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Nome string `gorm:"not null" json:"nome" form:"nome"`

	// PlanLimits guarda JSON no formato {"instances": N}.
	PlanLimits string `gorm:"type:text" json:"plan_limits"`

	StripeCustomerID     string     `gorm:"column:stripe_customer_id" json:"stripe_customer_id"`
	StripeSubscriptionID string     `gorm:"column:stripe_subscription_id" json:"stripe_subscription_id"`
	SubscriptionStatus   string     `gorm:"column:subscription_status" json:"subscription_status"`
	TrialEndsAt          *time.Time `gorm:"column:trial_ends_at" json:"trial_ends_at"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// InstanceLimit devolve a cota de instâncias do plano da organização.
func (o *Organization) InstanceLimit() int {
	raw := strings.TrimSpace(o.PlanLimits)
	if raw == "" {
		return DEFAULT_INSTANCE_LIMIT
	}
	var limits struct {
		Instances *int `json:"instances"`
	}
	if err := json.Unmarshal([]byte(raw), &limits); err != nil || limits.Instances == nil || *limits.Instances <= 0 {
		return DEFAULT_INSTANCE_LIMIT
	}
	return *limits.Instances
}
