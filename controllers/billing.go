package controllers

import (
	"net/http"

	dbpkg "sincrongrupos/db"
	"sincrongrupos/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

const trialPeriodDays = 7

type checkoutInput struct {
	PriceID string `json:"price_id"`
}

// CreateCheckoutSession abre uma sessão de checkout de assinatura. O trial
// exige cartão na frente (coleta de pagamento sempre), e o user_id vai nos
// metadados da sessão E da assinatura para o webhook conseguir correlacionar.
func CreateCheckoutSession(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "não autenticado", http.StatusUnauthorized)
		return
	}

	var input checkoutInput
	_ = c.ShouldBindJSON(&input)
	priceID := input.PriceID
	if priceID == "" {
		priceID = conf.Stripe.PriceID
	}
	if priceID == "" {
		RespondError(c, "price_id não configurado", http.StatusBadRequest)
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:              stripe.String(conf.AppURL + "/instancias?checkout=sucesso"),
		CancelURL:               stripe.String(conf.AppURL + "/planos?checkout=cancelado"),
		PaymentMethodCollection: stripe.String(string(stripe.CheckoutSessionPaymentMethodCollectionAlways)),
		AllowPromotionCodes:     stripe.Bool(true),
		Locale:                  stripe.String("pt-BR"),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(trialPeriodDays),
			Metadata:        map[string]string{"user_id": user.AuthUserID},
		},
	}
	params.AddMetadata("user_id", user.AuthUserID)

	// Reusa o customer existente para não duplicar cadastro no Stripe.
	var customer models.Customer
	if err := db.Where("user_id = ?", user.AuthUserID).First(&customer).Error; err == nil {
		params.Customer = stripe.String(customer.StripeCustomerID)
	} else if user.Email != "" {
		params.CustomerEmail = stripe.String(user.Email)
	}

	s, err := session.New(params)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.AuthUserID).Msg("billing: falha ao criar sessão de checkout")
		RespondError(c, "falha ao criar sessão de checkout", http.StatusBadGateway)
		return
	}

	RespondSuccess(c, gin.H{"url": s.URL, "session_id": s.ID})
}

// CreatePortalSession abre o portal de billing do Stripe para o customer do
// usuário gerenciar a assinatura.
func CreatePortalSession(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "não autenticado", http.StatusUnauthorized)
		return
	}

	var customer models.Customer
	if err := db.Where("user_id = ?", user.AuthUserID).First(&customer).Error; err != nil {
		RespondError(c, "nenhuma assinatura encontrada", http.StatusNotFound)
		return
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customer.StripeCustomerID),
		ReturnURL: stripe.String(conf.AppURL + "/configuracoes"),
	}
	s, err := portalsession.New(params)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.AuthUserID).Msg("billing: falha ao criar sessão do portal")
		RespondError(c, "falha ao abrir portal de billing", http.StatusBadGateway)
		return
	}

	RespondSuccess(c, gin.H{"url": s.URL})
}
