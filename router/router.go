package router

import (
	"sincrongrupos/config"
	"sincrongrupos/controllers"
	"sincrongrupos/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Initialize monta as rotas: webhook público do Stripe, rotas autenticadas e,
// dentro delas, as rotas que exigem entitlement vigente.
func Initialize(r *gin.Engine, cfg config.Configuration) {
	_ = cfg

	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api")

	// Webhooks: públicos, a autenticação é a assinatura (Stripe) ou o token da
	// instância (gateway).
	api.POST("/billing/webhook", Logger(), controllers.StripeWebhook)
	api.POST("/webhooks/uazapi/:instanceId", Logger(), controllers.UazapiWebhook)

	// Bootstrap do primeiro login (valida o token por conta própria)
	api.POST("/users", Logger(), controllers.BootstrapUser)

	// Rotas operacionais (token de serviço)
	admin := api.Group("/admin")
	admin.Use(Adminizer())
	admin.GET("/gateway/instances", Logger(), controllers.AdminListGatewayInstances)
	admin.GET("/organizations", Logger(), controllers.AdminListOrganizations)

	// Authenticated routes (token required)
	auth := api.Group("")
	auth.Use(controllers.AuthRequired())
	auth.GET("/me", Logger(), controllers.Me)

	auth.GET("/subscription/status", Logger(), controllers.SubscriptionStatus)
	auth.POST("/billing/checkout", Logger(), controllers.CreateCheckoutSession)
	auth.POST("/billing/portal", Logger(), controllers.CreatePortalSession)

	// Validated routes (token + entitlement)
	validated := auth.Group("")
	validated.Use(Authorizer())

	// Instâncias
	validated.GET("/instances", Logger(), controllers.ListInstances)
	validated.POST("/instances", Logger(), controllers.CreateInstance)
	validated.GET("/instances/status", Logger(), controllers.InstanceStatuses)
	validated.GET("/instances/:id", Logger(), controllers.GetInstance)
	validated.DELETE("/instances/:id", Logger(), controllers.DeleteInstance)

	// Conexão / pareamento
	validated.GET("/instances/:id/status", Logger(), controllers.InstanceLiveStatus)
	validated.POST("/instances/:id/connect", Logger(), controllers.ConnectInstance)
	validated.GET("/instances/:id/pairing", Logger(), controllers.PairingStatus)
	validated.DELETE("/instances/:id/pairing", Logger(), controllers.CancelPairing)
	validated.POST("/instances/:id/disconnect", Logger(), controllers.DisconnectInstance)
	validated.POST("/instances/:id/webhook", Logger(), controllers.ConfigureWebhook)

	// Histórico (append-only)
	validated.GET("/instances/:id/history", Logger(), controllers.ListHistory)
	validated.POST("/instances/:id/history", Logger(), controllers.AppendHistoryEvent)

	// Banner e polling
	validated.POST("/instances/banner/dismiss", Logger(), controllers.DismissBanner)
	validated.POST("/polling/pause", Logger(), controllers.PausePolling)
	validated.POST("/polling/resume", Logger(), controllers.ResumePolling)

	log.Info().Msg("rotas inicializadas")
}
