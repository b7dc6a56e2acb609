package controllers

import (
	"context"

	"sincrongrupos/cache"
	"sincrongrupos/config"
	"sincrongrupos/tools"
	"sincrongrupos/workers"
)

// systemName identifica as instâncias deste sistema no gateway compartilhado.
const systemName = "sincron-grupos"

// GatewayClient é o recorte do cliente UAZAPI que os handlers usam. Interface
// no consumidor para permitir fake nos testes.
type GatewayClient interface {
	CreateInstance(ctx context.Context, name, systemName, adminField01 string) (string, error)
	DeleteInstance(ctx context.Context, token string) error
	Status(ctx context.Context, token string) (*tools.InstanceStatus, error)
	Connect(ctx context.Context, token string) (*tools.ConnectResult, error)
	Disconnect(ctx context.Context, token string) error
	SetWebhook(ctx context.Context, token, webhookURL string) error
	AllStatuses(ctx context.Context) ([]tools.GatewayInstance, error)
}

var (
	gateway      GatewayClient
	manager      *workers.Manager
	pairings     = workers.NewPairingRegistry()
	entitlements *cache.EntitlementCache
	conf         config.Configuration
)

func SetGateway(g GatewayClient) { gateway = g }

func SetManager(m *workers.Manager) { manager = m }

func SetEntitlementCache(c *cache.EntitlementCache) { entitlements = c }

func SetConfigurations(c config.Configuration) { conf = c }
