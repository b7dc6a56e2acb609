package cache

import (
	"context"
	"encoding/json"
	"time"

	"sincrongrupos/billing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const entitlementTTL = 60 * time.Second

// EntitlementCache guarda o resultado da resolução de entitlement por usuário
// por uma janela curta, já que o status é recomputado a cada acesso ao
// dashboard. Toda escrita do sincronizador de billing invalida a entrada.
//
// É opcional: com rdb nil todas as operações viram no-op e o resolvedor é
// consultado direto.
type EntitlementCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New cria o cache apontando para o Redis em addr. addr vazio desabilita o
// cache (instância nil é segura de usar).
func New(addr string) *EntitlementCache {
	if addr == "" {
		return nil
	}
	return &EntitlementCache{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: entitlementTTL,
	}
}

func key(userID string) string {
	return "entitlement:" + userID
}

// Get devolve o entitlement cacheado do usuário, se houver.
func (c *EntitlementCache) Get(ctx context.Context, userID string) (*billing.SubscriptionInfo, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Msg("entitlement cache: falha no get")
		}
		return nil, false
	}
	var info billing.SubscriptionInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, false
	}
	return &info, true
}

// Set grava o entitlement resolvido. Falha é só logada; o cache nunca bloqueia
// a resposta.
func (c *EntitlementCache) Set(ctx context.Context, userID string, info billing.SubscriptionInfo) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key(userID), raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("entitlement cache: falha no set")
	}
}

// Invalidate descarta a entrada do usuário. Chamado pelo webhook de billing
// para que mudanças de assinatura apareçam sem esperar o TTL.
func (c *EntitlementCache) Invalidate(ctx context.Context, userID string) {
	if c == nil {
		return
	}
	if err := c.rdb.Del(ctx, key(userID)).Err(); err != nil {
		log.Warn().Err(err).Msg("entitlement cache: falha no invalidate")
	}
}
