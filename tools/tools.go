package tools

import (
	"fmt"
	"strings"
	"time"
)

const slugMaxLen = 30

// SanitizeInstanceName converte o nome digitado pelo usuário em um slug seguro
// para o gateway: minúsculas, não-alfanumérico vira hífen, hífens repetidos
// colapsam, truncado em 30 caracteres.
func SanitizeInstanceName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	b.Grow(len(name))
	lastHyphen := false
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	slug := b.String()
	if len(slug) > slugMaxLen {
		slug = slug[:slugMaxLen]
	}
	return slug
}

// GatewayInstanceName monta o nome globalmente único usado no gateway:
// org + nome sanitizado + timestamp de criação, para nunca colidir com
// instâncias de outras organizações (ou recriações da mesma).
func GatewayInstanceName(orgID int64, name string, now time.Time) string {
	return fmt.Sprintf("org%d-%s-%d", orgID, SanitizeInstanceName(name), now.UnixMilli())
}

// WebhookURLFor monta a URL de webhook da instância a partir da base
// configurada no servidor.
func WebhookURLFor(baseURL string, instanceID int64) string {
	return fmt.Sprintf("%s/api/webhooks/uazapi/%d", strings.TrimRight(baseURL, "/"), instanceID)
}
