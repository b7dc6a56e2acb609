package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractPhoneFromJID(t *testing.T) {
	assert.Equal(t, "5511987654321", ExtractPhoneFromJID("5511987654321@s.whatsapp.net"))
	assert.Equal(t, "5511987654321", ExtractPhoneFromJID("5511987654321:87@s.whatsapp.net"))
	assert.Equal(t, "5511987654321", ExtractPhoneFromJID(map[string]any{"user": "5511987654321"}))
	assert.Equal(t, "5511987654321", ExtractPhoneFromJID(map[string]any{"_serialized": "5511987654321@c.us"}))
	assert.Equal(t, "", ExtractPhoneFromJID("sem-arroba"))
	assert.Equal(t, "", ExtractPhoneFromJID(nil))
	assert.Equal(t, "", ExtractPhoneFromJID(42))
}

func TestFormatPhoneNumber(t *testing.T) {
	assert.Equal(t, "+55 11 98765-4321", FormatPhoneNumber("5511987654321"))
	assert.Equal(t, "+55 11 8765-4321", FormatPhoneNumber("551187654321"))
	assert.Equal(t, "+1415555000", FormatPhoneNumber("1415555000"))
	assert.Equal(t, "+55 11 98765-4321", FormatPhoneNumber("+55 (11) 98765-4321"))
	assert.Equal(t, "", FormatPhoneNumber(""))
	assert.Equal(t, "", FormatPhoneNumber("abc"))
}

func TestSanitizeInstanceName(t *testing.T) {
	assert.Equal(t, "minha-instancia", SanitizeInstanceName("Minha Instancia"))
	assert.Equal(t, "vendas-sp-2", SanitizeInstanceName("Vendas  SP #2"))
	assert.Equal(t, "-", SanitizeInstanceName("!!!"))
	assert.Len(t, SanitizeInstanceName("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), 30)
}

func TestGatewayInstanceName(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	assert.Equal(t, "org7-vendas-1700000000000", GatewayInstanceName(7, "Vendas", now))
}

func TestWebhookURLFor(t *testing.T) {
	assert.Equal(t, "https://api.exemplo.com/api/webhooks/uazapi/9", WebhookURLFor("https://api.exemplo.com/", 9))
}
