package tools

import (
	"regexp"
	"strings"
	"unicode"
)

// jidPattern captura o número antes do "@", tolerando o sufixo opcional de
// sub-dispositivo (":87" em "5511999999999:87@s.whatsapp.net").
var jidPattern = regexp.MustCompile(`^(\d+)(?::\d+)?@`)

// ExtractPhoneFromJID extrai o número de telefone de um JID do WhatsApp.
// O gateway devolve o JID ora como string, ora como objeto com "user" ou
// "_serialized" (drift de schema entre versões), e os três formatos são aceitos.
func ExtractPhoneFromJID(jid any) string {
	switch v := jid.(type) {
	case string:
		if m := jidPattern.FindStringSubmatch(v); m != nil {
			return m[1]
		}
	case map[string]any:
		if user, ok := v["user"].(string); ok && user != "" {
			return user
		}
		if serialized, ok := v["_serialized"].(string); ok {
			if m := jidPattern.FindStringSubmatch(serialized); m != nil {
				return m[1]
			}
		}
	}
	return ""
}

// FormatPhoneNumber formata um número brasileiro para exibição.
//
// 5511999999999 -> +55 11 99999-9999
// 551199999999  -> +55 11 9999-9999
// Qualquer outro formato só ganha o prefixo "+".
func FormatPhoneNumber(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return ""
	}

	// BR com nono dígito: +55 XX XXXXX-XXXX
	if len(cleaned) == 13 && strings.HasPrefix(cleaned, "55") {
		return "+55 " + cleaned[2:4] + " " + cleaned[4:9] + "-" + cleaned[9:]
	}

	// BR sem nono dígito: +55 XX XXXX-XXXX
	if len(cleaned) == 12 && strings.HasPrefix(cleaned, "55") {
		return "+55 " + cleaned[2:4] + " " + cleaned[4:8] + "-" + cleaned[8:]
	}

	return "+" + cleaned
}
