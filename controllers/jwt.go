package controllers

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var jwtSecret = "CHANGE_ME"

// SetJWTSecret configura o segredo usado para validar tokens de sessão.
// Chamado uma vez no boot a partir da configuração.
func SetJWTSecret(secret string) {
	if secret != "" {
		jwtSecret = secret
	}
}

// authClaims é o mínimo que esperamos do token emitido pelo provedor de
// autenticação: "sub" carrega o id externo do usuário.
type authClaims struct {
	jwt.RegisteredClaims
}

func parseAuthToken(token string) (string, error) {
	claims := &authClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("método de assinatura inesperado: %v", t.Header["alg"])
		}
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", fmt.Errorf("token inválido")
	}
	return claims.Subject, nil
}

// SignAuthToken emite um token HS256 para o usuário. Usado por ferramentas de
// desenvolvimento e testes; em produção os tokens vêm do provedor de auth.
func SignAuthToken(authUserID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   authUserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
}
