package controllers

import (
	"net/http"
	"strings"

	dbpkg "sincrongrupos/db"
	"sincrongrupos/models"

	"github.com/gin-gonic/gin"
)

const ctxUserKey = "auth_user"
const ctxOrgKey = "auth_org"

// AuthRequired valida o Bearer token e carrega usuário e organização no
// contexto da requisição.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			RespondError(c, "não autenticado", http.StatusUnauthorized)
			c.Abort()
			return
		}
		token := strings.TrimSpace(h[len("Bearer "):])
		authUserID, err := parseAuthToken(token)
		if err != nil {
			RespondError(c, "token inválido", http.StatusUnauthorized)
			c.Abort()
			return
		}

		db := dbpkg.DBInstance(c)
		if db == nil {
			RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
			c.Abort()
			return
		}

		var user models.User
		if err := db.Where("auth_user_id = ?", authUserID).First(&user).Error; err != nil {
			RespondError(c, "usuário não encontrado", http.StatusUnauthorized)
			c.Abort()
			return
		}

		var org models.Organization
		if err := db.First(&org, user.OrganizationID).Error; err != nil {
			RespondError(c, "organização não encontrada", http.StatusUnauthorized)
			c.Abort()
			return
		}

		c.Set(ctxUserKey, user)
		c.Set(ctxOrgKey, org)
		c.Next()
	}
}

// GetUserLogged devolve o usuário carregado pelo AuthRequired.
func GetUserLogged(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

// GetOrgLogged devolve a organização do usuário autenticado.
func GetOrgLogged(c *gin.Context) (models.Organization, bool) {
	v, ok := c.Get(ctxOrgKey)
	if !ok {
		return models.Organization{}, false
	}
	org, ok := v.(models.Organization)
	return org, ok
}
