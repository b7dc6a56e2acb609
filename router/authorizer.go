package router

import (
	"net/http"
	"time"

	"sincrongrupos/billing"
	"sincrongrupos/controllers"
	dbpkg "sincrongrupos/db"

	"github.com/gin-gonic/gin"
)

// Authorizer bloqueia o painel quando o entitlement do usuário expirou de vez
// (cancelado além do período de graça). "none" passa: logo depois do checkout
// o webhook pode ainda não ter chegado, e bloquear aqui criaria um falso
// positivo; o frontend mostra o estado "sincronizando".
func Authorizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := controllers.GetUserLogged(c)
		if !ok {
			controllers.RespondError(c, "não autenticado", http.StatusUnauthorized)
			c.Abort()
			return
		}

		db := dbpkg.DBInstance(c)
		info := billing.GetSubscriptionStatus(db, user.AuthUserID, time.Now())
		if info.Status == billing.STATUS_BLOCKED {
			c.JSON(http.StatusForbidden, gin.H{
				"error":    "assinatura expirada",
				"redirect": "/planos",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
