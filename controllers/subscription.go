package controllers

import (
	"net/http"
	"time"

	"sincrongrupos/billing"
	dbpkg "sincrongrupos/db"

	"github.com/gin-gonic/gin"
)

// SubscriptionStatus devolve o estado de entitlement do usuário, com cache
// curto para não bater no banco a cada render.
func SubscriptionStatus(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "não autenticado", http.StatusUnauthorized)
		return
	}

	if entitlements != nil {
		if info, ok := entitlements.Get(c.Request.Context(), user.AuthUserID); ok {
			RespondSuccess(c, info)
			return
		}
	}

	info := billing.GetSubscriptionStatus(db, user.AuthUserID, time.Now())
	if entitlements != nil {
		entitlements.Set(c.Request.Context(), user.AuthUserID, info)
	}
	RespondSuccess(c, info)
}
