package router

import (
	"crypto/subtle"
	"net/http"
	"os"

	"sincrongrupos/controllers"

	"github.com/gin-gonic/gin"
)

// Adminizer protege rotas operacionais com um token de serviço. Não existe
// usuário admin no painel; quem usa essas rotas é a operação, via token em
// ADMIN_API_TOKEN.
func Adminizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := os.Getenv("ADMIN_API_TOKEN")
		if expected == "" {
			controllers.RespondError(c, "rotas administrativas desabilitadas", http.StatusForbidden)
			c.Abort()
			return
		}
		provided := c.GetHeader("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			controllers.RespondError(c, "admin required", http.StatusForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
