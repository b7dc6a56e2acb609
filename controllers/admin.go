package controllers

import (
	"net/http"

	dbpkg "sincrongrupos/db"
	"sincrongrupos/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AdminListGatewayInstances devolve a visão crua do gateway, de todas as
// organizações. Útil para caçar instâncias órfãs que sobraram de um delete
// compensatório que falhou.
func AdminListGatewayInstances(c *gin.Context) {
	instances, err := gateway.AllStatuses(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("admin: falha ao listar instâncias do gateway")
		RespondError(c, "falha ao consultar o gateway", http.StatusBadGateway)
		return
	}
	RespondSuccess(c, gin.H{"instances": instances})
}

// AdminListOrganizations lista as organizações com contagem de instâncias
// ativas e estado de billing.
func AdminListOrganizations(c *gin.Context) {
	db := dbpkg.DBInstance(c)

	var orgs []models.Organization
	if err := db.Order("created_at desc").Find(&orgs).Error; err != nil {
		RespondError(c, "falha ao listar organizações", http.StatusInternalServerError)
		return
	}

	type orgOverview struct {
		models.Organization
		ActiveInstances int `json:"active_instances"`
		InstanceLimit   int `json:"instance_limit"`
	}

	out := make([]orgOverview, 0, len(orgs))
	for _, org := range orgs {
		var count int
		if err := db.Model(&models.Instance{}).
			Where("id_organizacao = ? AND ativo = ?", org.ID, true).
			Count(&count).Error; err != nil {
			RespondError(c, "falha ao contar instâncias", http.StatusInternalServerError)
			return
		}
		out = append(out, orgOverview{
			Organization:    org,
			ActiveInstances: count,
			InstanceLimit:   org.InstanceLimit(),
		})
	}

	RespondSuccess(c, gin.H{"organizations": out})
}
