package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	dbpkg "sincrongrupos/db"
	"sincrongrupos/models"
	"sincrongrupos/tools"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog/log"
)

type createInstanceInput struct {
	NomeInstancia string `json:"nome_instancia" binding:"required"`
}

// ListInstances devolve as instâncias ativas da organização, mais o estado do
// banner de desconexão mantido pelo loop de reconciliação.
func ListInstances(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	org, ok := GetOrgLogged(c)
	if !ok {
		RespondError(c, "não autenticado", http.StatusUnauthorized)
		return
	}

	var instances []models.Instance
	err := db.Where("id_organizacao = ? AND ativo = ?", org.ID, true).
		Order("created_at desc").
		Find(&instances).Error
	if err != nil {
		RespondError(c, "falha ao listar instâncias", http.StatusInternalServerError)
		return
	}

	payload := gin.H{"instances": instances}
	if manager != nil {
		if r, err := manager.Get(org.ID); err == nil {
			disconnected, dismissed := r.Disconnected()
			payload["desconectadas"] = disconnected
			payload["banner_dismissed"] = dismissed
		}
	}
	RespondSuccess(c, payload)
}

// CreateInstance provisiona uma nova instância: valida a cota ANTES de chamar
// o gateway e desfaz a criação remota se a persistência local falhar.
func CreateInstance(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	org, ok := GetOrgLogged(c)
	if !ok {
		RespondError(c, "não autenticado", http.StatusUnauthorized)
		return
	}

	var input createInstanceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, "nome_instancia é obrigatório", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(input.NomeInstancia)
	if len(name) < 3 || len(name) > 50 || !tools.ValidateInstanceName(name) {
		RespondError(c, "nome_instancia deve ter entre 3 e 50 caracteres", http.StatusBadRequest)
		return
	}

	limit := org.InstanceLimit()
	var current int
	if err := db.Model(&models.Instance{}).
		Where("id_organizacao = ? AND ativo = ?", org.ID, true).
		Count(&current).Error; err != nil {
		RespondError(c, "falha ao verificar limite de instâncias", http.StatusInternalServerError)
		return
	}
	if current >= limit {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "Limite de instâncias do plano atingido",
			"limit":   limit,
			"current": current,
		})
		return
	}

	gatewayName := tools.GatewayInstanceName(org.ID, name, time.Now())
	token, err := gateway.CreateInstance(c.Request.Context(), gatewayName, systemName, orgAdminField(org.ID))
	if err != nil {
		log.Error().Err(err).Int64("org_id", org.ID).Msg("instances: falha ao criar instância no gateway")
		RespondError(c, "falha ao criar instância no gateway", http.StatusBadGateway)
		return
	}

	instance := models.Instance{
		NomeInstancia:  name,
		ApiKey:         token,
		Status:         models.INSTANCE_STATUS_DESCONECTADO,
		Ativo:          true,
		OrganizationID: org.ID,
	}
	if err := db.Create(&instance).Error; err != nil {
		// Persistência falhou depois da criação remota: desfaz no gateway para
		// não deixar instância órfã consumindo a cota de ninguém.
		log.Error().Err(err).Int64("org_id", org.ID).Msg("instances: falha ao persistir, removendo do gateway")
		if delErr := gateway.DeleteInstance(c.Request.Context(), token); delErr != nil {
			log.Error().Err(delErr).Msg("instances: falha no delete compensatório")
		}
		RespondError(c, "falha ao salvar instância", http.StatusInternalServerError)
		return
	}

	user, _ := GetUserLogged(c)
	if err := models.AppendHistory(db, instance.ID, models.HISTORY_EVENT_CREATED, gin.H{
		"nome":       instance.NomeInstancia,
		"created_by": user.Email,
	}); err != nil {
		log.Warn().Err(err).Int64("instance_id", instance.ID).Msg("instances: falha ao registrar criação no histórico")
	}

	if manager != nil {
		if r, err := manager.Get(org.ID); err == nil {
			r.Track(instance)
		}
	}

	c.JSON(http.StatusCreated, instance)
}

// GetInstance devolve uma instância da organização, atualizando status e
// perfil com o gateway quando possível.
func GetInstance(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	instance, ok := loadOwnedInstance(c, db)
	if !ok {
		return
	}

	if instance.ApiKey != "" {
		if status, err := gateway.Status(c.Request.Context(), instance.ApiKey); err == nil {
			applyLiveStatus(db, &instance, status)
		} else {
			log.Warn().Err(err).Int64("instance_id", instance.ID).Msg("instances: falha ao atualizar status com o gateway")
		}
	}

	RespondSuccess(c, instance)
}

// DeleteInstance remove a instância: histórico primeiro, gateway em seguida
// (best-effort) e por fim o soft-delete local.
func DeleteInstance(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	org, _ := GetOrgLogged(c)
	instance, ok := loadOwnedInstance(c, db)
	if !ok {
		return
	}

	if err := models.AppendHistory(db, instance.ID, models.HISTORY_EVENT_DELETED, gin.H{"nome": instance.NomeInstancia}); err != nil {
		log.Warn().Err(err).Int64("instance_id", instance.ID).Msg("instances: falha ao registrar remoção no histórico")
	}

	if instance.ApiKey != "" {
		if err := gateway.DeleteInstance(c.Request.Context(), instance.ApiKey); err != nil {
			// O registro local some mesmo assim; o gateway expira órfãs.
			log.Warn().Err(err).Int64("instance_id", instance.ID).Msg("instances: falha ao remover do gateway")
		}
	}

	if err := db.Model(&models.Instance{}).
		Where("id = ?", instance.ID).
		Update("ativo", false).Error; err != nil {
		RespondError(c, "falha ao remover instância", http.StatusInternalServerError)
		return
	}

	pairings.End(instance.ID)
	if manager != nil {
		if r, ok := manager.Peek(org.ID); ok {
			r.Untrack(instance.ID)
		}
	}

	RespondSuccess(c, gin.H{"deleted": true})
}

// loadOwnedInstance carrega a instância do path param garantindo que pertence
// à organização autenticada. Instância de outra organização responde 404, não
// 403, para não vazar existência.
func loadOwnedInstance(c *gin.Context, db *gorm.DB) (models.Instance, bool) {
	org, ok := GetOrgLogged(c)
	if !ok {
		RespondError(c, "não autenticado", http.StatusUnauthorized)
		return models.Instance{}, false
	}
	id, ok := ParamID(c, "id")
	if !ok {
		return models.Instance{}, false
	}

	var instance models.Instance
	err := db.Where("id = ? AND id_organizacao = ? AND ativo = ?", id, org.ID, true).
		First(&instance).Error
	if err != nil {
		RespondError(c, "instância não encontrada", http.StatusNotFound)
		return models.Instance{}, false
	}
	return instance, true
}

// applyLiveStatus mescla o status vivo do gateway na instância e persiste,
// preservando valores locais quando o gateway devolve campos vazios.
func applyLiveStatus(db *gorm.DB, instance *models.Instance, status *tools.InstanceStatus) {
	if status.Connected && status.LoggedIn {
		instance.Status = models.INSTANCE_STATUS_CONECTADO
	} else {
		instance.Status = models.INSTANCE_STATUS_DESCONECTADO
	}
	if status.PhoneNumber != "" {
		instance.NumeroTelefone = status.PhoneNumber
	}
	if status.ProfileName != "" {
		instance.ProfileName = status.ProfileName
	}
	if status.ProfilePicURL != "" {
		instance.ProfilePicURL = status.ProfilePicURL
	}
	instance.IsBusiness = status.IsBusiness
	if status.Platform != "" {
		instance.Platform = status.Platform
	}
	if status.LastDisconnectReason != "" {
		instance.LastDisconnectReason = status.LastDisconnectReason
	}

	err := db.Model(&models.Instance{}).
		Where("id = ?", instance.ID).
		Updates(map[string]any{
			"status":                 instance.Status,
			"numero_telefone":        instance.NumeroTelefone,
			"profile_name":           instance.ProfileName,
			"profile_pic_url":        instance.ProfilePicURL,
			"is_business":            instance.IsBusiness,
			"platform":               instance.Platform,
			"last_disconnect_reason": instance.LastDisconnectReason,
		}).Error
	if err != nil {
		log.Warn().Err(err).Int64("instance_id", instance.ID).Msg("instances: falha ao persistir status atualizado")
	}
}

func orgAdminField(orgID int64) string {
	return "org-" + strconv.FormatInt(orgID, 10)
}
