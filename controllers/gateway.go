package controllers

import (
	"net/http"
	"time"

	dbpkg "sincrongrupos/db"
	"sincrongrupos/models"
	"sincrongrupos/tools"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// InstanceStatuses devolve a visão corrente do loop de reconciliação: todas as
// instâncias com status, o conjunto de desconectadas e o estado do banner.
func InstanceStatuses(c *gin.Context) {
	org, ok := GetOrgLogged(c)
	if !ok {
		RespondError(c, "não autenticado", http.StatusUnauthorized)
		return
	}
	if manager == nil {
		RespondError(c, "reconciliação não configurada", http.StatusServiceUnavailable)
		return
	}

	r, err := manager.Get(org.ID)
	if err != nil {
		RespondError(c, "falha ao iniciar reconciliação", http.StatusInternalServerError)
		return
	}

	disconnected, dismissed := r.Disconnected()
	RespondSuccess(c, gin.H{
		"instances":        r.Snapshot(),
		"desconectadas":    disconnected,
		"banner_dismissed": dismissed,
	})
}

// InstanceLiveStatus consulta o gateway na hora para uma única instância e
// persiste o resultado.
func InstanceLiveStatus(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	instance, ok := loadOwnedInstance(c, db)
	if !ok {
		return
	}
	if instance.ApiKey == "" {
		RespondError(c, "instância sem credencial no gateway", http.StatusConflict)
		return
	}

	status, err := gateway.Status(c.Request.Context(), instance.ApiKey)
	if err != nil {
		log.Warn().Err(err).Int64("instance_id", instance.ID).Msg("gateway: falha ao consultar status")
		RespondError(c, "falha ao consultar o gateway", http.StatusBadGateway)
		return
	}

	applyLiveStatus(db, &instance, status)
	RespondSuccess(c, gin.H{
		"instance": instance,
		"status": gin.H{
			"connected":       status.Connected,
			"logged_in":       status.LoggedIn,
			"phone":           status.PhoneFormatted,
			"profile_name":    status.ProfileName,
			"profile_pic_url": status.ProfilePicURL,
		},
	})
}

// ConnectInstance inicia (ou reinicia) uma sessão de pareamento por QR code.
func ConnectInstance(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	org, _ := GetOrgLogged(c)
	instance, ok := loadOwnedInstance(c, db)
	if !ok {
		return
	}
	if instance.ApiKey == "" {
		RespondError(c, "instância sem credencial no gateway", http.StatusConflict)
		return
	}

	if err := db.Model(&models.Instance{}).
		Where("id = ?", instance.ID).
		Update("status", models.INSTANCE_STATUS_CONECTANDO).Error; err != nil {
		log.Warn().Err(err).Int64("instance_id", instance.ID).Msg("gateway: falha ao marcar conectando")
	}

	session := pairings.Begin(db, gateway, instance, func(instanceID int64) {
		if manager != nil {
			if r, ok := manager.Peek(org.ID); ok {
				r.MarkConnected(instanceID)
			}
		}
	})

	RespondSuccess(c, session.Snapshot())
}

// PairingStatus devolve o estado corrente da sessão de pareamento.
func PairingStatus(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	instance, ok := loadOwnedInstance(c, db)
	if !ok {
		return
	}

	session, ok := pairings.Lookup(instance.ID)
	if !ok {
		RespondError(c, "nenhum pareamento em andamento", http.StatusNotFound)
		return
	}
	RespondSuccess(c, session.Snapshot())
}

// CancelPairing encerra a sessão de pareamento sem conectar.
func CancelPairing(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	instance, ok := loadOwnedInstance(c, db)
	if !ok {
		return
	}
	pairings.End(instance.ID)
	RespondSuccess(c, gin.H{"canceled": true})
}

// DisconnectInstance derruba a sessão com atualização otimista: marca
// "desconectando" antes da chamada e reverte se o gateway falhar.
func DisconnectInstance(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	org, _ := GetOrgLogged(c)
	instance, ok := loadOwnedInstance(c, db)
	if !ok {
		return
	}
	if instance.ApiKey == "" {
		RespondError(c, "instância sem credencial no gateway", http.StatusConflict)
		return
	}

	previous := instance.Status
	setStatus := func(status string) {
		if err := db.Model(&models.Instance{}).
			Where("id = ?", instance.ID).
			Update("status", status).Error; err != nil {
			log.Warn().Err(err).Int64("instance_id", instance.ID).Msg("gateway: falha ao atualizar status")
		}
		if manager != nil {
			if r, ok := manager.Peek(org.ID); ok {
				r.SetStatus(instance.ID, status)
			}
		}
	}

	setStatus(models.INSTANCE_STATUS_DESCONECTANDO)

	if err := gateway.Disconnect(c.Request.Context(), instance.ApiKey); err != nil {
		setStatus(previous)
		log.Error().Err(err).Int64("instance_id", instance.ID).Msg("gateway: falha ao desconectar")
		RespondError(c, "falha ao desconectar instância", http.StatusBadGateway)
		return
	}

	now := time.Now()
	if err := db.Model(&models.Instance{}).
		Where("id = ?", instance.ID).
		Updates(map[string]any{
			"status":             models.INSTANCE_STATUS_DESCONECTADO,
			"last_disconnect_at": &now,
		}).Error; err != nil {
		log.Warn().Err(err).Int64("instance_id", instance.ID).Msg("gateway: falha ao persistir desconexão")
	}
	if manager != nil {
		if r, ok := manager.Peek(org.ID); ok {
			r.SetStatus(instance.ID, models.INSTANCE_STATUS_DESCONECTADO)
		}
	}

	if err := models.AppendHistory(db, instance.ID, models.HISTORY_EVENT_DISCONNECTED, gin.H{"motivo": "Desconectado manualmente"}); err != nil {
		log.Warn().Err(err).Int64("instance_id", instance.ID).Msg("gateway: falha ao registrar desconexão no histórico")
	}

	RespondSuccess(c, gin.H{"disconnected": true})
}

// ConfigureWebhook aponta o webhook da instância para a URL decidida no
// servidor. O cliente nunca escolhe o destino.
func ConfigureWebhook(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	instance, ok := loadOwnedInstance(c, db)
	if !ok {
		return
	}
	if instance.ApiKey == "" {
		RespondError(c, "instância sem credencial no gateway", http.StatusConflict)
		return
	}

	webhookURL := tools.WebhookURLFor(conf.Uazapi.WebhookBaseURL, instance.ID)
	if err := gateway.SetWebhook(c.Request.Context(), instance.ApiKey, webhookURL); err != nil {
		log.Error().Err(err).Int64("instance_id", instance.ID).Msg("gateway: falha ao configurar webhook")
		RespondError(c, "falha ao configurar webhook", http.StatusBadGateway)
		return
	}

	if err := db.Model(&models.Instance{}).
		Where("id = ?", instance.ID).
		Update("webhook_url", webhookURL).Error; err != nil {
		log.Warn().Err(err).Int64("instance_id", instance.ID).Msg("gateway: falha ao persistir webhook_url")
	}

	RespondSuccess(c, gin.H{"webhook_url": webhookURL})
}

// DismissBanner suprime o banner de desconexão até a próxima queda nova.
func DismissBanner(c *gin.Context) {
	org, ok := GetOrgLogged(c)
	if !ok {
		RespondError(c, "não autenticado", http.StatusUnauthorized)
		return
	}
	if manager != nil {
		if r, ok := manager.Peek(org.ID); ok {
			r.DismissBanner()
		}
	}
	RespondSuccess(c, gin.H{"dismissed": true})
}

// PausePolling suspende a reconciliação periódica da organização (aba em
// segundo plano no cliente).
func PausePolling(c *gin.Context) {
	org, ok := GetOrgLogged(c)
	if !ok {
		RespondError(c, "não autenticado", http.StatusUnauthorized)
		return
	}
	if manager != nil {
		manager.Pause(org.ID)
	}
	RespondSuccess(c, gin.H{"paused": true})
}

// ResumePolling religa a reconciliação com um refresh imediato.
func ResumePolling(c *gin.Context) {
	org, ok := GetOrgLogged(c)
	if !ok {
		RespondError(c, "não autenticado", http.StatusUnauthorized)
		return
	}
	if manager != nil {
		manager.Resume(org.ID)
	}
	RespondSuccess(c, gin.H{"resumed": true})
}
