package controllers

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	dbpkg "sincrongrupos/db"
	"sincrongrupos/models"
	"sincrongrupos/tools"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// uazapiWebhookPayload é o shape mínimo dos eventos de conexão que o gateway
// entrega no webhook configurado por instância.
type uazapiWebhookPayload struct {
	Event    string `json:"event"`
	Token    string `json:"token"`
	Status   string `json:"status"`
	Reason   string `json:"reason"`
	Instance struct {
		Status string `json:"status"`
		Owner  any    `json:"owner"`
	} `json:"instance"`
}

// UazapiWebhook recebe eventos de conexão do gateway. A autenticação é o token
// da instância no payload (ou no header): precisa bater com a credencial que
// guardamos na criação.
func UazapiWebhook(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	id, ok := ParamID(c, "instanceId")
	if !ok {
		return
	}

	var instance models.Instance
	if err := db.Where("id = ? AND ativo = ?", id, true).First(&instance).Error; err != nil {
		RespondError(c, "instância não encontrada", http.StatusNotFound)
		return
	}

	var payload uazapiWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		RespondError(c, "payload inválido", http.StatusBadRequest)
		return
	}

	token := payload.Token
	if token == "" {
		token = c.GetHeader("token")
	}
	if instance.ApiKey == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(instance.ApiKey)) != 1 {
		RespondError(c, "token inválido", http.StatusForbidden)
		return
	}

	status := payload.Status
	if status == "" {
		status = payload.Instance.Status
	}

	switch strings.ToLower(status) {
	case "connected":
		updates := map[string]any{"status": models.INSTANCE_STATUS_CONECTADO}
		if phone := tools.ExtractPhoneFromJID(payload.Instance.Owner); phone != "" {
			updates["numero_telefone"] = phone
		}
		if err := db.Model(&models.Instance{}).Where("id = ?", instance.ID).Updates(updates).Error; err != nil {
			log.Warn().Err(err).Int64("instance_id", instance.ID).Msg("webhook: falha ao persistir conexão")
		}
		if err := models.AppendHistory(db, instance.ID, models.HISTORY_EVENT_CONNECTED, gin.H{"origem": "webhook"}); err != nil {
			log.Warn().Err(err).Int64("instance_id", instance.ID).Msg("webhook: falha ao registrar histórico")
		}
		if manager != nil {
			if r, ok := manager.Peek(instance.OrganizationID); ok {
				r.MarkConnected(instance.ID)
			}
		}

	case "disconnected", "loggedout", "logged_out":
		now := time.Now()
		updates := map[string]any{
			"status":             models.INSTANCE_STATUS_DESCONECTADO,
			"last_disconnect_at": &now,
		}
		if payload.Reason != "" {
			updates["last_disconnect_reason"] = payload.Reason
		}
		if err := db.Model(&models.Instance{}).Where("id = ?", instance.ID).Updates(updates).Error; err != nil {
			log.Warn().Err(err).Int64("instance_id", instance.ID).Msg("webhook: falha ao persistir desconexão")
		}
		details := gin.H{"origem": "webhook"}
		if payload.Reason != "" {
			details["motivo"] = payload.Reason
		}
		if err := models.AppendHistory(db, instance.ID, models.HISTORY_EVENT_DISCONNECTED, details); err != nil {
			log.Warn().Err(err).Int64("instance_id", instance.ID).Msg("webhook: falha ao registrar histórico")
		}

	default:
		log.Debug().Str("event", payload.Event).Str("status", status).Int64("instance_id", instance.ID).Msg("webhook: evento ignorado")
	}

	c.String(http.StatusOK, "EVENT_RECEIVED")
}
