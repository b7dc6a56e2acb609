package controllers

import (
	"net/http"
	"strconv"

	dbpkg "sincrongrupos/db"
	"sincrongrupos/models"

	"github.com/gin-gonic/gin"
)

type appendHistoryInput struct {
	EventType string `json:"event_type" binding:"required"`
	Details   any    `json:"details"`
}

// ListHistory devolve os eventos mais recentes da instância, do mais novo para
// o mais antigo.
func ListHistory(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	instance, ok := loadOwnedInstance(c, db)
	if !ok {
		return
	}

	limit := models.HISTORY_DEFAULT_LIMIT
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			RespondError(c, "limit inválido", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var events []models.HistoryEvent
	err := db.Where("instancia_id = ?", instance.ID).
		Order("created_at desc").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		RespondError(c, "falha ao listar histórico", http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, gin.H{"events": events})
}

// AppendHistoryEvent registra um evento no ledger da instância. O ledger é
// append-only: não existe update nem delete de evento.
func AppendHistoryEvent(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	instance, ok := loadOwnedInstance(c, db)
	if !ok {
		return
	}

	var input appendHistoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, "event_type é obrigatório", http.StatusBadRequest)
		return
	}
	if !models.IsValidHistoryEventType(input.EventType) {
		RespondError(c, "tipo de evento inválido", http.StatusBadRequest)
		return
	}

	if err := models.AppendHistory(db, instance.ID, input.EventType, input.Details); err != nil {
		RespondError(c, "falha ao registrar evento", http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"recorded": true})
}
