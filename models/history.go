package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
)

/************************************************
/**** MARK: HISTORY EVENT TYPES ****/
/************************************************/
const HISTORY_EVENT_CONNECTED = "connected"
const HISTORY_EVENT_DISCONNECTED = "disconnected"
const HISTORY_EVENT_CREATED = "created"
const HISTORY_EVENT_DELETED = "deleted"
const HISTORY_EVENT_ERROR = "error"

// HISTORY_DEFAULT_LIMIT é o recorte usado no card de histórico inline.
const HISTORY_DEFAULT_LIMIT = 5

// HistoryEvent é um registro imutável do histórico de conexões de uma instância.
// Só existe append e leitura; nunca update ou delete.
type HistoryEvent struct {
	ID         int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	InstanceID int64      `gorm:"column:instancia_id;not null;index" json:"instancia_id"`
	EventType  string     `gorm:"column:event_type;not null" json:"event_type"`
	Details    string     `gorm:"type:text" json:"details"`
	CreatedAt  *time.Time `json:"created_at"`
}

// AppendHistory registra um evento no histórico da instância. details vira
// JSON livre; nil grava detalhe vazio. O timestamp é atribuído pelo banco.
func AppendHistory(db *gorm.DB, instanceID int64, eventType string, details any) error {
	if !IsValidHistoryEventType(eventType) {
		return fmt.Errorf("tipo de evento inválido: %s", eventType)
	}

	detailsJSON := ""
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return err
		}
		detailsJSON = string(raw)
	}

	return db.Create(&HistoryEvent{
		InstanceID: instanceID,
		EventType:  eventType,
		Details:    detailsJSON,
	}).Error
}

// IsValidHistoryEventType valida o tipo contra a enumeração fixa.
func IsValidHistoryEventType(t string) bool {
	switch t {
	case HISTORY_EVENT_CONNECTED, HISTORY_EVENT_DISCONNECTED, HISTORY_EVENT_CREATED,
		HISTORY_EVENT_DELETED, HISTORY_EVENT_ERROR:
		return true
	}
	return false
}
