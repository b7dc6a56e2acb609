package models

import "time"

/************************************************
/**** MARK: INSTANCE STATUS ****/
/************************************************/
const INSTANCE_STATUS_DESCONECTADO = "desconectado"
const INSTANCE_STATUS_CONECTANDO = "conectando"
const INSTANCE_STATUS_CONECTADO = "conectado"
const INSTANCE_STATUS_DESCONECTANDO = "desconectando"
const INSTANCE_STATUS_ERRO = "erro"

// Instance representa uma conexão WhatsApp gerenciada via gateway externo.
// ApiKey é a credencial devolvida pelo gateway na criação; sem ela a instância
// nunca sai de "desconectado". Deleção é sempre soft (ativo=false) para
// preservar o histórico de conexões.
type Instance struct {
	ID            int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	NomeInstancia string `gorm:"column:nome_instancia;not null" json:"nome_instancia" form:"nome_instancia"`
	ApiKey        string `gorm:"column:api_key;unique_index" json:"api_key"`
	Status        string `gorm:"not null;default:'desconectado'" json:"status"`

	NumeroTelefone       string     `gorm:"column:numero_telefone" json:"numero_telefone"`
	ProfileName          string     `gorm:"column:profile_name" json:"profile_name"`
	ProfilePicURL        string     `gorm:"column:profile_pic_url" json:"profile_pic_url"`
	IsBusiness           bool       `gorm:"column:is_business;default:false" json:"is_business"`
	Platform             string     `gorm:"default:''" json:"platform"`
	WebhookURL           string     `gorm:"column:webhook_url" json:"webhook_url"`
	LastDisconnectAt     *time.Time `gorm:"column:last_disconnect_at" json:"last_disconnect_at"`
	LastDisconnectReason string     `gorm:"column:last_disconnect_reason" json:"last_disconnect_reason"`

	Ativo          bool  `gorm:"not null;default:true;index" json:"ativo"`
	OrganizationID int64 `gorm:"column:id_organizacao;not null;index" json:"id_organizacao"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
