package models

import "time"

// User representa um usuário do painel. A autenticação em si fica com o provedor
// de identidade externo; aqui guardamos só o mapeamento auth_user_id -> organização.
type User struct {
	ID             int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	AuthUserID     string     `gorm:"column:auth_user_id;not null;unique_index" json:"auth_user_id"`
	Email          string     `gorm:"not null" json:"email" form:"email"`
	Nome           string     `json:"nome" form:"nome"`
	OrganizationID int64      `gorm:"column:id_organizacao;not null;index" json:"id_organizacao"`
	CreatedAt      *time.Time `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
}
