package controllers

import (
	"net/http"
	"strings"

	dbpkg "sincrongrupos/db"
	"sincrongrupos/models"
	"sincrongrupos/tools"

	"github.com/gin-gonic/gin"
)

type bootstrapInput struct {
	Email   string `json:"email" binding:"required"`
	Nome    string `json:"nome"`
	OrgNome string `json:"org_nome"`
}

// BootstrapUser cria usuário e organização no primeiro login. O provedor de
// auth já autenticou a pessoa; aqui só materializamos o registro local, então
// o token é validado direto (o usuário ainda não existe para o AuthRequired).
// Idempotente: chamadas repetidas devolvem o registro existente.
func BootstrapUser(c *gin.Context) {
	db := dbpkg.DBInstance(c)

	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
		RespondError(c, "não autenticado", http.StatusUnauthorized)
		return
	}
	authUserID, err := parseAuthToken(strings.TrimSpace(h[len("Bearer "):]))
	if err != nil {
		RespondError(c, "token inválido", http.StatusUnauthorized)
		return
	}

	var existing models.User
	if err := db.Where("auth_user_id = ?", authUserID).First(&existing).Error; err == nil {
		RespondSuccess(c, existing)
		return
	}

	var input bootstrapInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, "email é obrigatório", http.StatusBadRequest)
		return
	}
	if !tools.ValidateEmail(input.Email) {
		RespondError(c, "E-mail inválido!", http.StatusBadRequest)
		return
	}

	orgName := strings.TrimSpace(input.OrgNome)
	if orgName == "" {
		orgName = input.Email
	}

	tx := db.Begin()

	org := models.Organization{Nome: orgName}
	if err := tx.Create(&org).Error; err != nil {
		tx.Rollback()
		RespondError(c, "falha ao criar organização", http.StatusInternalServerError)
		return
	}

	user := models.User{
		AuthUserID:     authUserID,
		Email:          input.Email,
		Nome:           input.Nome,
		OrganizationID: org.ID,
	}
	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		RespondError(c, "falha ao criar usuário", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		RespondError(c, "falha ao criar usuário", http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, user)
}
