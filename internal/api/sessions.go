package api

import (
	"context"
	"net/http"

	"sentinel-gateway/internal/ingest"
	"sentinel-gateway/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type SessionHandler struct {
	db     *gorm.DB
	ingest *ingest.Service
}

func NewSessionHandler(db *gorm.DB, ing *ingest.Service) *SessionHandler {
	return &SessionHandler{db: db, ingest: ing}
}

// GetSessions lists sessions, optionally filtered by bot
func (h *SessionHandler) GetSessions(c *gin.Context) {
	q := h.db.Order("updated_at DESC")
	if botID := c.Query("bot_id"); botID != "" {
		q = q.Where("bot_id = ?", botID)
	}

	var sessions []models.Session
	if err := q.Find(&sessions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// ProvisionSession creates (or returns) a session ahead of first contact,
// the CRM provisioning path. Idempotent per (bot, identifier).
func (h *SessionHandler) ProvisionSession(c *gin.Context) {
	var req struct {
		BotID      string `json:"bot_id" binding:"required"`
		Identifier string `json:"identifier" binding:"required"`
		Name       string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.ingest.UpsertSession(context.Background(), req.BotID, req.Identifier, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session)
}

// GetSessionMessages returns the message history for one session
func (h *SessionHandler) GetSessionMessages(c *gin.Context) {
	var messages []models.Message
	if err := h.db.Where("session_id = ?", c.Param("id")).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, messages)
}
