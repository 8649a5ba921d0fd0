package api

import (
	"context"
	"net/http"
	"strconv"

	"sentinel-gateway/internal/models"
	"sentinel-gateway/internal/transport"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageHandler struct {
	db      *gorm.DB
	senders *transport.Registry
}

func NewMessageHandler(db *gorm.DB, senders *transport.Registry) *MessageHandler {
	return &MessageHandler{db: db, senders: senders}
}

// GetMessages lists recent messages for a bot, newest first
func (h *MessageHandler) GetMessages(c *gin.Context) {
	botID := c.Query("bot_id")
	if botID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bot_id is required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var messages []models.Message
	if err := h.db.
		Joins("JOIN sessions ON sessions.id = messages.session_id").
		Where("sessions.bot_id = ?", botID).
		Order("messages.created_at DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, messages)
}

type sendRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	MediaURL  string `json:"media_url"`
	Caption   string `json:"caption"`
}

// SendMessage delivers an operator-composed message through the bot's
// transport, outside of any flow.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var session models.Session
	if err := h.db.First(&session, "id = ?", req.SessionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	sender, err := h.senders.Get(session.BotID)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	payload := transport.Payload{Kind: transport.PayloadText, Text: req.Content}
	switch req.Type {
	case "", models.StepText:
		if req.Content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "content is required for text messages"})
			return
		}
	case models.StepImage:
		if req.MediaURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "media_url is required for image messages"})
			return
		}
		payload = transport.Payload{Kind: transport.PayloadImage, MediaURL: req.MediaURL, Caption: req.Caption}
	case models.StepAudio:
		if req.MediaURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "media_url is required for audio messages"})
			return
		}
		payload = transport.Payload{Kind: transport.PayloadAudio, MediaURL: req.MediaURL}
	case models.StepPTT:
		if req.MediaURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "media_url is required for voice notes"})
			return
		}
		payload = transport.Payload{Kind: transport.PayloadPTT, MediaURL: req.MediaURL, PTT: true}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported message type: " + req.Type})
		return
	}

	if err := sender.Send(context.Background(), session.Identifier, payload); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	// Operator sends have no transport-assigned id; mint one so the
	// external_id uniqueness holds.
	msg := models.Message{
		ExternalID:  "api:" + uuid.NewString(),
		SessionID:   session.ID,
		Sender:      session.Identifier,
		Content:     req.Content,
		Type:        req.Type,
		FromMe:      true,
		IsProcessed: true,
	}
	if msg.Type == "" {
		msg.Type = models.StepText
	}
	if err := h.db.Create(&msg).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, msg)
}
