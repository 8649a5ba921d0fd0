package webhook

import (
	"context"
	"log"
	"net/http"
	"strings"

	"sentinel-gateway/internal/engine"
	"sentinel-gateway/internal/ingest"
	"sentinel-gateway/internal/models"
	wire "sentinel-gateway/pkg/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var supportedPlatforms = map[string]bool{
	"whatsapp": true,
	"telegram": true,
}

type Handler struct {
	db     *gorm.DB
	ingest *ingest.Service
	engine *engine.Engine
}

func NewHandler(db *gorm.DB, ing *ingest.Service, eng *engine.Engine) *Handler {
	return &Handler{db: db, ingest: ing, engine: eng}
}

// HandleEvent ingests one message event and fires the flow engine. The
// contract is fire-and-best-effort-process: the engine never propagates
// errors back here, and redelivered external ids are acknowledged without
// reprocessing.
func (h *Handler) HandleEvent(c *gin.Context) {
	platform := strings.ToLower(c.Param("platform"))
	if !supportedPlatforms[platform] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid platform"})
		return
	}

	var event wire.InboundEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var bot models.Bot
	if err := h.db.Where("identifier = ?", event.BotID).First(&bot).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return
	}

	session, msg, created, err := h.ingest.Ingest(c.Request.Context(), bot.ID, ingest.InboundMessage{
		ExternalID: event.ExternalID,
		From:       event.From,
		FromName:   event.Name,
		Content:    event.Content,
		Type:       event.Type,
		FromMe:     event.FromMe,
	})
	if err != nil {
		log.Printf("[Webhook] Ingest failed for %s: %v", event.ExternalID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingest failed"})
		return
	}

	if created {
		// Decouple processing from the request; the engine absorbs all
		// of its own failures.
		go func(sessionID string, m models.Message) {
			ctx := context.Background()
			h.engine.OnMessage(ctx, sessionID, m)
			h.ingest.MarkProcessed(ctx, m.ID)
		}(session.ID, *msg)
	}

	c.JSON(http.StatusOK, wire.InboundAck{
		Status:    "received",
		MessageID: msg.ID,
		SessionID: session.ID,
		Duplicate: !created,
	})
}
