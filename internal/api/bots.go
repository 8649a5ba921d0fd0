package api

import (
	"encoding/json"
	"net/http"

	"sentinel-gateway/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type BotHandler struct {
	db *gorm.DB
}

func NewBotHandler(db *gorm.DB) *BotHandler {
	return &BotHandler{db: db}
}

// GetBots returns all bots
func (h *BotHandler) GetBots(c *gin.Context) {
	var bots []models.Bot
	if err := h.db.Order("name ASC").Find(&bots).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, bots)
}

// CreateBot registers a new bot identity
func (h *BotHandler) CreateBot(c *gin.Context) {
	var req struct {
		Name        string          `json:"name" binding:"required"`
		Platform    string          `json:"platform"`
		Identifier  string          `json:"identifier" binding:"required"`
		Credentials json.RawMessage `json:"credentials"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Platform == "" {
		req.Platform = "WHATSAPP"
	}
	bot := models.Bot{
		Name:        req.Name,
		Platform:    req.Platform,
		Identifier:  req.Identifier,
		Credentials: string(req.Credentials),
	}

	var existing models.Bot
	if err := h.db.Where("identifier = ?", req.Identifier).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "bot identifier already exists"})
		return
	}

	if err := h.db.Create(&bot).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, bot)
}

// UpdateBot updates name/identifier/credentials
func (h *BotHandler) UpdateBot(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		Name        string          `json:"name"`
		Platform    string          `json:"platform"`
		Identifier  string          `json:"identifier"`
		Credentials json.RawMessage `json:"credentials"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updateData := map[string]interface{}{}
	if req.Name != "" {
		updateData["name"] = req.Name
	}
	if req.Platform != "" {
		updateData["platform"] = req.Platform
	}
	if req.Identifier != "" {
		updateData["identifier"] = req.Identifier
	}
	if len(req.Credentials) > 0 {
		updateData["credentials"] = string(req.Credentials)
	}

	if err := h.db.Model(&models.Bot{}).Where("id = ?", id).Updates(updateData).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bot updated successfully"})
}

// DeleteBot removes a bot
func (h *BotHandler) DeleteBot(c *gin.Context) {
	if err := h.db.Delete(&models.Bot{}, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
