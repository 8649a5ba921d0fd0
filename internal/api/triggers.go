package api

import (
	"net/http"
	"regexp"

	"sentinel-gateway/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type TriggerHandler struct {
	db *gorm.DB
}

func NewTriggerHandler(db *gorm.DB) *TriggerHandler {
	return &TriggerHandler{db: db}
}

var validMatchTypes = map[string]bool{
	models.MatchExact:    true,
	models.MatchContains: true,
	models.MatchRegex:    true,
}

var validScopes = map[string]bool{
	models.ScopeIncoming: true,
	models.ScopeOutgoing: true,
	models.ScopeBoth:     true,
}

// GetTriggers lists triggers, optionally filtered by bot
func (h *TriggerHandler) GetTriggers(c *gin.Context) {
	q := h.db.Order("created_at DESC")
	if botID := c.Query("bot_id"); botID != "" {
		q = q.Where("bot_id = ?", botID)
	}

	var triggers []models.Trigger
	if err := q.Find(&triggers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, triggers)
}

// CreateTrigger creates a match rule for a flow
func (h *TriggerHandler) CreateTrigger(c *gin.Context) {
	var req struct {
		BotID     string  `json:"bot_id" binding:"required"`
		FlowID    string  `json:"flow_id" binding:"required"`
		SessionID *string `json:"session_id"`
		Keyword   string  `json:"keyword" binding:"required"`
		MatchType string  `json:"match_type"`
		Scope     string  `json:"scope"`
		IsActive  *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.MatchType == "" {
		req.MatchType = models.MatchExact
	}
	if req.Scope == "" {
		req.Scope = models.ScopeIncoming
	}
	if !validMatchTypes[req.MatchType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match_type"})
		return
	}
	if !validScopes[req.Scope] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scope"})
		return
	}
	// Reject unparseable regex keywords at save time; the matcher would
	// only skip them later.
	if req.MatchType == models.MatchRegex {
		if _, err := regexp.Compile("(?i)" + req.Keyword); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid regex keyword: " + err.Error()})
			return
		}
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	trig := models.Trigger{
		BotID:     req.BotID,
		FlowID:    req.FlowID,
		SessionID: req.SessionID,
		Keyword:   req.Keyword,
		MatchType: req.MatchType,
		Scope:     req.Scope,
		IsActive:  isActive,
	}
	if err := h.db.Create(&trig).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, trig)
}

// UpdateTrigger updates keyword, match type, scope or active flag
func (h *TriggerHandler) UpdateTrigger(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		Keyword   string `json:"keyword"`
		MatchType string `json:"match_type"`
		Scope     string `json:"scope"`
		IsActive  *bool  `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updateData := map[string]interface{}{}
	if req.Keyword != "" {
		updateData["keyword"] = req.Keyword
	}
	if req.MatchType != "" {
		if !validMatchTypes[req.MatchType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match_type"})
			return
		}
		updateData["match_type"] = req.MatchType
	}
	if req.Scope != "" {
		if !validScopes[req.Scope] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scope"})
			return
		}
		updateData["scope"] = req.Scope
	}
	if req.IsActive != nil {
		updateData["is_active"] = *req.IsActive
	}

	if err := h.db.Model(&models.Trigger{}).Where("id = ?", id).Updates(updateData).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Trigger updated successfully"})
}

// DeleteTrigger removes a trigger
func (h *TriggerHandler) DeleteTrigger(c *gin.Context) {
	if err := h.db.Delete(&models.Trigger{}, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
