package api

import (
	"fmt"
	"net/http"
	"sort"

	"sentinel-gateway/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type FlowHandler struct {
	db *gorm.DB
}

func NewFlowHandler(db *gorm.DB) *FlowHandler {
	return &FlowHandler{db: db}
}

type stepRequest struct {
	Order     int    `json:"order"`
	Type      string `json:"type" binding:"required"`
	Content   string `json:"content"`
	MediaURL  string `json:"media_url"`
	DelayMs   int64  `json:"delay_ms"`
	JitterPct int    `json:"jitter_pct"`
	Metadata  string `json:"metadata"`
}

type flowRequest struct {
	BotID         string        `json:"bot_id" binding:"required"`
	Name          string        `json:"name" binding:"required"`
	Description   string        `json:"description"`
	UsageLimit    int           `json:"usage_limit"`
	CooldownMs    int64         `json:"cooldown_ms"`
	ExcludesFlows []string      `json:"excludes_flows"`
	Steps         []stepRequest `json:"steps"`
}

// validateSteps enforces dense 0-based ordering, jitter bounds and
// well-formed CONDITIONAL_TIME metadata before anything is persisted.
func validateSteps(steps []stepRequest) error {
	sorted := make([]stepRequest, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	for i, s := range sorted {
		if s.Order != i {
			return fmt.Errorf("step orders must be dense from 0, got %d at position %d", s.Order, i)
		}
		if s.JitterPct < 0 || s.JitterPct > 100 {
			return fmt.Errorf("step %d: jitter_pct must be 0-100", s.Order)
		}
		if s.DelayMs < 0 {
			return fmt.Errorf("step %d: delay_ms must not be negative", s.Order)
		}
		if s.Type == models.StepConditionalTime {
			meta, err := models.DecodeStepMetadata(s.Metadata)
			if err != nil {
				return fmt.Errorf("step %d: %w", s.Order, err)
			}
			if err := meta.Validate(); err != nil {
				return fmt.Errorf("step %d: %w", s.Order, err)
			}
		}
	}
	return nil
}

// GetFlows lists flows with their ordered steps and triggers
func (h *FlowHandler) GetFlows(c *gin.Context) {
	q := h.db.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_order ASC")
	}).Preload("Triggers")
	if botID := c.Query("bot_id"); botID != "" {
		q = q.Where("bot_id = ?", botID)
	}

	var flows []models.Flow
	if err := q.Find(&flows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, flows)
}

// GetFlow returns one flow with steps and triggers
func (h *FlowHandler) GetFlow(c *gin.Context) {
	var flow models.Flow
	err := h.db.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_order ASC")
	}).Preload("Triggers").First(&flow, "id = ?", c.Param("id")).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "flow not found"})
		return
	}
	c.JSON(http.StatusOK, flow)
}

// CreateFlow creates a flow together with its steps
func (h *FlowHandler) CreateFlow(c *gin.Context) {
	var req flowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateSteps(req.Steps); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	flow := models.Flow{
		BotID:       req.BotID,
		Name:        req.Name,
		Description: req.Description,
		UsageLimit:  req.UsageLimit,
		CooldownMs:  req.CooldownMs,
	}
	flow.SetExcludedFlowIDs(req.ExcludesFlows)

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&flow).Error; err != nil {
			return err
		}
		for _, s := range req.Steps {
			step := models.Step{
				FlowID:    flow.ID,
				Order:     s.Order,
				Type:      s.Type,
				Content:   s.Content,
				MediaURL:  s.MediaURL,
				DelayMs:   s.DelayMs,
				JitterPct: s.JitterPct,
				Metadata:  s.Metadata,
			}
			if err := tx.Create(&step).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": flow.ID, "message": "Flow created successfully"})
}

// UpdateFlow replaces flow metadata and, when steps are supplied, the whole
// step sequence
func (h *FlowHandler) UpdateFlow(c *gin.Context) {
	id := c.Param("id")

	var req flowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateSteps(req.Steps); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		var flow models.Flow
		if err := tx.First(&flow, "id = ?", id).Error; err != nil {
			return err
		}

		flow.Name = req.Name
		flow.Description = req.Description
		flow.UsageLimit = req.UsageLimit
		flow.CooldownMs = req.CooldownMs
		flow.SetExcludedFlowIDs(req.ExcludesFlows)
		if err := tx.Save(&flow).Error; err != nil {
			return err
		}

		if req.Steps == nil {
			return nil
		}
		if err := tx.Delete(&models.Step{}, "flow_id = ?", id).Error; err != nil {
			return err
		}
		for _, s := range req.Steps {
			step := models.Step{
				FlowID:    id,
				Order:     s.Order,
				Type:      s.Type,
				Content:   s.Content,
				MediaURL:  s.MediaURL,
				DelayMs:   s.DelayMs,
				JitterPct: s.JitterPct,
				Metadata:  s.Metadata,
			}
			if err := tx.Create(&step).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Flow updated successfully"})
}

// CloneFlow copies a flow and its steps to a target bot. Design-time
// operation; triggers are intentionally not copied.
func (h *FlowHandler) CloneFlow(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		BotID string `json:"bot_id" binding:"required"`
		Name  string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var source models.Flow
	if err := h.db.Preload("Steps").First(&source, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "flow not found"})
		return
	}

	name := req.Name
	if name == "" {
		name = source.Name + " (copy)"
	}
	clone := models.Flow{
		BotID:         req.BotID,
		Name:          name,
		Description:   source.Description,
		UsageLimit:    source.UsageLimit,
		CooldownMs:    source.CooldownMs,
		ExcludesFlows: source.ExcludesFlows,
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&clone).Error; err != nil {
			return err
		}
		for _, s := range source.Steps {
			step := models.Step{
				FlowID:    clone.ID,
				Order:     s.Order,
				Type:      s.Type,
				Content:   s.Content,
				MediaURL:  s.MediaURL,
				DelayMs:   s.DelayMs,
				JitterPct: s.JitterPct,
				Metadata:  s.Metadata,
			}
			if err := tx.Create(&step).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": clone.ID, "message": "Flow cloned successfully"})
}

// DeleteFlow removes a flow, its steps and its triggers
func (h *FlowHandler) DeleteFlow(c *gin.Context) {
	id := c.Param("id")
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Step{}, "flow_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Trigger{}, "flow_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Flow{}, "id = ?", id).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
