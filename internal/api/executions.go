package api

import (
	"net/http"
	"strconv"
	"time"

	"sentinel-gateway/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ExecutionHandler struct {
	db *gorm.DB
}

func NewExecutionHandler(db *gorm.DB) *ExecutionHandler {
	return &ExecutionHandler{db: db}
}

// GetExecutions lists executions for a bot with status, search and date
// filters plus offset pagination
func (h *ExecutionHandler) GetExecutions(c *gin.Context) {
	botID := c.Query("bot_id")
	if botID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bot_id is required"})
		return
	}

	q := h.db.Model(&models.Execution{}).
		Joins("JOIN flows ON flows.id = executions.flow_id").
		Where("flows.bot_id = ?", botID)

	if status := c.Query("status"); status != "" && status != "ALL" {
		q = q.Where("executions.status = ?", status)
	}
	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		q = q.Where("executions.platform_user_id LIKE ? OR executions.trigger LIKE ? OR flows.name LIKE ?",
			like, like, like)
	}
	if start := c.Query("start_date"); start != "" {
		if ts, err := time.Parse(time.RFC3339, start); err == nil {
			q = q.Where("executions.started_at >= ?", ts)
		}
	}
	if end := c.Query("end_date"); end != "" {
		if ts, err := time.Parse(time.RFC3339, end); err == nil {
			q = q.Where("executions.started_at <= ?", ts)
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	var executions []models.Execution
	if err := q.Order("executions.started_at DESC").
		Limit(limit).Offset(offset).
		Find(&executions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":      total,
		"executions": executions,
	})
}

// GetExecution returns one execution
func (h *ExecutionHandler) GetExecution(c *gin.Context) {
	var exec models.Execution
	if err := h.db.First(&exec, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "execution not found"})
		return
	}
	c.JSON(http.StatusOK, exec)
}

// CancelExecution forces a RUNNING execution out of RUNNING; the scheduler
// rechecks status before each step, so pending jobs become no-ops
func (h *ExecutionHandler) CancelExecution(c *gin.Context) {
	now := time.Now()
	res := h.db.Model(&models.Execution{}).
		Where("id = ? AND status = ?", c.Param("id"), models.ExecutionRunning).
		Updates(map[string]interface{}{
			"status":       models.ExecutionFailed,
			"error":        "cancelled by operator",
			"completed_at": now,
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "execution is not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Execution cancelled"})
}
