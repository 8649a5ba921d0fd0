package engine

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"time"

	"sentinel-gateway/internal/models"
	"sentinel-gateway/internal/queue"

	"gorm.io/gorm"
)

// ScheduleStep enqueues the step at stepOrder for an execution, or marks
// the execution COMPLETED when the sequence is exhausted. Executions that
// are no longer RUNNING are left untouched, which makes external
// cancellation (forcing status out of RUNNING) effective between steps.
func (e *Engine) ScheduleStep(ctx context.Context, executionID string, stepOrder int) error {
	var exec models.Execution
	if err := e.db.WithContext(ctx).First(&exec, "id = ?", executionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if exec.Status != models.ExecutionRunning {
		return nil
	}

	var step models.Step
	err := e.db.WithContext(ctx).
		Where("flow_id = ? AND step_order = ?", exec.FlowID, stepOrder).
		First(&step).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Dense 0-based ordering: no step at this order means the flow is done.
		return e.completeExecution(ctx, &exec)
	}
	if err != nil {
		return err
	}

	delay := jitteredDelay(step.DelayMs, step.JitterPct)
	log.Printf("[FlowEngine] Scheduling step %d of execution %s in %v", step.Order, exec.ID, delay)

	return e.queue.Enqueue(ctx, queue.Job{
		ExecutionID: exec.ID,
		StepID:      step.ID,
		StepOrder:   step.Order,
	}, delay)
}

// completeExecution is the sole terminal transition out of RUNNING on the
// success path.
func (e *Engine) completeExecution(ctx context.Context, exec *models.Execution) error {
	now := time.Now()
	res := e.db.WithContext(ctx).
		Model(&models.Execution{}).
		Where("id = ? AND status = ?", exec.ID, models.ExecutionRunning).
		Updates(map[string]interface{}{
			"status":       models.ExecutionCompleted,
			"completed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("[FlowEngine] Flow %s finished (execution %s)", exec.FlowID, exec.ID)
		exec.Status = models.ExecutionCompleted
		exec.CompletedAt = &now
		e.notify("execution_completed", exec)
	}
	return nil
}

// jitteredDelay spreads a base delay by +/- base*jitterPct/100, clamped at
// zero, to avoid robotic timing.
func jitteredDelay(baseMs int64, jitterPct int) time.Duration {
	delay := baseMs
	if variance := baseMs * int64(jitterPct) / 100; variance > 0 {
		delay += rand.Int64N(2*variance+1) - variance
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay) * time.Millisecond
}
