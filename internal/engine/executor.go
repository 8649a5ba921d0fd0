package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"sentinel-gateway/internal/models"
	"sentinel-gateway/internal/queue"
	"sentinel-gateway/internal/transport"

	"gorm.io/gorm"
)

// maxErrorLen caps the diagnostic stored on an execution.
const maxErrorLen = 500

// HandleStepJob processes one fired step job. It is the worker pool's
// handler. Delivery failures are recorded on the execution but never stop
// progression; the next step is always scheduled.
func (e *Engine) HandleStepJob(ctx context.Context, job queue.Job) error {
	var step models.Step
	if err := e.db.WithContext(ctx).First(&step, "id = ?", job.StepID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Step deleted between scheduling and firing; already resolved.
			return nil
		}
		return err
	}

	var exec models.Execution
	if err := e.db.WithContext(ctx).First(&exec, "id = ?", job.ExecutionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if exec.Status != models.ExecutionRunning {
		return nil
	}

	var session models.Session
	if err := e.db.WithContext(ctx).First(&session, "id = ?", exec.SessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if err := e.db.WithContext(ctx).
		Model(&models.Execution{}).
		Where("id = ?", exec.ID).
		Update("current_step", step.Order).Error; err != nil {
		log.Printf("[StepExecutor] Failed to record current step on execution %s: %v", exec.ID, err)
	}

	if err := e.dispatchStep(ctx, &step, &exec, &session); err != nil {
		log.Printf("[StepExecutor] Step %d of execution %s failed: %v", step.Order, exec.ID, err)
		e.recordStepError(ctx, exec.ID, err)
	}

	// Advance unconditionally; best-effort delivery never wedges a flow.
	return e.ScheduleStep(ctx, exec.ID, step.Order+1)
}

func (e *Engine) dispatchStep(ctx context.Context, step *models.Step, exec *models.Execution, session *models.Session) error {
	sender, err := e.senders.Get(session.BotID)
	if err != nil {
		return err
	}

	switch step.Type {
	case models.StepText:
		return sender.Send(ctx, session.Identifier, transport.Payload{
			Kind: transport.PayloadText,
			Text: e.renderContent(step.Content, exec, session),
		})

	case models.StepImage:
		if step.MediaURL == "" {
			log.Printf("[StepExecutor] Skipping IMAGE step %s: no media url", step.ID)
			return nil
		}
		return sender.Send(ctx, session.Identifier, transport.Payload{
			Kind:     transport.PayloadImage,
			MediaURL: step.MediaURL,
			Caption:  e.renderContent(step.Content, exec, session),
		})

	case models.StepAudio, models.StepPTT:
		if step.MediaURL == "" {
			log.Printf("[StepExecutor] Skipping %s step %s: no media url", step.Type, step.ID)
			return nil
		}
		return sender.Send(ctx, session.Identifier, transport.Payload{
			Kind:     transport.PayloadAudio,
			MediaURL: step.MediaURL,
			PTT:      step.Type == models.StepPTT,
		})

	case models.StepConditionalTime:
		return e.dispatchConditional(ctx, sender, step, exec, session)

	default:
		log.Printf("[StepExecutor] Skipping step %s: unknown type %q", step.ID, step.Type)
		return nil
	}
}

// recordStepError keeps a truncated diagnostic on the execution without
// touching its status.
func (e *Engine) recordStepError(ctx context.Context, executionID string, stepErr error) {
	msg := stepErr.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	if err := e.db.WithContext(ctx).
		Model(&models.Execution{}).
		Where("id = ?", executionID).
		Update("error", msg).Error; err != nil {
		log.Printf("[StepExecutor] Failed to record error on execution %s: %v", executionID, err)
	}
}

// renderContent substitutes session and captured-variable placeholders.
func (e *Engine) renderContent(text string, exec *models.Execution, session *models.Session) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	text = strings.ReplaceAll(text, "{{contact.name}}", session.Name)
	text = strings.ReplaceAll(text, "{{contact.phone}}", session.Identifier)
	text = strings.ReplaceAll(text, "{{trigger}}", exec.Trigger)
	for k, v := range exec.Variables() {
		text = strings.ReplaceAll(text, fmt.Sprintf("{{vars.%s}}", k), v)
	}
	return text
}
