package engine

import (
	"context"
	"log"
	"time"

	"sentinel-gateway/internal/models"
	"sentinel-gateway/internal/transport"
)

// dispatchConditional evaluates a CONDITIONAL_TIME step's branches against
// the current wall clock and dispatches the first matching payload, falling
// back to metadata.fallback when no window matches. No match and no
// fallback is a silent no-op.
func (e *Engine) dispatchConditional(ctx context.Context, sender transport.Sender, step *models.Step, exec *models.Execution, session *models.Session) error {
	meta, err := models.DecodeStepMetadata(step.Metadata)
	if err != nil {
		return err
	}

	payload := selectBranchPayload(meta, time.Now())
	if payload == nil {
		log.Printf("[StepExecutor] No time branch matched for step %s, nothing to send", step.ID)
		return nil
	}

	rendered := branchToPayload(payload,
		e.renderContent(payload.Content, exec, session),
		e.renderContent(payload.Caption, exec, session))
	return sender.Send(ctx, session.Identifier, rendered)
}

// selectBranchPayload walks the ordered branches at minute granularity.
// start > end denotes a midnight-crossing window, matched when the current
// time is >= start OR < end.
func selectBranchPayload(meta *models.StepMetadata, now time.Time) *models.BranchPayload {
	current := now.Hour()*60 + now.Minute()

	for _, b := range meta.Branches {
		start, err := models.ParseMinuteOfDay(b.StartTime)
		if err != nil {
			log.Printf("[StepExecutor] Skipping branch with bad start_time %q", b.StartTime)
			continue
		}
		end, err := models.ParseMinuteOfDay(b.EndTime)
		if err != nil {
			log.Printf("[StepExecutor] Skipping branch with bad end_time %q", b.EndTime)
			continue
		}

		var matched bool
		if start > end {
			matched = current >= start || current < end
		} else {
			matched = current >= start && current <= end
		}
		if matched {
			p := b.Payload
			return &p
		}
	}

	return meta.Fallback
}

func branchToPayload(p *models.BranchPayload, renderedContent, renderedCaption string) transport.Payload {
	switch p.Type {
	case models.StepImage:
		return transport.Payload{
			Kind:     transport.PayloadImage,
			MediaURL: p.MediaURL,
			Caption:  renderedCaption,
		}
	case models.StepAudio, models.StepPTT:
		return transport.Payload{
			Kind:     transport.PayloadAudio,
			MediaURL: p.MediaURL,
			PTT:      p.PTT || p.Type == models.StepPTT,
		}
	default:
		return transport.Payload{
			Kind: transport.PayloadText,
			Text: renderedContent,
		}
	}
}
