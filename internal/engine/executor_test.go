package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sentinel-gateway/internal/models"
	"sentinel-gateway/internal/queue"
	"sentinel-gateway/internal/transport"

	"github.com/stretchr/testify/require"
)

func TestHandleStepJobDeliveryFailureStillAdvances(t *testing.T) {
	env := newTestEnv(t)
	env.sender.failOn = func(p transport.Payload) error {
		if p.Text == "boom" {
			return errors.New("upstream 500")
		}
		return nil
	}
	env.seedFlow(t,
		models.Flow{Name: "Resilient"},
		[]models.Step{
			{Order: 0, Type: models.StepText, Content: "first"},
			{Order: 1, Type: models.StepText, Content: "boom"},
			{Order: 2, Type: models.StepText, Content: "last"},
		},
		models.Trigger{Keyword: "go", MatchType: models.MatchExact},
	)

	env.engine.OnMessage(context.Background(), env.session.ID, models.Message{Content: "go"})
	env.drain(t)

	sent := env.sender.payloads()
	require.Len(t, sent, 2)
	require.Equal(t, "first", sent[0].Text)
	require.Equal(t, "last", sent[1].Text)

	execs := env.executions(t)
	require.Len(t, execs, 1)
	require.Equal(t, models.ExecutionCompleted, execs[0].Status)
	require.Contains(t, execs[0].Error, "upstream 500")
}

func TestHandleStepJobSkipsStaleExecution(t *testing.T) {
	env := newTestEnv(t)
	flow := env.seedFlow(t,
		models.Flow{Name: "Stale"},
		[]models.Step{{Order: 0, Type: models.StepText, Content: "hi"}},
		models.Trigger{Keyword: "go", MatchType: models.MatchExact},
	)

	exec := models.Execution{SessionID: env.session.ID, FlowID: flow.ID, Status: models.ExecutionRunning}
	require.NoError(t, env.db.Create(&exec).Error)
	require.NoError(t, env.engine.ScheduleStep(context.Background(), exec.ID, 0))

	// Cancelled before the job fires: the job must become a no-op.
	require.NoError(t, env.db.Model(&models.Execution{}).
		Where("id = ?", exec.ID).
		Update("status", models.ExecutionFailed).Error)

	env.drain(t)
	require.Empty(t, env.sender.payloads())
}

func TestHandleStepJobSkipsMediaStepWithoutURL(t *testing.T) {
	env := newTestEnv(t)
	env.seedFlow(t,
		models.Flow{Name: "Broken Media"},
		[]models.Step{
			{Order: 0, Type: models.StepImage}, // no media url
			{Order: 1, Type: models.StepText, Content: "still here"},
		},
		models.Trigger{Keyword: "go", MatchType: models.MatchExact},
	)

	env.engine.OnMessage(context.Background(), env.session.ID, models.Message{Content: "go"})
	env.drain(t)

	sent := env.sender.payloads()
	require.Len(t, sent, 1)
	require.Equal(t, "still here", sent[0].Text)

	execs := env.executions(t)
	require.Len(t, execs, 1)
	require.Equal(t, models.ExecutionCompleted, execs[0].Status)
	require.Empty(t, execs[0].Error)
}

func TestHandleStepJobRecordsCurrentStep(t *testing.T) {
	env := newTestEnv(t)
	flow := env.seedFlow(t,
		models.Flow{Name: "Tracked"},
		[]models.Step{
			{Order: 0, Type: models.StepText, Content: "one"},
			{Order: 1, Type: models.StepText, Content: "two"},
		},
		models.Trigger{Keyword: "go", MatchType: models.MatchExact},
	)

	exec := models.Execution{SessionID: env.session.ID, FlowID: flow.ID, Status: models.ExecutionRunning}
	require.NoError(t, env.db.Create(&exec).Error)
	require.NoError(t, env.engine.ScheduleStep(context.Background(), exec.ID, 0))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	job, err := env.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, env.engine.HandleStepJob(context.Background(), *job))

	var got models.Execution
	require.NoError(t, env.db.First(&got, "id = ?", exec.ID).Error)
	require.Equal(t, 0, got.CurrentStep)
	require.Equal(t, models.ExecutionRunning, got.Status)

	job, err = env.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, env.engine.HandleStepJob(context.Background(), *job))

	require.NoError(t, env.db.First(&got, "id = ?", exec.ID).Error)
	require.Equal(t, 1, got.CurrentStep)
	require.Equal(t, models.ExecutionCompleted, got.Status)
}

func TestHandleStepJobMissingStepIsNoop(t *testing.T) {
	env := newTestEnv(t)
	job := queue.Job{ExecutionID: "gone-exec", StepID: "gone-step"}
	require.NoError(t, env.engine.HandleStepJob(context.Background(), job))
}

func TestRecordStepErrorTruncates(t *testing.T) {
	env := newTestEnv(t)
	flow := env.seedFlow(t,
		models.Flow{Name: "Verbose"},
		nil,
		models.Trigger{Keyword: "go", MatchType: models.MatchExact},
	)
	exec := models.Execution{SessionID: env.session.ID, FlowID: flow.ID, Status: models.ExecutionRunning}
	require.NoError(t, env.db.Create(&exec).Error)

	env.engine.recordStepError(context.Background(), exec.ID, errors.New(strings.Repeat("x", 2*maxErrorLen)))

	var got models.Execution
	require.NoError(t, env.db.First(&got, "id = ?", exec.ID).Error)
	require.Len(t, got.Error, maxErrorLen)
}

func TestRenderContent(t *testing.T) {
	env := newTestEnv(t)
	exec := &models.Execution{
		Trigger:         "order #42",
		VariableContext: `{"1":"42"}`,
	}

	got := env.engine.renderContent(
		"Hi {{contact.name}} ({{contact.phone}}), you said {{trigger}}; order {{vars.1}} is ready. {{vars.unknown}} stays.",
		exec, &env.session,
	)
	require.Equal(t, "Hi Ana (5215550000001), you said order #42; order 42 is ready. {{vars.unknown}} stays.", got)

	// No placeholders: returned untouched.
	require.Equal(t, "plain", env.engine.renderContent("plain", exec, &env.session))
}
