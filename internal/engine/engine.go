// Package engine orchestrates the lifecycle of flow executions: trigger
// matching, admission, jittered step scheduling, dispatch, and completion.
package engine

import (
	"context"
	"log"
	"strings"
	"time"

	"sentinel-gateway/internal/lock"
	"sentinel-gateway/internal/matcher"
	"sentinel-gateway/internal/models"
	"sentinel-gateway/internal/queue"
	"sentinel-gateway/internal/transport"

	"gorm.io/gorm"
)

// DefaultLockTTL bounds how long a crashed admission can hold its lock.
// It must exceed the expected admission-transaction duration.
const DefaultLockTTL = 30 * time.Second

// Notifier receives engine lifecycle events for live dashboards.
// The ws hub satisfies it; a nil Notifier disables broadcasting.
type Notifier interface {
	BroadcastEvent(eventType string, data interface{})
}

type Engine struct {
	db      *gorm.DB
	locker  lock.Locker
	queue   queue.Queue
	senders *transport.Registry

	// Events is optional; set it before the engine starts receiving traffic.
	Events Notifier
	// LockTTL defaults to DefaultLockTTL.
	LockTTL time.Duration
}

func NewEngine(db *gorm.DB, locker lock.Locker, q queue.Queue, senders *transport.Registry) *Engine {
	return &Engine{
		db:      db,
		locker:  locker,
		queue:   q,
		senders: senders,
		LockTTL: DefaultLockTTL,
	}
}

// OnMessage is the single entry point, invoked once per persisted message
// event. It never returns an error to the caller: admission rejections are
// expected control flow and everything else is logged and absorbed.
func (e *Engine) OnMessage(ctx context.Context, sessionID string, msg models.Message) {
	if strings.TrimSpace(msg.Content) == "" {
		return
	}

	var session models.Session
	if err := e.db.WithContext(ctx).First(&session, "id = ?", sessionID).Error; err != nil {
		// Events for deleted sessions are dropped, not errored.
		log.Printf("[FlowEngine] Session %s not found, dropping message %s", sessionID, msg.ExternalID)
		return
	}

	candidates, err := e.candidateTriggers(ctx, &session, msg.FromMe)
	if err != nil {
		log.Printf("[FlowEngine] Failed to load triggers for session %s: %v", sessionID, err)
		return
	}

	match := matcher.Match(msg.Content, candidates)
	if match == nil {
		return
	}

	log.Printf("[FlowEngine] Matched trigger %q -> flow %s", match.Trigger.Keyword, match.Trigger.FlowID)

	exec, rejection, err := e.admit(ctx, &session, match)
	if err != nil {
		log.Printf("[FlowEngine] Admission error for flow %s: %v", match.Trigger.FlowID, err)
		return
	}
	if rejection != nil {
		if rejection.Code == RejectLockBusy {
			// Another execution is already starting for this session+flow.
			// Frequent under duplicate delivery; drop silently.
			return
		}
		log.Printf("[FlowEngine] Trigger %q rejected: %s (%s)", match.Trigger.Keyword, rejection.Code, rejection.Reason)
		e.notify("execution_rejected", rejection)
		return
	}

	log.Printf("[FlowEngine] Starting flow %s for user %s (execution %s)", exec.FlowID, exec.PlatformUserID, exec.ID)
	e.notify("execution_started", exec)

	if err := e.ScheduleStep(ctx, exec.ID, 0); err != nil {
		log.Printf("[FlowEngine] Failed to schedule step 0 for execution %s: %v", exec.ID, err)
	}
}

// candidateTriggers loads active triggers applicable to the message
// direction. Session-specific triggers come first; precedence between them
// and bot-global ones is purely this ordering, which the matcher preserves.
func (e *Engine) candidateTriggers(ctx context.Context, session *models.Session, fromMe bool) ([]models.Trigger, error) {
	scopes := []string{models.ScopeIncoming, models.ScopeBoth}
	if fromMe {
		scopes = []string{models.ScopeOutgoing, models.ScopeBoth}
	}

	var sessionTriggers []models.Trigger
	if err := e.db.WithContext(ctx).
		Where("is_active = ? AND scope IN ? AND session_id = ?", true, scopes, session.ID).
		Find(&sessionTriggers).Error; err != nil {
		return nil, err
	}

	var globalTriggers []models.Trigger
	if err := e.db.WithContext(ctx).
		Where("is_active = ? AND scope IN ? AND bot_id = ? AND session_id IS NULL", true, scopes, session.BotID).
		Find(&globalTriggers).Error; err != nil {
		return nil, err
	}

	return append(sessionTriggers, globalTriggers...), nil
}

func (e *Engine) notify(eventType string, data interface{}) {
	if e.Events != nil {
		e.Events.BroadcastEvent(eventType, data)
	}
}
