package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"sentinel-gateway/internal/matcher"
	"sentinel-gateway/internal/models"

	"gorm.io/gorm"
)

// RejectionCode classifies why an admission was refused.
type RejectionCode string

const (
	RejectLockBusy RejectionCode = "LOCK_BUSY"
	RejectCooldown RejectionCode = "COOLDOWN"
	RejectLimit    RejectionCode = "LIMIT"
	RejectExcluded RejectionCode = "EXCLUDED"
)

// Rejection is the typed "not admitted" outcome. It is expected control
// flow, not an error.
type Rejection struct {
	Code      RejectionCode `json:"code"`
	Reason    string        `json:"reason"`
	SessionID string        `json:"session_id"`
	FlowID    string        `json:"flow_id"`
}

// errRejected aborts the admission transaction; the Rejection carries the
// actual outcome.
var errRejected = errors.New("admission rejected")

// admit validates a matched trigger under the per-(session,flow) lock and
// creates the RUNNING execution atomically. Exactly one of the three
// returns is non-zero.
func (e *Engine) admit(ctx context.Context, session *models.Session, match *matcher.Result) (*models.Execution, *Rejection, error) {
	trig := match.Trigger
	key := session.ID + ":" + trig.FlowID

	ttl := e.LockTTL
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	token, err := e.locker.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, nil, err
	}
	if token == "" {
		return nil, &Rejection{
			Code:      RejectLockBusy,
			Reason:    "another execution is being admitted",
			SessionID: session.ID,
			FlowID:    trig.FlowID,
		}, nil
	}
	defer func() {
		if err := e.locker.Release(ctx, key, token); err != nil {
			log.Printf("[Admission] Lock release failed for %s: %v", key, err)
		}
	}()

	var (
		exec      *models.Execution
		rejection *Rejection
	)

	txErr := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var flow models.Flow
		if err := tx.First(&flow, "id = ?", trig.FlowID).Error; err != nil {
			return err
		}

		// FAILED rows are rejection audit records; they never consume
		// cooldown or quota. Session() makes the builder reusable across
		// the three checks.
		creations := tx.Model(&models.Execution{}).
			Where("session_id = ? AND status <> ?", session.ID, models.ExecutionFailed).
			Session(&gorm.Session{})

		if flow.CooldownMs > 0 {
			var last models.Execution
			err := creations.
				Where("flow_id = ?", flow.ID).
				Order("started_at DESC").
				First(&last).Error
			switch {
			case err == nil:
				elapsed := time.Since(last.StartedAt)
				if cooldown := time.Duration(flow.CooldownMs) * time.Millisecond; elapsed < cooldown {
					rejection = &Rejection{
						Code:      RejectCooldown,
						Reason:    fmt.Sprintf("cooldown for flow %q: %v of %v elapsed", flow.Name, elapsed.Truncate(time.Millisecond), cooldown),
						SessionID: session.ID,
						FlowID:    flow.ID,
					}
					return errRejected
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				// No prior run, cooldown passes.
			default:
				return err
			}
		}

		if flow.UsageLimit > 0 {
			var count int64
			if err := creations.
				Where("flow_id = ?", flow.ID).
				Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(flow.UsageLimit) {
				rejection = &Rejection{
					Code:      RejectLimit,
					Reason:    fmt.Sprintf("usage limit %d reached for flow %q", flow.UsageLimit, flow.Name),
					SessionID: session.ID,
					FlowID:    flow.ID,
				}
				return errRejected
			}
		}

		if excluded := flow.ExcludedFlowIDs(); len(excluded) > 0 {
			var count int64
			if err := creations.
				Where("flow_id IN ?", excluded).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				rejection = &Rejection{
					Code:      RejectExcluded,
					Reason:    fmt.Sprintf("flow %q excluded by a prior run of a mutually exclusive flow", flow.Name),
					SessionID: session.ID,
					FlowID:    flow.ID,
				}
				return errRejected
			}
		}

		exec = &models.Execution{
			SessionID:       session.ID,
			FlowID:          flow.ID,
			PlatformUserID:  session.Identifier,
			Status:          models.ExecutionRunning,
			CurrentStep:     0,
			Trigger:         trig.Keyword,
			VariableContext: encodeCaptured(match.Captured),
		}
		return tx.Create(exec).Error
	})

	if txErr != nil && !errors.Is(txErr, errRejected) {
		return nil, nil, txErr
	}

	if rejection != nil {
		e.recordRejection(ctx, session, &trig, rejection)
		return nil, rejection, nil
	}
	return exec, nil, nil
}

// recordRejection persists a FAILED audit execution so rejected admissions
// stay visible. A failure here must not propagate.
func (e *Engine) recordRejection(ctx context.Context, session *models.Session, trig *models.Trigger, rej *Rejection) {
	now := time.Now()
	audit := models.Execution{
		SessionID:      session.ID,
		FlowID:         trig.FlowID,
		PlatformUserID: session.Identifier,
		Status:         models.ExecutionFailed,
		Trigger:        trig.Keyword,
		Error:          string(rej.Code) + ": " + rej.Reason,
		CompletedAt:    &now,
	}
	if err := e.db.WithContext(ctx).Create(&audit).Error; err != nil {
		log.Printf("[Admission] Failed to write audit record for flow %s: %v", trig.FlowID, err)
	}
}

// encodeCaptured maps regex groups to "1"-indexed variable names.
func encodeCaptured(groups []string) string {
	if len(groups) == 0 {
		return ""
	}
	vars := make(map[string]string, len(groups))
	for i, g := range groups {
		vars[strconv.Itoa(i+1)] = g
	}
	data, _ := json.Marshal(vars)
	return string(data)
}
