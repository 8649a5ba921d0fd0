package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StepMetadata is the decoded shape of Step.Metadata for CONDITIONAL_TIME
// steps: an ordered list of time-window branches plus an optional fallback.
// It is validated when a flow is saved, not at dispatch time.
type StepMetadata struct {
	Branches []TimeBranch   `json:"branches,omitempty"`
	Fallback *BranchPayload `json:"fallback,omitempty"`
}

// TimeBranch matches a wall-clock window at minute granularity.
// Start > End denotes a midnight-crossing window.
type TimeBranch struct {
	StartTime string        `json:"start_time"` // "HH:mm"
	EndTime   string        `json:"end_time"`   // "HH:mm"
	Payload   BranchPayload `json:"payload"`
}

// BranchPayload is what gets dispatched when a branch matches.
type BranchPayload struct {
	Type     string `json:"type"` // TEXT, IMAGE, AUDIO, PTT
	Content  string `json:"content,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
	Caption  string `json:"caption,omitempty"`
	PTT      bool   `json:"ptt,omitempty"`
}

// DecodeStepMetadata parses a Step.Metadata column.
func DecodeStepMetadata(raw string) (*StepMetadata, error) {
	if raw == "" {
		return &StepMetadata{}, nil
	}
	var meta StepMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("invalid step metadata: %w", err)
	}
	return &meta, nil
}

// Validate checks branch windows and payloads. Called from the flow-save
// path so bad metadata never reaches the executor.
func (m *StepMetadata) Validate() error {
	for i, b := range m.Branches {
		if _, err := ParseMinuteOfDay(b.StartTime); err != nil {
			return fmt.Errorf("branch %d: start_time: %w", i, err)
		}
		if _, err := ParseMinuteOfDay(b.EndTime); err != nil {
			return fmt.Errorf("branch %d: end_time: %w", i, err)
		}
		if err := b.Payload.validate(); err != nil {
			return fmt.Errorf("branch %d: %w", i, err)
		}
	}
	if m.Fallback != nil {
		if err := m.Fallback.validate(); err != nil {
			return fmt.Errorf("fallback: %w", err)
		}
	}
	return nil
}

func (p *BranchPayload) validate() error {
	switch p.Type {
	case StepText:
		if p.Content == "" {
			return fmt.Errorf("TEXT payload requires content")
		}
	case StepImage, StepAudio, StepPTT:
		if p.MediaURL == "" {
			return fmt.Errorf("%s payload requires media_url", p.Type)
		}
	default:
		return fmt.Errorf("unknown payload type %q", p.Type)
	}
	return nil
}

// ParseMinuteOfDay converts "HH:mm" into minutes since midnight.
func ParseMinuteOfDay(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:mm, got %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}
