package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session status values.
const (
	SessionConnected    = "CONNECTED"
	SessionDisconnected = "DISCONNECTED"
)

// Execution status values.
const (
	ExecutionRunning   = "RUNNING"
	ExecutionCompleted = "COMPLETED"
	ExecutionFailed    = "FAILED"
)

// Trigger match types.
const (
	MatchExact    = "EXACT"
	MatchContains = "CONTAINS"
	MatchRegex    = "REGEX"
)

// Trigger scopes.
const (
	ScopeIncoming = "INCOMING"
	ScopeOutgoing = "OUTGOING"
	ScopeBoth     = "BOTH"
)

// Step types.
const (
	StepText            = "TEXT"
	StepImage           = "IMAGE"
	StepAudio           = "AUDIO"
	StepPTT             = "PTT"
	StepConditionalTime = "CONDITIONAL_TIME"
)

// Bot is an automation identity bound to one transport account.
type Bot struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Platform    string    `gorm:"type:varchar(50);default:'WHATSAPP'" json:"platform"`
	Identifier  string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"identifier"`
	Credentials string    `gorm:"type:text" json:"-"` // JSON credential blob
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Bot) TableName() string {
	return "bots"
}

func (b *Bot) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// BotCredentials is the decoded shape of Bot.Credentials.
type BotCredentials struct {
	Token         string `json:"token"`
	PhoneNumberID string `json:"phone_number_id"`
}

func (b *Bot) DecodeCredentials() (BotCredentials, error) {
	var creds BotCredentials
	if b.Credentials == "" {
		return creds, nil
	}
	err := json.Unmarshal([]byte(b.Credentials), &creds)
	return creds, err
}

// Session is one user's conversation thread with a Bot.
// Unique per (bot_id, identifier); created lazily on first inbound message
// or via CRM provisioning, never deleted by the engine.
type Session struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BotID      string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_bot_identifier" json:"bot_id"`
	Identifier string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_bot_identifier" json:"identifier"`
	Name       string    `gorm:"type:varchar(255)" json:"name"`
	Status     string    `gorm:"type:varchar(20);default:'CONNECTED'" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Session) TableName() string {
	return "sessions"
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Flow is an ordered automation script owned by a Bot.
type Flow struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BotID       string `gorm:"type:varchar(36);not null;index" json:"bot_id"`
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	// UsageLimit caps how many times this flow may run per session (0 = unlimited).
	UsageLimit int `gorm:"default:0" json:"usage_limit"`
	// CooldownMs is the minimum distance between two runs per session (0 = none).
	CooldownMs int64 `gorm:"default:0" json:"cooldown_ms"`
	// ExcludesFlows is a JSON array of flow ids mutually exclusive with this one.
	ExcludesFlows string    `gorm:"type:text" json:"excludes_flows"`
	Steps         []Step    `gorm:"foreignKey:FlowID" json:"steps,omitempty"`
	Triggers      []Trigger `gorm:"foreignKey:FlowID" json:"triggers,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Flow) TableName() string {
	return "flows"
}

func (f *Flow) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// ExcludedFlowIDs decodes ExcludesFlows. A malformed or empty column yields
// an empty list.
func (f *Flow) ExcludedFlowIDs() []string {
	if f.ExcludesFlows == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(f.ExcludesFlows), &ids); err != nil {
		return nil
	}
	return ids
}

func (f *Flow) SetExcludedFlowIDs(ids []string) {
	if len(ids) == 0 {
		f.ExcludesFlows = ""
		return
	}
	data, _ := json.Marshal(ids)
	f.ExcludesFlows = string(data)
}

// Step is one send-action unit within a Flow. Order values form a dense
// 0-based sequence per flow.
type Step struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FlowID   string `gorm:"type:varchar(36);not null;uniqueIndex:idx_flow_order" json:"flow_id"`
	Order    int    `gorm:"column:step_order;not null;uniqueIndex:idx_flow_order" json:"order"`
	Type     string `gorm:"type:varchar(50);not null" json:"type"`
	Content  string `gorm:"type:text" json:"content"`
	MediaURL string `gorm:"type:text" json:"media_url"`
	// DelayMs is the base delay before sending; JitterPct (0-100) randomizes it.
	DelayMs   int64     `gorm:"default:0" json:"delay_ms"`
	JitterPct int       `gorm:"default:0" json:"jitter_pct"`
	Metadata  string    `gorm:"type:text" json:"metadata"` // JSON, see StepMetadata
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Step) TableName() string {
	return "steps"
}

func (s *Step) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Trigger is a keyword/pattern rule that starts a Flow. A nil SessionID
// makes the trigger global to the bot.
type Trigger struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BotID     string    `gorm:"type:varchar(36);not null;index" json:"bot_id"`
	FlowID    string    `gorm:"type:varchar(36);not null;index" json:"flow_id"`
	SessionID *string   `gorm:"type:varchar(36);index" json:"session_id"`
	Keyword   string    `gorm:"type:varchar(255);not null" json:"keyword"`
	MatchType string    `gorm:"type:varchar(20);default:'EXACT'" json:"match_type"`
	Scope     string    `gorm:"type:varchar(20);default:'INCOMING'" json:"scope"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Trigger) TableName() string {
	return "triggers"
}

func (t *Trigger) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Execution is one run of a Flow for a Session. Terminal states
// (COMPLETED, FAILED) are final.
type Execution struct {
	ID             string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SessionID      string `gorm:"type:varchar(36);not null;index:idx_session_flow" json:"session_id"`
	FlowID         string `gorm:"type:varchar(36);not null;index:idx_session_flow" json:"flow_id"`
	PlatformUserID string `gorm:"type:varchar(255)" json:"platform_user_id"`
	Status         string `gorm:"type:varchar(20);default:'RUNNING';index" json:"status"`
	// CurrentStep is the last attempted step order.
	CurrentStep int `gorm:"default:0" json:"current_step"`
	// VariableContext holds captured values (e.g. regex groups) as JSON.
	VariableContext string     `gorm:"type:text" json:"variable_context"`
	Trigger         string     `gorm:"type:varchar(255)" json:"trigger"`
	Error           string     `gorm:"type:text" json:"error"`
	StartedAt       time.Time  `gorm:"autoCreateTime" json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
}

func (Execution) TableName() string {
	return "executions"
}

func (e *Execution) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// Variables decodes VariableContext. Missing or malformed JSON yields an
// empty map.
func (e *Execution) Variables() map[string]string {
	vars := map[string]string{}
	if e.VariableContext != "" {
		json.Unmarshal([]byte(e.VariableContext), &vars)
	}
	return vars
}

// Message is an inbound/outbound chat event. ExternalID is the
// transport-assigned id used for idempotent dedup.
type Message struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ExternalID  string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"external_id"`
	SessionID   string    `gorm:"type:varchar(36);not null;index" json:"session_id"`
	Sender      string    `gorm:"type:varchar(255)" json:"sender"`
	Content     string    `gorm:"type:text" json:"content"`
	Type        string    `gorm:"type:varchar(50);default:'TEXT'" json:"type"`
	FromMe      bool      `gorm:"default:false" json:"from_me"`
	IsProcessed bool      `gorm:"default:false" json:"is_processed"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
