package models

// InboundEvent is the wire payload of a message event posted to the
// webhook: a message the platform delivered to (or sent from) a bot account.
type InboundEvent struct {
	// BotID is the bot's external identifier, not its row id.
	BotID      string `json:"bot_id" binding:"required"`
	From       string `json:"from" binding:"required"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	ExternalID string `json:"external_id" binding:"required"`
	FromMe     bool   `json:"from_me"`
}

// InboundAck is the webhook response body.
type InboundAck struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
	Duplicate bool   `json:"duplicate,omitempty"`
}
