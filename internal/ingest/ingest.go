// Package ingest persists inbound/outbound message events idempotently.
// Transport-level redelivery of the same external id, and concurrent
// deliveries racing to create the same session, both resolve to the
// already-existing rows instead of failing the request.
package ingest

import (
	"context"

	"sentinel-gateway/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InboundMessage is a raw message event as handed over by the transport
// or webhook layer.
type InboundMessage struct {
	ExternalID string
	From       string
	FromName   string
	Content    string
	Type       string
	FromMe     bool
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Ingest resolves (or lazily creates) the session for the sender and
// persists the message. The returned bool is false when the external id was
// already seen; callers must not re-run flow processing in that case.
func (s *Service) Ingest(ctx context.Context, botID string, in InboundMessage) (*models.Session, *models.Message, bool, error) {
	session, err := s.UpsertSession(ctx, botID, in.From, in.FromName)
	if err != nil {
		return nil, nil, false, err
	}

	msgType := in.Type
	if msgType == "" {
		msgType = models.StepText
	}
	msg := models.Message{
		ExternalID: in.ExternalID,
		SessionID:  session.ID,
		Sender:     in.From,
		Content:    in.Content,
		Type:       msgType,
		FromMe:     in.FromMe,
	}

	// Insert-if-absent on external_id, then read back whichever row won.
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).
		Create(&msg)
	if res.Error != nil {
		return nil, nil, false, res.Error
	}

	if res.RowsAffected == 0 {
		// Redelivery: hand back the original row.
		var existing models.Message
		if err := s.db.WithContext(ctx).
			Where("external_id = ?", in.ExternalID).
			First(&existing).Error; err != nil {
			return nil, nil, false, err
		}
		return session, &existing, false, nil
	}

	return session, &msg, true, nil
}

// UpsertSession finds or creates the session for (botID, identifier). The
// create is insert-if-absent followed by a re-read, so two concurrent
// first-contact deliveries converge on one row without error-code sniffing.
func (s *Service) UpsertSession(ctx context.Context, botID, identifier, name string) (*models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ctx).
		Where("bot_id = ? AND identifier = ?", botID, identifier).
		First(&session).Error
	if err == nil {
		return &session, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	if name == "" {
		name = "User " + identifier
	}
	fresh := models.Session{
		BotID:      botID,
		Identifier: identifier,
		Name:       name,
		Status:     models.SessionConnected,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "bot_id"}, {Name: "identifier"}},
			DoNothing: true,
		}).
		Create(&fresh)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		return &fresh, nil
	}

	// Lost the race; the winner's row is what we want.
	if err := s.db.WithContext(ctx).
		Where("bot_id = ? AND identifier = ?", botID, identifier).
		First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// MarkProcessed flags a message as handled by the engine. Best effort.
func (s *Service) MarkProcessed(ctx context.Context, messageID string) {
	s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", messageID).
		Update("is_processed", true)
}
