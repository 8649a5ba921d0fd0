// Package transport carries step payloads to the messaging platform. The
// engine only sees the Sender capability; socket/connection lifecycle is
// this package's problem.
package transport

import (
	"context"
	"fmt"
	"sync"
)

// Payload kinds.
const (
	PayloadText  = "text"
	PayloadImage = "image"
	PayloadAudio = "audio"
	PayloadPTT   = "ptt"
)

// Payload is one outbound content unit: text, media with caption, or a
// voice note.
type Payload struct {
	Kind     string
	Text     string
	MediaURL string
	Caption  string
	PTT      bool
}

// Sender delivers a payload to a recipient identified by the platform's
// external identifier.
type Sender interface {
	Send(ctx context.Context, to string, payload Payload) error
}

// Closer is implemented by senders that hold connections.
type Closer interface {
	Close() error
}

// Registry maps bot ids to their Sender with explicit lifecycle, replacing
// process-wide socket maps.
type Registry struct {
	mu      sync.RWMutex
	senders map[string]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[string]Sender)}
}

// Register installs the sender for a bot, closing any previous one.
func (r *Registry) Register(botID string, s Sender) {
	r.mu.Lock()
	prev := r.senders[botID]
	r.senders[botID] = s
	r.mu.Unlock()

	if c, ok := prev.(Closer); ok {
		c.Close()
	}
}

// Get resolves the sender for a bot.
func (r *Registry) Get(botID string) (Sender, error) {
	r.mu.RLock()
	s, ok := r.senders[botID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no transport registered for bot %s", botID)
	}
	return s, nil
}

// Close removes a bot's sender and releases its resources.
func (r *Registry) Close(botID string) {
	r.mu.Lock()
	s := r.senders[botID]
	delete(r.senders, botID)
	r.mu.Unlock()

	if c, ok := s.(Closer); ok {
		c.Close()
	}
}
