package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type closeRecorder struct {
	closed bool
}

func (c *closeRecorder) Send(ctx context.Context, to string, p Payload) error { return nil }
func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestRegistry_GetUnknownBot(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("missing"); err == nil {
		t.Fatal("expected error for unregistered bot")
	}
}

func TestRegistry_RegisterReplacesAndClosesPrevious(t *testing.T) {
	r := NewRegistry()
	first := &closeRecorder{}
	second := &closeRecorder{}

	r.Register("bot1", first)
	r.Register("bot1", second)

	if !first.closed {
		t.Fatal("expected previous sender to be closed on replacement")
	}
	got, err := r.Get("bot1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != second {
		t.Fatal("expected replacement sender to be resolvable")
	}
}

func TestRegistry_CloseRemovesSender(t *testing.T) {
	r := NewRegistry()
	s := &closeRecorder{}
	r.Register("bot1", s)
	r.Close("bot1")

	if !s.closed {
		t.Fatal("expected Close to release the sender")
	}
	if _, err := r.Get("bot1"); err == nil {
		t.Fatal("expected sender to be gone after Close")
	}
}

func TestCloudSender_SendText(t *testing.T) {
	var got cloudMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/12345/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("unexpected auth header %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewCloudSender("tok", "12345", srv.URL)
	err := s.Send(context.Background(), "555123", Payload{Kind: PayloadText, Text: "hello"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Type != "text" || got.Text == nil || got.Text.Body != "hello" || got.To != "555123" {
		t.Fatalf("unexpected wire message: %+v", got)
	}
}

func TestCloudSender_SendMediaAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg cloudMessage
		json.NewDecoder(r.Body).Decode(&msg)
		if msg.Type == "image" && msg.Image.Link == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewCloudSender("tok", "12345", srv.URL)
	ctx := context.Background()

	err := s.Send(ctx, "555123", Payload{Kind: PayloadImage, MediaURL: "https://x/y.png", Caption: "pic"})
	if err != nil {
		t.Fatalf("Send image: %v", err)
	}

	if err := s.Send(ctx, "555123", Payload{Kind: PayloadImage}); err == nil {
		t.Fatal("expected API error to surface")
	}

	if err := s.Send(ctx, "555123", Payload{Kind: "carrier-pigeon"}); err == nil {
		t.Fatal("expected unsupported payload kind to fail")
	}
}
