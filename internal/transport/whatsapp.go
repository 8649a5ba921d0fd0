package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const graphAPIBase = "https://graph.facebook.com/v19.0"

// --- Wire structures (WhatsApp Cloud API subset) ---

type cloudMessage struct {
	MessagingProduct string    `json:"messaging_product"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	Text             *textObj  `json:"text,omitempty"`
	Image            *mediaObj `json:"image,omitempty"`
	Audio            *mediaObj `json:"audio,omitempty"`
}

type textObj struct {
	Body string `json:"body"`
}

type mediaObj struct {
	Link    string `json:"link,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// CloudSender sends payloads through the WhatsApp Cloud API on behalf of
// one bot account.
type CloudSender struct {
	token         string
	phoneNumberID string
	baseURL       string
	httpClient    *http.Client
}

var _ Sender = (*CloudSender)(nil)

// NewCloudSender builds a sender for one bot's credentials. baseURL is
// overridable for tests; empty selects the Graph API.
func NewCloudSender(token, phoneNumberID, baseURL string) *CloudSender {
	if baseURL == "" {
		baseURL = graphAPIBase
	}
	return &CloudSender{
		token:         token,
		phoneNumberID: phoneNumberID,
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *CloudSender) Send(ctx context.Context, to string, payload Payload) error {
	msg := cloudMessage{
		MessagingProduct: "whatsapp",
		To:               to,
	}

	switch payload.Kind {
	case PayloadText:
		msg.Type = "text"
		msg.Text = &textObj{Body: payload.Text}
	case PayloadImage:
		msg.Type = "image"
		msg.Image = &mediaObj{Link: payload.MediaURL, Caption: payload.Caption}
	case PayloadAudio, PayloadPTT:
		// The Cloud API has no separate PTT type; voice notes are audio.
		msg.Type = "audio"
		msg.Audio = &mediaObj{Link: payload.MediaURL}
	default:
		return fmt.Errorf("unsupported payload kind %q", payload.Kind)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	return c.post(ctx, url, msg)
}

func (c *CloudSender) post(ctx context.Context, url string, body any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
	}
	return nil
}
