package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"keygate.backend/internal/domain/entities"
)

// Embed colours per status
const (
	colorGreen  = 0x2ECC71
	colorBlue   = 0x3498DB
	colorOrange = 0xE67E22
	colorRed    = 0xE74C3C
	colorGrey   = 0x95A5A6
)

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title     string              `json:"title"`
	Color     int                 `json:"color"`
	Fields    []discordEmbedField `json:"fields"`
	Timestamp string              `json:"timestamp"`
}

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

// WebhookSink posts events to a Discord webhook
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookSink) Name() string { return "webhook" }

// Send implements Sink. Any non-2xx answer is an error.
func (w *WebhookSink) Send(ctx context.Context, topic entities.Topic, event entities.StatusEvent) error {
	body, err := json.Marshal(buildPayload(topic, event))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func buildPayload(topic entities.Topic, event entities.StatusEvent) discordPayload {
	title := "Key status update"
	if topic == entities.TopicUserStatus {
		title = "User status update"
	}
	return discordPayload{
		Username: "keygate",
		Embeds: []discordEmbed{{
			Title: title,
			Color: statusColor(event.Status),
			Fields: []discordEmbedField{
				{Name: "ID", Value: event.EntityID.String(), Inline: false},
				{Name: "Status", Value: event.Status, Inline: true},
				{Name: "Action", Value: event.Action, Inline: true},
			},
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		}},
	}
}

func statusColor(status string) int {
	switch status {
	case string(entities.KeyStatusActive):
		return colorGreen
	case string(entities.KeyStatusUsed):
		return colorBlue
	case string(entities.KeyStatusExpired):
		return colorOrange
	case string(entities.KeyStatusRevoked), "banned":
		return colorRed
	}
	return colorGrey
}
