package notify

import (
	"context"
	"net/http"
	"time"
)

// Discord embed limits.
const (
	discordTitleMax = 256
	discordDescMax  = 4096
	discordColor    = 0xF5A623
)

// DiscordSender posts notifications to a Discord webhook as a single embed.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for webhookURL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

// Send posts title and message. The webhook URL holds the token, so it is
// masked in errors.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	payload := map[string]any{
		"embeds": []discordEmbed{{
			Title:       clip(title, discordTitleMax),
			Description: clip(message, discordDescMax),
			Color:       discordColor,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
		"allowed_mentions": map[string]any{"parse": []string{}},
	}
	return postJSON(ctx, d.client, "discord", d.webhookURL, d.webhookURL, payload)
}

func (d *DiscordSender) Name() string { return "discord" }
