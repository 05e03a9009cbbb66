// Package notify announces finished renders.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/drewmudry/chatshorts-api/models"
	"github.com/rs/zerolog"
)

// Notifier announces a completed render.
type Notifier interface {
	Notify(ctx context.Context, r *models.Render) error
}

// Discord posts to a Discord webhook. A zero URL disables it.
type Discord struct {
	URL     string
	BaseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewDiscord returns a notifier posting to webhookURL. baseURL prefixes the
// output paths when set, e.g. a CDN in front of the output directory.
func NewDiscord(webhookURL, baseURL string, logger zerolog.Logger) *Discord {
	return &Discord{
		URL:     webhookURL,
		BaseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With().Str("component", "discord").Logger(),
	}
}

func (d *Discord) Notify(ctx context.Context, r *models.Render) error {
	if d.URL == "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{"content": d.message(r)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		d.logger.Warn().Int("status", resp.StatusCode).Uint("render_id", r.ID).Msg("discord webhook returned unexpected status")
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Discord) message(r *models.Render) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎥 **New video generated by %s**\n\n", r.Header.HeaderName)

	video := r.EnhancedPath
	if video == "" {
		video = r.OutputPath
	}
	fmt.Fprintf(&b, "📝 **Original Video**\n🔗 %s\n", d.link(video))
	if r.SpedUpPath != "" {
		fmt.Fprintf(&b, "\n⏱️ **Sped-up Version**\n🔗 %s\n", d.link(r.SpedUpPath))
	}
	fmt.Fprintf(&b, "\n%d messages, %.1fs", r.StepCount, r.Duration)
	return b.String()
}

func (d *Discord) link(path string) string {
	if d.BaseURL == "" {
		return path
	}
	return d.BaseURL + "/" + strings.TrimLeft(path, "/")
}
