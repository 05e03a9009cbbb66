// Package voice synthesizes spoken audio for conversation messages.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/drewmudry/chatshorts-api/failure"
	"github.com/drewmudry/chatshorts-api/metrics"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io/v1"
	DefaultModelID = "eleven_monolingual_v1"

	// MaxAttempts is the shared budget for busy and network retries.
	MaxAttempts = 5
	baseDelay   = 3 * time.Second
)

// Synthesizer converts text into encoded audio for a provider voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Settings are the ElevenLabs voice tuning parameters.
type Settings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
}

// DefaultSettings returns the tuning used for conversation voice-overs.
func DefaultSettings() Settings {
	return Settings{Stability: 0.75, SimilarityBoost: 0.45, Style: 0.40}
}

// Config configures the ElevenLabs client.
type Config struct {
	APIKey   string
	BaseURL  string
	ModelID  string
	Settings Settings
	Timeout  time.Duration
}

// Client talks to the ElevenLabs API.
type Client struct {
	apiKey   string
	baseURL  string
	modelID  string
	settings Settings
	http     *http.Client
	logger   zerolog.Logger

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a client, filling unset config with defaults.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.Settings == (Settings{}) {
		cfg.Settings = DefaultSettings()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		modelID:  cfg.ModelID,
		settings: cfg.Settings,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger.With().Str("provider", "elevenlabs").Logger(),
		sleep:    sleepContext,
	}
}

// WithAPIKey returns a copy of the client that authenticates with key.
func (c *Client) WithAPIKey(key string) *Client {
	cp := *c
	cp.apiKey = key
	return &cp
}

// BackoffDelay is the wait after failed attempt n (0-based): 3s * 2^n.
func BackoffDelay(attempt int) time.Duration {
	return baseDelay << uint(attempt)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Synthesize returns MP3 audio for text spoken by voiceID. Busy responses
// (HTTP 429 or "system_busy") and network failures are retried with
// exponential backoff; any other error status fails immediately.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, failure.New(failure.KindConfig, "synthesize", "ElevenLabs API key is required")
	}

	var lastErr error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		c.logger.Debug().Str("voice", voiceID).Int("attempt", attempt+1).Msg("requesting speech")

		start := time.Now()
		audio, err := c.synthesizeOnce(ctx, text, voiceID)
		metrics.SynthesisLatency.Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.SynthesisAttempts.WithLabelValues("ok").Inc()
			return audio, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		kind := failure.KindOf(err)
		metrics.SynthesisAttempts.WithLabelValues(string(kind)).Inc()
		if kind == failure.KindProviderTerminal {
			return nil, err
		}

		lastErr = err
		if attempt == MaxAttempts-1 {
			break
		}

		delay := BackoffDelay(attempt)
		c.logger.Warn().
			Err(err).
			Str("voice", voiceID).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("speech provider unavailable, retrying")
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, failure.Wrap(failure.KindSynthesisUnavailable, "synthesize",
		fmt.Errorf("failed after %d attempts: %w", MaxAttempts, lastErr))
}

func (c *Client) synthesizeOnce(ctx context.Context, text, voiceID string) ([]byte, error) {
	payload := map[string]any{
		"text":           text,
		"model_id":       c.modelID,
		"voice_settings": c.settings,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, failure.Wrap(failure.KindProviderTerminal, "synthesize", fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, failure.Wrap(failure.KindProviderTerminal, "synthesize", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, failure.Wrap(failure.KindProviderNetwork, "synthesize", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure.Wrap(failure.KindProviderNetwork, "synthesize", fmt.Errorf("read audio: %w", err))
	}

	if resp.StatusCode == http.StatusOK {
		return data, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || strings.Contains(string(data), "system_busy") {
		return nil, failure.New(failure.KindProviderBusy, "synthesize", "ElevenLabs busy (%d): %s", resp.StatusCode, truncate(data))
	}
	return nil, failure.New(failure.KindProviderTerminal, "synthesize", "ElevenLabs API error %d: %s", resp.StatusCode, truncate(data))
}

func truncate(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
