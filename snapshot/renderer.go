// Package snapshot talks to the service that draws conversation states.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/drewmudry/chatshorts-api/failure"
	"github.com/drewmudry/chatshorts-api/models"
	"github.com/rs/zerolog"
)

// Request describes one conversation state to draw.
type Request struct {
	Messages     []models.Message `json:"messages"`
	ShowHeader   bool             `json:"showHeader"`
	HeaderName   string           `json:"headerName"`
	ProfileImage string           `json:"profileImage"`
	Theme        string           `json:"theme"`
}

// Image is a rendered conversation state: a transparent PNG cropped to its
// content.
type Image struct {
	PNG    []byte
	Width  int
	Height int
}

// Decode reads the dimensions of a PNG.
func Decode(data []byte) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if format != "png" {
		return nil, fmt.Errorf("decode snapshot: unexpected format %q", format)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("decode snapshot: empty image")
	}
	return &Image{PNG: data, Width: cfg.Width, Height: cfg.Height}, nil
}

// Renderer draws a conversation state. Errors of kind render mean "no
// image" for that state and are recoverable.
type Renderer interface {
	Render(ctx context.Context, req Request) (*Image, error)
}

// HTTPRenderer posts requests to a rendering service that answers with
// image/png.
type HTTPRenderer struct {
	url    string
	http   *http.Client
	logger zerolog.Logger
}

// NewHTTPRenderer returns a renderer for the service at url.
func NewHTTPRenderer(url string, timeout time.Duration, logger zerolog.Logger) *HTTPRenderer {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRenderer{
		url:    strings.TrimRight(url, "/"),
		http:   &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "renderer").Logger(),
	}
}

func (r *HTTPRenderer) Render(ctx context.Context, req Request) (*Image, error) {
	if NeedsDefaultAvatar(req.ProfileImage) {
		avatar, err := DefaultAvatar(req.HeaderName, AvatarSize)
		if err != nil {
			r.logger.Warn().Err(err).Msg("could not draw default avatar")
		} else {
			req.ProfileImage = avatar
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, failure.Wrap(failure.KindRender, "render", fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, failure.Wrap(failure.KindRender, "render", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/png")

	resp, err := r.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, failure.Wrap(failure.KindRender, "render", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure.Wrap(failure.KindRender, "render", fmt.Errorf("read image: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, failure.New(failure.KindRender, "render", "renderer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	img, err := Decode(data)
	if err != nil {
		return nil, failure.Wrap(failure.KindRender, "render", err)
	}
	return img, nil
}
