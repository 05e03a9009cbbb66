package renders

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/drewmudry/chatshorts-api/failure"
	"github.com/drewmudry/chatshorts-api/models"
	"github.com/drewmudry/chatshorts-api/processing"
	"github.com/drewmudry/chatshorts-api/tasks"
	"github.com/drewmudry/chatshorts-api/voice"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BackgroundChecker reports whether a background name is known.
type BackgroundChecker interface {
	HasBackground(name string) bool
}

// VoiceDirectory lists provider voices for an API key.
type VoiceDirectory interface {
	ListVoices(ctx context.Context, apiKey string) ([]voice.Voice, error)
	ValidateKey(ctx context.Context, apiKey string) error
}

// Drafter writes conversations from a premise.
type Drafter interface {
	DraftConversation(ctx context.Context, req processing.DraftRequest) (*processing.Draft, error)
}

type Handler struct {
	Store   Store
	Queue   tasks.Queue
	Assets  BackgroundChecker
	Voices  VoiceDirectory
	Drafter Drafter
	Logger  zerolog.Logger
}

// CreateRenderRequest mirrors the conversation editor's payload.
type CreateRenderRequest struct {
	Messages        []models.Message     `json:"messages"`
	ProfileImage    string               `json:"profileImage"`
	HeaderName      string               `json:"headerName"`
	Theme           string               `json:"theme"`
	BackgroundVideo string               `json:"backgroundVideo"`
	VoiceSettings   models.VoiceSettings `json:"voiceSettings"`
}

// Header returns the display metadata of the request.
func (r CreateRenderRequest) Header() models.HeaderConfig {
	return models.HeaderConfig{
		ProfileImage:    r.ProfileImage,
		HeaderName:      r.HeaderName,
		Theme:           r.Theme,
		BackgroundVideo: r.BackgroundVideo,
		VoiceSettings:   r.VoiceSettings,
	}.WithDefaults()
}

type apiKeyRequest struct {
	APIKey string `json:"apiKey" binding:"required"`
}

func (h *Handler) CreateRender(c *gin.Context) {
	userID := c.GetUint("user_id")
	var req CreateRenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(req.Messages) == 0 {
		respondError(c, failure.New(failure.KindNothingToCompose, "create render", "no messages"))
		return
	}
	if err := models.ValidateMessages(req.Messages); err != nil {
		respondError(c, err)
		return
	}
	header := req.Header()
	if h.Assets != nil && !h.Assets.HasBackground(header.BackgroundVideo) {
		respondError(c, failure.New(failure.KindConfig, "create render", "unknown background %q", header.BackgroundVideo))
		return
	}

	render := models.Render{
		PublicID: uuid.NewString(),
		UserID:   userID,
		Messages: req.Messages,
		Header:   header,
		Status:   models.StatusPending,
	}
	if err := h.Store.Create(c.Request.Context(), &render); err != nil {
		h.Logger.Error().Err(err).Msg("failed to create render")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create render"})
		return
	}

	if err := h.Queue.Push(c.Request.Context(), tasks.QueueCompose, tasks.ComposeTaskPayload{RenderID: render.ID}); err != nil {
		h.Logger.Error().Err(err).Uint("render_id", render.ID).Msg("failed to queue render")
		uerr := h.Store.Update(c.Request.Context(), render.ID, map[string]interface{}{
			"status":        models.StatusFailed,
			"error_kind":    "queue",
			"error_message": err.Error(),
		})
		if uerr != nil {
			h.Logger.Error().Err(uerr).Uint("render_id", render.ID).Msg("failed to record queue failure")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue render"})
		return
	}

	h.Logger.Info().Uint("render_id", render.ID).Int("messages", len(render.Messages)).Msg("render queued")
	c.JSON(http.StatusAccepted, redact(render))
}

func (h *Handler) GetRender(c *gin.Context) {
	render, err := h.Store.GetForUser(c.Request.Context(), c.Param("id"), c.GetUint("user_id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Render not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		}
		return
	}
	c.JSON(http.StatusOK, redact(*render))
}

func (h *Handler) ListRenders(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	list, err := h.Store.ListForUser(c.Request.Context(), c.GetUint("user_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve renders"})
		return
	}
	for i := range list {
		list[i] = redact(list[i])
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) ListVoices(c *gin.Context) {
	var req apiKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "API key is required"})
		return
	}

	voices, err := h.Voices.ListVoices(c.Request.Context(), req.APIKey)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch voices"})
		return
	}
	c.JSON(http.StatusOK, voices)
}

func (h *Handler) ValidateKey(c *gin.Context) {
	var req apiKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "API key is required"})
		return
	}

	if err := h.Voices.ValidateKey(c.Request.Context(), req.APIKey); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "API key is valid"})
}

func (h *Handler) CreateDraft(c *gin.Context) {
	var req processing.DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft, err := h.Drafter.DraftConversation(c.Request.Context(), req)
	if err != nil {
		h.Logger.Error().Err(err).Msg("draft failed")
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// respondError maps failure kinds to HTTP statuses.
func respondError(c *gin.Context, err error) {
	kind := failure.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case failure.KindConfig, failure.KindNothingToCompose:
		status = http.StatusBadRequest
	case failure.KindProviderBusy, failure.KindSynthesisUnavailable:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}

// redact drops the caller's provider key from a render before it is
// returned.
func redact(r models.Render) models.Render {
	r.Header.VoiceSettings.APIKey = ""
	return r
}
