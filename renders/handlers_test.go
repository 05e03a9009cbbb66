package renders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/drewmudry/chatshorts-api/assets"
	"github.com/drewmudry/chatshorts-api/failure"
	"github.com/drewmudry/chatshorts-api/models"
	"github.com/drewmudry/chatshorts-api/processing"
	"github.com/drewmudry/chatshorts-api/tasks"
	"github.com/drewmudry/chatshorts-api/voice"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVoices struct{}

func (fakeVoices) ListVoices(ctx context.Context, apiKey string) ([]voice.Voice, error) {
	if apiKey != "good" {
		return nil, errors.New("401")
	}
	return []voice.Voice{{ID: "abc", Name: "Laura"}}, nil
}

func (f fakeVoices) ValidateKey(ctx context.Context, apiKey string) error {
	_, err := f.ListVoices(ctx, apiKey)
	return err
}

type fakeDrafter struct{}

func (fakeDrafter) DraftConversation(ctx context.Context, req processing.DraftRequest) (*processing.Draft, error) {
	if req.Premise == "fail" {
		return nil, failure.New(failure.KindConfig, "draft", "OPENAI_API_KEY is not set")
	}
	return &processing.Draft{Title: "T", Messages: []models.Message{{ID: "1", Text: "hey", Type: models.MessageText}}}, nil
}

func setup(t *testing.T) (*gin.Engine, *MemoryStore, *tasks.MemoryQueue) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := NewMemoryStore()
	queue := tasks.NewMemoryQueue()
	h := &Handler{
		Store:   store,
		Queue:   queue,
		Assets:  assets.DefaultRegistry("."),
		Voices:  fakeVoices{},
		Drafter: fakeDrafter{},
		Logger:  zerolog.Nop(),
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", uint(7))
		c.Next()
	})
	r.POST("/renders", h.CreateRender)
	r.GET("/renders", h.ListRenders)
	r.GET("/renders/:id", h.GetRender)
	r.POST("/voices", h.ListVoices)
	r.POST("/voices/validate", h.ValidateKey)
	r.POST("/drafts", h.CreateDraft)
	return r, store, queue
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateRender(t *testing.T) {
	r, store, queue := setup(t)

	w := do(r, http.MethodPost, "/renders", map[string]any{
		"messages": []map[string]any{
			{"id": "1", "text": "hi", "is_sender": true, "type": "text"},
			{"id": "2", "text": "yo", "is_sender": false, "type": "text", "soundEffect": "vineboom"},
		},
		"headerName":    "Mom",
		"voiceSettings": map[string]any{"apiKey": "secret", "sender": "brian"},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var got models.Render
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, "Mom", got.Header.HeaderName)
	assert.Equal(t, "female", got.Header.VoiceSettings.Receiver)
	assert.Empty(t, got.Header.VoiceSettings.APIKey)
	assert.NotEmpty(t, got.PublicID)

	stored, err := store.Get(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", stored.Header.VoiceSettings.APIKey)
	assert.Equal(t, uint(7), stored.UserID)

	pending := queue.Pending(tasks.QueueCompose)
	require.Len(t, pending, 1)
	assert.JSONEq(t, `{"render_id":1}`, pending[0])
}

func TestCreateRenderRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
		kind failure.Kind
	}{
		{"no messages", map[string]any{"messages": []any{}}, failure.KindNothingToCompose},
		{"empty text", map[string]any{"messages": []map[string]any{{"id": "1", "text": "", "type": "text"}}}, failure.KindConfig},
		{"unknown background", map[string]any{
			"messages":        []map[string]any{{"id": "1", "text": "hi", "type": "text"}},
			"backgroundVideo": "lava",
		}, failure.KindConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, queue := setup(t)

			w := do(r, http.MethodPost, "/renders", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, string(tt.kind), body["kind"])
			assert.Empty(t, queue.Pending(tasks.QueueCompose))
		})
	}
}

func TestGetAndListRenders(t *testing.T) {
	r, store, _ := setup(t)
	ctx := context.Background()

	mine := &models.Render{PublicID: "mine", UserID: 7, Status: models.StatusComplete, OutputPath: "output/mine.mp4"}
	theirs := &models.Render{PublicID: "theirs", UserID: 8}
	require.NoError(t, store.Create(ctx, mine))
	require.NoError(t, store.Create(ctx, theirs))

	w := do(r, http.MethodGet, "/renders/mine", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "output/mine.mp4")

	w = do(r, http.MethodGet, "/renders/theirs", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/renders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Render
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "mine", list[0].PublicID)

	w = do(r, http.MethodGet, "/renders?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVoiceEndpoints(t *testing.T) {
	r, _, _ := setup(t)

	w := do(r, http.MethodPost, "/voices", map[string]string{"apiKey": "good"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":"abc","name":"Laura"}]`, w.Body.String())

	w = do(r, http.MethodPost, "/voices", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/voices/validate", map[string]string{"apiKey": "good"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/voices/validate", map[string]string{"apiKey": "bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateDraft(t *testing.T) {
	r, _, _ := setup(t)

	w := do(r, http.MethodPost, "/drafts", map[string]string{"premise": "breakup"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"T"`)

	w = do(r, http.MethodPost, "/drafts", map[string]string{"premise": "fail"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/drafts", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type downQueue struct{ tasks.MemoryQueue }

func (*downQueue) Push(ctx context.Context, queue string, payload interface{}) error {
	return errors.New("redis: connection refused")
}

type readOnlyStore struct{ *MemoryStore }

func (readOnlyStore) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	return errors.New("database is read-only")
}

func TestCreateRenderQueueFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	messages := []map[string]any{{"id": "1", "text": "hi", "is_sender": true, "type": "text"}}

	t.Run("marks render failed", func(t *testing.T) {
		store := NewMemoryStore()
		h := &Handler{Store: store, Queue: &downQueue{}, Logger: zerolog.Nop()}
		r := gin.New()
		r.POST("/renders", h.CreateRender)

		w := do(r, http.MethodPost, "/renders", map[string]any{"messages": messages})
		assert.Equal(t, http.StatusInternalServerError, w.Code)

		got, err := store.Get(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, got.Status)
		assert.Equal(t, "queue", got.ErrorKind)
	})

	t.Run("logs when the failure cannot be recorded", func(t *testing.T) {
		var logs bytes.Buffer
		h := &Handler{Store: readOnlyStore{NewMemoryStore()}, Queue: &downQueue{}, Logger: zerolog.New(&logs)}
		r := gin.New()
		r.POST("/renders", h.CreateRender)

		w := do(r, http.MethodPost, "/renders", map[string]any{"messages": messages})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, logs.String(), "failed to record queue failure")
		assert.Contains(t, logs.String(), "database is read-only")
	})
}
