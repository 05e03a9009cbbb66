// Package processing drafts conversations with OpenAI.
package processing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/drewmudry/chatshorts-api/failure"
	"github.com/drewmudry/chatshorts-api/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"
)

const (
	defaultLength = 12
	maxLength     = 40
)

// ConversationDraft is the structured output of the drafting call.
type ConversationDraft struct {
	Messages []DraftMessage `json:"messages" jsonschema_description:"The conversation in order, one entry per text bubble."`
}

// DraftMessage is one drafted bubble.
type DraftMessage struct {
	Text        string `json:"text" jsonschema_description:"The text of the bubble, under 120 characters, no emojis."`
	IsSender    bool   `json:"is_sender" jsonschema_description:"True when the phone owner sends this bubble, false when the contact does."`
	SoundEffect string `json:"sound_effect" jsonschema_description:"A sound effect name for a dramatic beat, or an empty string."`
}

var conversationDraftSchema = GenerateSchema[ConversationDraft]()

// DraftRequest describes the conversation to draft.
type DraftRequest struct {
	Premise        string   `json:"premise" binding:"required"`
	Length         int      `json:"length"`
	ExistingTitles []string `json:"existing_titles"`
}

// Draft is a drafted conversation ready to render.
type Draft struct {
	Title    string           `json:"title"`
	Messages []models.Message `json:"messages"`
}

// SoundEffects reports which effect names can be used.
type SoundEffects interface {
	SoundEffect(name string) (string, bool)
}

// Drafter writes texting stories.
type Drafter struct {
	client  openai.Client
	model   openai.ChatModel
	effects SoundEffects
	names   []string
	logger  zerolog.Logger
	enabled bool
}

// NewDrafter returns a drafter for apiKey. effectNames are offered to the
// model; anything else it returns is dropped.
func NewDrafter(apiKey string, effects SoundEffects, effectNames []string, logger zerolog.Logger, opts ...option.RequestOption) *Drafter {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Drafter{
		client:  openai.NewClient(opts...),
		model:   openai.ChatModelGPT4oMini,
		effects: effects,
		names:   effectNames,
		logger:  logger.With().Str("component", "drafter").Logger(),
		enabled: apiKey != "",
	}
}

// DraftConversation titles and writes a conversation for req.Premise.
func (d *Drafter) DraftConversation(ctx context.Context, req DraftRequest) (*Draft, error) {
	if !d.enabled {
		return nil, failure.New(failure.KindConfig, "draft", "OPENAI_API_KEY is not set")
	}
	premise := strings.TrimSpace(req.Premise)
	if premise == "" {
		return nil, failure.New(failure.KindConfig, "draft", "premise is required")
	}
	length := req.Length
	if length <= 0 {
		length = defaultLength
	}
	if length > maxLength {
		length = maxLength
	}

	title, err := d.GenerateTitle(ctx, premise, req.ExistingTitles)
	if err != nil {
		return nil, fmt.Errorf("generate title: %w", err)
	}

	prompt := fmt.Sprintf(`You are writing a short, dramatic text message conversation for a vertical video.

Title: %s
Premise: %s

Write about %d bubbles alternating naturally between the phone owner (is_sender true) and the contact (is_sender false).
Keep every bubble short and punchy. Build to a twist near the end.
Use a sound effect on at most three bubbles. Allowed sound effects: %s. Use an empty string otherwise.`,
		title, premise, length, strings.Join(d.names, ", "))

	resp, err := getStructuredResponse[ConversationDraft](ctx, d.client, d.model, "texting_story", prompt, conversationDraftSchema)
	if err != nil {
		return nil, fmt.Errorf("draft conversation: %w", err)
	}

	messages := d.toMessages(resp.Messages)
	if len(messages) == 0 {
		return nil, fmt.Errorf("draft conversation: OpenAI returned no messages")
	}

	d.logger.Info().Str("title", title).Int("messages", len(messages)).Msg("conversation drafted")
	return &Draft{Title: title, Messages: messages}, nil
}

func (d *Drafter) toMessages(drafted []DraftMessage) []models.Message {
	out := make([]models.Message, 0, len(drafted))
	for _, m := range drafted {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		effect := strings.TrimSpace(m.SoundEffect)
		if effect != "" && d.effects != nil {
			if _, ok := d.effects.SoundEffect(effect); !ok {
				effect = ""
			}
		}
		out = append(out, models.Message{
			ID:          strconv.Itoa(len(out) + 1),
			Text:        text,
			IsSender:    m.IsSender,
			Type:        models.MessageText,
			SoundEffect: effect,
		})
	}
	return out
}
