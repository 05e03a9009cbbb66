package models

import (
	"strings"

	"github.com/drewmudry/chatshorts-api/failure"
)

// MessageType distinguishes text bubbles from picture bubbles.
type MessageType string

const (
	MessageText    MessageType = "text"
	MessagePicture MessageType = "picture"
)

// Message is one bubble of the scripted conversation. For picture messages
// Text holds the image URL.
type Message struct {
	ID          string      `json:"id"`
	Text        string      `json:"text"`
	IsSender    bool        `json:"is_sender"`
	Type        MessageType `json:"type"`
	SoundEffect string      `json:"soundEffect,omitempty"`
}

// IsPicture reports whether the message renders an image instead of text.
func (m Message) IsPicture() bool {
	return m.Type == MessagePicture
}

// Spoken returns the text sent to speech synthesis.
func (m Message) Spoken() string {
	return strings.TrimSpace(m.Text)
}

// Role returns the voice role that speaks this message.
func (m Message) Role() Role {
	if m.IsSender {
		return RoleSender
	}
	return RoleReceiver
}

// Role is an abstract speaker identity.
type Role string

const (
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
)

// VoiceSettings selects the voice for each role. Values are either aliases
// ("male", "female") or voice names known to the provider.
type VoiceSettings struct {
	APIKey   string `json:"apiKey,omitempty"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
}

// HeaderConfig is the display metadata of a conversation. It is passed
// through the pipeline unchanged.
type HeaderConfig struct {
	ProfileImage    string        `json:"profileImage"`
	HeaderName      string        `json:"headerName"`
	Theme           string        `json:"theme"`
	BackgroundVideo string        `json:"backgroundVideo"`
	VoiceSettings   VoiceSettings `json:"voiceSettings"`
}

// WithDefaults fills the fields a client may omit.
func (h HeaderConfig) WithDefaults() HeaderConfig {
	if strings.TrimSpace(h.HeaderName) == "" {
		h.HeaderName = "John Doe"
	}
	if h.Theme == "" {
		h.Theme = "light"
	}
	if h.BackgroundVideo == "" {
		h.BackgroundVideo = "background"
	}
	if h.VoiceSettings.Sender == "" {
		h.VoiceSettings.Sender = "male"
	}
	if h.VoiceSettings.Receiver == "" {
		h.VoiceSettings.Receiver = "female"
	}
	return h
}

// ValidateMessages checks that every message can be shown and spoken.
func ValidateMessages(messages []Message) error {
	for i, msg := range messages {
		switch msg.Type {
		case MessageText:
			if msg.Spoken() == "" {
				return failure.New(failure.KindConfig, "validate", "message %d has no text", i+1)
			}
		case MessagePicture:
			if msg.Spoken() == "" {
				return failure.New(failure.KindConfig, "validate", "picture message %d has no image", i+1)
			}
		default:
			return failure.New(failure.KindConfig, "validate", "message %d has unknown type %q", i+1, msg.Type)
		}
	}
	return nil
}
