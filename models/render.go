package models

import (
	"time"
)

// Render statuses, in pipeline order.
const (
	StatusPending            = "pending"
	StatusComposing          = "composing"
	StatusPendingPostprocess = "pending_postprocess"
	StatusPostprocessing     = "postprocessing"
	StatusPendingNotify      = "pending_notify"
	StatusComplete           = "complete"
	StatusFailed             = "failed"
)

// Render is one requested composition and its progress through the worker
// queues.
type Render struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PublicID string `gorm:"uniqueIndex;size:36;not null" json:"public_id"`
	UserID   uint   `gorm:"not null;index" json:"user_id"`

	Messages []Message    `gorm:"serializer:json;type:jsonb" json:"messages"`
	Header   HeaderConfig `gorm:"serializer:json;type:jsonb" json:"header"`

	Status       string  `gorm:"default:'pending';index" json:"status"`
	ErrorKind    string  `gorm:"size:64" json:"error_kind,omitempty"`
	ErrorMessage string  `gorm:"type:text" json:"error_message,omitempty"`
	StepCount    int     `json:"step_count"`
	Duration     float64 `json:"duration"`
	OutputPath   string  `json:"output_path,omitempty"`
	EnhancedPath string  `json:"enhanced_path,omitempty"`
	SpedUpPath   string  `json:"sped_up_path,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Render) TableName() string {
	return "renders"
}

// IsFinished reports whether the render reached a terminal status.
func (r *Render) IsFinished() bool {
	return r.Status == StatusComplete || r.Status == StatusFailed
}
