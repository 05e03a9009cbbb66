// Package timeline turns a conversation into time-positioned steps.
package timeline

import (
	"github.com/drewmudry/chatshorts-api/snapshot"
)

const (
	// TextPause follows every text message.
	TextPause = 0.09
	// VoiceDelay is how long the voice waits after a sound effect starts.
	VoiceDelay = 0.1
	// PicturePause follows a picture's sound effect.
	PicturePause = 0.04
	// PictureDefault is the slot of a picture without sound effect.
	PictureDefault = 0.54

	// HeaderSteps is how many steps, counted over the whole conversation,
	// show the conversation header.
	HeaderSteps = 5
	// DefaultChunkSize is how many messages one visible window holds.
	DefaultChunkSize = 5
)

// Frame is the size of the background video in pixels.
type Frame struct {
	Width  int
	Height int
}

// AudioClip is an audio file placed relative to its step's start.
type AudioClip struct {
	Path   string
	Offset float64
}

// Step is one rendered message positioned on the timeline.
type Step struct {
	Index     int
	MessageID string
	Image     *snapshot.Image
	Placement snapshot.Placement
	Audio     []AudioClip
	Start     float64
	Duration  float64
}

// End is when the step stops showing.
func (s Step) End() float64 {
	return s.Start + s.Duration
}

// Accumulator tracks the running timeline offset of one composition. It
// only moves forward.
type Accumulator struct {
	current float64
}

// Current returns the offset where the next slot starts.
func (a *Accumulator) Current() float64 {
	return a.current
}

// Advance consumes a slot of d seconds and returns its start.
func (a *Accumulator) Advance(d float64) float64 {
	start := a.current
	if d > 0 {
		a.current += d
	}
	return start
}

// Plan is the result of the duration pass.
type Plan struct {
	Durations []float64
	Total     float64
}

// Timeline is the result of the materialization pass.
type Timeline struct {
	Steps []Step
	// Skipped holds the message indexes whose snapshot could not be
	// rendered. Their slots stay on the timeline as gaps.
	Skipped  []int
	Duration float64
}
