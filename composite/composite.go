// Package composite layers a timeline over its background and encodes the
// result.
package composite

import (
	"context"
	"fmt"

	"github.com/drewmudry/chatshorts-api/background"
	"github.com/drewmudry/chatshorts-api/failure"
	"github.com/drewmudry/chatshorts-api/scratch"
	"github.com/drewmudry/chatshorts-api/snapshot"
	"github.com/drewmudry/chatshorts-api/timeline"
)

// Overlay is a snapshot shown over [Start, End).
type Overlay struct {
	ImagePath string
	Placement snapshot.Placement
	Start     float64
	End       float64
}

// AudioLayer is an audio file mixed in at Start.
type AudioLayer struct {
	Path  string
	Start float64
}

// Composition is everything an encoder needs. Overlays are ordered bottom
// to top and sit above the background.
type Composition struct {
	Background background.Track
	Frame      timeline.Frame
	Overlays   []Overlay
	Audio      []AudioLayer
	Duration   float64
}

// Encoder turns a composition into a video file.
type Encoder interface {
	Encode(ctx context.Context, c *Composition, out string) error
}

// Build lays the steps of tl over track. Snapshot images are written to
// arena so the encoder can read them.
func Build(arena *scratch.Arena, track background.Track, tl *timeline.Timeline, frame timeline.Frame) (*Composition, error) {
	if tl == nil || len(tl.Steps) == 0 {
		return nil, failure.New(failure.KindNothingToCompose, "composite", "timeline has no steps")
	}
	if track.Duration+1e-6 < tl.Duration {
		return nil, fmt.Errorf("composite: background covers %.3fs of %.3fs", track.Duration, tl.Duration)
	}

	c := &Composition{
		Background: track,
		Frame:      frame,
		Duration:   tl.Duration,
	}

	for _, step := range tl.Steps {
		path, err := arena.Write(fmt.Sprintf("step_%03d.png", step.Index), step.Image.PNG)
		if err != nil {
			return nil, err
		}
		c.Overlays = append(c.Overlays, Overlay{
			ImagePath: path,
			Placement: step.Placement,
			Start:     step.Start,
			End:       step.End(),
		})
		for _, clip := range step.Audio {
			c.Audio = append(c.Audio, AudioLayer{Path: clip.Path, Start: step.Start + clip.Offset})
		}
	}
	return c, nil
}
