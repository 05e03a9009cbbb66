// Package background picks the section of a background clip that plays
// behind a composition.
package background

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/drewmudry/chatshorts-api/failure"
)

// SafetyMargin is kept free at the end of a clip when choosing an offset.
const SafetyMargin = 1.0

// Clip is a source background video.
type Clip struct {
	Path     string
	Duration float64
	Width    int
	Height   int
}

// Track is the background as it plays under the timeline: the clip repeated
// Loops times, then trimmed to [Offset, Offset+Duration).
type Track struct {
	Clip     Clip
	Offset   float64
	Loops    int
	Duration float64
}

// End is the trim end relative to the (possibly looped) source.
func (t Track) End() float64 {
	return t.Offset + t.Duration
}

// Looped reports whether the clip has to repeat to cover the track.
func (t Track) Looped() bool {
	return t.Loops > 1
}

// Sampler chooses background tracks.
type Sampler struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewSampler returns a sampler seeded from the clock.
func NewSampler() *Sampler {
	return NewSamplerWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewSamplerWithSource returns a sampler drawing offsets from src.
func NewSamplerWithSource(src rand.Source) *Sampler {
	return &Sampler{rand: rand.New(src)}
}

// Sample returns a track of exactly required seconds. A clip longer than
// required starts at a uniform random offset in
// [0, clip.Duration-required-SafetyMargin]; otherwise it is looped
// ceil(required/clip.Duration) times and trimmed from the start.
func (s *Sampler) Sample(clip Clip, required float64) (Track, error) {
	if clip.Duration <= 0 {
		return Track{}, failure.New(failure.KindConfig, "sample background", "clip %q has no duration", clip.Path)
	}
	if required <= 0 || math.IsNaN(required) || math.IsInf(required, 0) {
		return Track{}, fmt.Errorf("sample background: invalid duration %v", required)
	}

	if clip.Duration > required {
		track := Track{Clip: clip, Loops: 1, Duration: required}
		if room := clip.Duration - required - SafetyMargin; room > 0 {
			s.mu.Lock()
			track.Offset = s.rand.Float64() * room
			s.mu.Unlock()
		}
		return track, nil
	}

	loops := int(math.Ceil(required / clip.Duration))
	if loops < 1 {
		loops = 1
	}
	return Track{Clip: clip, Loops: loops, Duration: required}, nil
}
