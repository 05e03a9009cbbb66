package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/drewmudry/chatshorts-api/failure"
	"github.com/drewmudry/chatshorts-api/media"
	"github.com/drewmudry/chatshorts-api/scratch"
	"github.com/rs/zerolog"
)

// Asset is synthesized speech stored on disk.
type Asset struct {
	Path     string
	Duration float64
}

// Session synthesizes speech for one composition. Results are cached by
// (voice, text) so the duration pass and the materialization pass share a
// single provider call per line.
type Session struct {
	synth  Synthesizer
	prober media.Prober
	arena  *scratch.Arena
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[cacheKey]Asset
	seq   int
	calls int
}

type cacheKey struct {
	voiceID string
	text    string
}

// NewSession binds a synthesizer to a composition's scratch arena.
func NewSession(synth Synthesizer, prober media.Prober, arena *scratch.Arena, logger zerolog.Logger) *Session {
	return &Session{
		synth:  synth,
		prober: prober,
		arena:  arena,
		logger: logger,
		cache:  make(map[cacheKey]Asset),
	}
}

// Synthesize returns the speech asset and its duration in seconds.
func (s *Session) Synthesize(ctx context.Context, text, voiceID string) (Asset, error) {
	key := cacheKey{voiceID: voiceID, text: text}

	s.mu.Lock()
	if asset, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return asset, nil
	}
	s.seq++
	name := fmt.Sprintf("voice_%03d.mp3", s.seq)
	s.calls++
	s.mu.Unlock()

	audio, err := s.synth.Synthesize(ctx, text, voiceID)
	if err != nil {
		return Asset{}, err
	}

	path, err := s.arena.Write(name, audio)
	if err != nil {
		return Asset{}, err
	}

	info, err := s.prober.Probe(ctx, path)
	if err != nil {
		return Asset{}, failure.Wrap(failure.KindSynthesisUnavailable, "measure speech", err)
	}

	asset := Asset{Path: path, Duration: info.Duration}
	s.logger.Debug().Str("voice", voiceID).Float64("duration", asset.Duration).Str("path", path).Msg("speech ready")

	s.mu.Lock()
	s.cache[key] = asset
	s.mu.Unlock()
	return asset, nil
}

// ProviderCalls returns how many lines were sent to the provider.
func (s *Session) ProviderCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
