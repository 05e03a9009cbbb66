// Package pipeline runs a conversation through voice synthesis, timeline
// composition and encoding.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/drewmudry/chatshorts-api/assets"
	"github.com/drewmudry/chatshorts-api/background"
	"github.com/drewmudry/chatshorts-api/composite"
	"github.com/drewmudry/chatshorts-api/failure"
	"github.com/drewmudry/chatshorts-api/media"
	"github.com/drewmudry/chatshorts-api/metrics"
	"github.com/drewmudry/chatshorts-api/models"
	"github.com/drewmudry/chatshorts-api/scratch"
	"github.com/drewmudry/chatshorts-api/snapshot"
	"github.com/drewmudry/chatshorts-api/timeline"
	"github.com/drewmudry/chatshorts-api/voice"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Fetcher downloads remote media.
type Fetcher interface {
	Download(ctx context.Context, url, dst string) error
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Assets   *assets.Registry
	Voices   *voice.Client
	Renderer snapshot.Renderer
	Prober   media.Prober
	Fetcher  Fetcher
	Sampler  *background.Sampler
	Encoder  composite.Encoder
	Post     *composite.PostProcessor
}

// Options tune where files go and which post-processing runs.
type Options struct {
	ScratchDir    string
	OutputDir     string
	BackgroundDir string
	WindowSize    int
	Enhance       bool
	SpeedUpFactor float64
}

// Pipeline is safe for concurrent use; every Generate call owns its
// scratch arena, voice cache and timeline.
type Pipeline struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger

	downloads singleflight.Group
}

// Result describes an encoded composition.
type Result struct {
	ID            string
	OutputPath    string
	Steps         int
	Skipped       int
	Duration      float64
	ProviderCalls int
}

// PostResult holds the outputs of PostProcess. Empty paths were not
// produced; Warnings lists the passes that failed.
type PostResult struct {
	EnhancedPath string
	SpedUpPath   string
	Warnings     []error
}

func New(deps Deps, opts Options, logger zerolog.Logger) *Pipeline {
	if deps.Sampler == nil {
		deps.Sampler = background.NewSampler()
	}
	return &Pipeline{
		deps:   deps,
		opts:   opts,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
}

// Generate composes messages into <OutputDir>/<id>.mp4. Configuration
// problems are reported before any synthesis or rendering starts.
func (p *Pipeline) Generate(ctx context.Context, id string, messages []models.Message, header models.HeaderConfig) (res *Result, err error) {
	start := time.Now()
	logger := p.logger.With().Str("render_id", id).Logger()
	defer func() {
		result := "ok"
		if err != nil {
			result = string(failure.KindOf(err))
		}
		metrics.Compositions.WithLabelValues(result).Inc()
		metrics.CompositionDuration.Observe(time.Since(start).Seconds())
	}()

	header = header.WithDefaults()
	if len(messages) == 0 {
		return nil, failure.New(failure.KindNothingToCompose, "generate", "no messages")
	}

	bg, err := p.deps.Assets.Background(header.BackgroundVideo)
	if err != nil {
		return nil, err
	}

	client := p.deps.Voices
	if key := header.VoiceSettings.APIKey; key != "" {
		client = client.WithAPIKey(key)
	}
	assignment, err := voice.ResolveAssignment(ctx, client, header.VoiceSettings)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("sender", assignment[models.RoleSender]).
		Str("receiver", assignment[models.RoleReceiver]).
		Int("messages", len(messages)).
		Msg("voices resolved")

	arena, err := scratch.New(p.opts.ScratchDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := arena.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("failed to clean scratch arena")
		}
	}()

	session := voice.NewSession(client, p.deps.Prober, arena, logger)
	composer := timeline.New(timeline.Config{
		Speech:    session,
		Renderer:  p.deps.Renderer,
		Effects:   p.deps.Assets,
		Prober:    p.deps.Prober,
		Voices:    assignment,
		ChunkSize: p.opts.WindowSize,
		Logger:    logger,
	})
	if err := composer.Validate(messages); err != nil {
		return nil, err
	}

	clip, err := p.backgroundClip(ctx, header.BackgroundVideo, bg)
	if err != nil {
		return nil, err
	}
	frame := timeline.Frame{Width: clip.Width, Height: clip.Height}

	plan, err := composer.Plan(ctx, messages)
	if err != nil {
		return nil, err
	}
	track, err := p.deps.Sampler.Sample(clip, plan.Total)
	if err != nil {
		return nil, err
	}
	logger.Info().Float64("offset", track.Offset).Int("loops", track.Loops).Float64("duration", track.Duration).Msg("background sampled")

	tl, err := composer.Materialize(ctx, messages, header, frame, plan)
	if err != nil {
		return nil, err
	}

	comp, err := composite.Build(arena, track, tl, frame)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	out := filepath.Join(p.opts.OutputDir, id+".mp4")
	if err := p.deps.Encoder.Encode(ctx, comp, out); err != nil {
		// no partial video survives a failed encode
		arena.Track(out)
		return nil, err
	}

	res = &Result{
		ID:            id,
		OutputPath:    out,
		Steps:         len(tl.Steps),
		Skipped:       len(tl.Skipped),
		Duration:      tl.Duration,
		ProviderCalls: session.ProviderCalls(),
	}
	logger.Info().
		Int("steps", res.Steps).
		Int("skipped", res.Skipped).
		Float64("duration", res.Duration).
		Dur("elapsed", time.Since(start)).
		Msg("composition encoded")
	return res, nil
}

// PostProcess runs the configured enhance and speed-up passes over an
// encoded composition. Both passes are best-effort: a failed pass is
// recorded in Warnings and the encoded input stays usable. Only
// cancellation of ctx is returned as an error.
func (p *Pipeline) PostProcess(ctx context.Context, id, in string) (*PostResult, error) {
	res := &PostResult{}
	if p.deps.Post == nil {
		return res, nil
	}
	logger := p.logger.With().Str("render_id", id).Logger()

	src := in
	if p.opts.Enhance {
		out := filepath.Join(p.opts.OutputDir, id+"_hd.mp4")
		if err := p.deps.Post.Enhance(ctx, src, out); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Warn().Err(err).Msg("enhancement failed, using original video")
			res.Warnings = append(res.Warnings, err)
		} else {
			res.EnhancedPath = out
			src = out
		}
	}

	if f := p.opts.SpeedUpFactor; f > 0 && f != 1 {
		out := filepath.Join(p.opts.OutputDir, id+"_fast.mp4")
		if err := p.deps.Post.SpeedUp(ctx, src, out, f); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Warn().Err(err).Msg("speed-up failed, skipping sped-up version")
			res.Warnings = append(res.Warnings, err)
		} else {
			res.SpedUpPath = out
		}
	}
	return res, nil
}

// backgroundClip returns the local copy of a background, downloading it
// once when it is not cached yet.
func (p *Pipeline) backgroundClip(ctx context.Context, name string, bg assets.Background) (background.Clip, error) {
	path := bg.Path
	if path == "" {
		path = filepath.Join(p.opts.BackgroundDir, name+".mp4")
	}

	if _, err := os.Stat(path); err != nil {
		if bg.URL == "" {
			return background.Clip{}, failure.New(failure.KindConfig, "background", "background %q has no source", name)
		}
		_, err, _ := p.downloads.Do(path, func() (interface{}, error) {
			return nil, p.download(ctx, bg.URL, path)
		})
		if err != nil {
			return background.Clip{}, failure.Wrap(failure.KindConfig, "background", err)
		}
	}

	info, err := p.deps.Prober.Probe(ctx, path)
	if err != nil {
		return background.Clip{}, failure.Wrap(failure.KindConfig, "background", err)
	}
	if info.Width == 0 || info.Height == 0 {
		return background.Clip{}, failure.New(failure.KindConfig, "background", "%s has no video stream", path)
	}
	return background.Clip{Path: path, Duration: info.Duration, Width: info.Width, Height: info.Height}, nil
}

func (p *Pipeline) download(ctx context.Context, url, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	p.logger.Info().Str("url", url).Str("dst", dst).Msg("downloading background")
	tmp := dst + ".part"
	if err := p.deps.Fetcher.Download(ctx, url, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
