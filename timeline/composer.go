package timeline

import (
	"context"
	"math"
	"sync"

	"github.com/drewmudry/chatshorts-api/failure"
	"github.com/drewmudry/chatshorts-api/media"
	"github.com/drewmudry/chatshorts-api/metrics"
	"github.com/drewmudry/chatshorts-api/models"
	"github.com/drewmudry/chatshorts-api/snapshot"
	"github.com/drewmudry/chatshorts-api/voice"
	"github.com/rs/zerolog"
)

// Speech produces the voice-over of a line.
type Speech interface {
	Synthesize(ctx context.Context, text, voiceID string) (voice.Asset, error)
}

// Effects looks up sound effect files by name.
type Effects interface {
	SoundEffect(name string) (string, bool)
}

// Config wires a Composer.
type Config struct {
	Speech   Speech
	Renderer snapshot.Renderer
	Effects  Effects
	Prober   media.Prober
	Voices   voice.Assignment
	// ChunkSize bounds how many messages a snapshot shows. Zero uses
	// DefaultChunkSize, a negative value shows the whole prefix.
	ChunkSize int
	Logger    zerolog.Logger
}

// Composer builds the timeline of one composition. It is not shared
// between compositions.
type Composer struct {
	speech    Speech
	renderer  snapshot.Renderer
	effects   Effects
	prober    media.Prober
	voices    voice.Assignment
	chunkSize int
	logger    zerolog.Logger

	mu      sync.Mutex
	effectD map[string]float64
}

func New(cfg Config) *Composer {
	chunk := cfg.ChunkSize
	if chunk == 0 {
		chunk = DefaultChunkSize
	}
	return &Composer{
		speech:    cfg.Speech,
		renderer:  cfg.Renderer,
		effects:   cfg.Effects,
		prober:    cfg.Prober,
		voices:    cfg.Voices,
		chunkSize: chunk,
		logger:    cfg.Logger.With().Str("component", "timeline").Logger(),
		effectD:   make(map[string]float64),
	}
}

// Compose runs both passes.
func (c *Composer) Compose(ctx context.Context, messages []models.Message, header models.HeaderConfig, frame Frame) (*Timeline, error) {
	plan, err := c.Plan(ctx, messages)
	if err != nil {
		return nil, err
	}
	return c.Materialize(ctx, messages, header, frame, plan)
}

// Plan is the duration pass: it computes every message's slot without
// rendering anything. The total is what the background has to cover.
func (c *Composer) Plan(ctx context.Context, messages []models.Message) (*Plan, error) {
	if len(messages) == 0 {
		return nil, failure.New(failure.KindNothingToCompose, "plan", "no messages")
	}
	if err := c.Validate(messages); err != nil {
		return nil, err
	}

	plan := &Plan{Durations: make([]float64, len(messages))}
	for i, msg := range messages {
		d, _, err := c.slot(ctx, msg)
		if err != nil {
			return nil, err
		}
		plan.Durations[i] = d
		plan.Total += d
	}

	c.logger.Info().Int("messages", len(messages)).Float64("total", plan.Total).Msg("timeline planned")
	return plan, nil
}

// Validate rejects conversations that cannot be composed before any
// provider is called.
func (c *Composer) Validate(messages []models.Message) error {
	if err := models.ValidateMessages(messages); err != nil {
		return err
	}
	for _, msg := range messages {
		if msg.IsPicture() {
			continue
		}
		if _, err := c.voices.VoiceFor(msg.Role()); err != nil {
			return err
		}
	}
	return nil
}

// Materialize is the rendering pass. It re-derives each slot, renders the
// visible window of the conversation and places the result on the
// timeline. A message whose snapshot fails keeps its slot as a gap; only
// cancellation of ctx aborts the pass from the renderer side.
func (c *Composer) Materialize(ctx context.Context, messages []models.Message, header models.HeaderConfig, frame Frame, plan *Plan) (*Timeline, error) {
	if plan == nil || len(plan.Durations) != len(messages) {
		return nil, failure.New(failure.KindConfig, "materialize", "plan does not match %d messages", len(messages))
	}

	var acc Accumulator
	tl := &Timeline{}

	for i, msg := range messages {
		duration, audio, err := c.slot(ctx, msg)
		if err != nil {
			return nil, err
		}
		if math.Abs(duration-plan.Durations[i]) > 1e-9 {
			c.logger.Warn().
				Int("message", i+1).
				Float64("planned", plan.Durations[i]).
				Float64("derived", duration).
				Msg("slot changed between passes, keeping planned duration")
			duration = plan.Durations[i]
		}

		req := snapshot.Request{
			Messages:     c.window(messages, i),
			ShowHeader:   i+1 <= HeaderSteps,
			HeaderName:   header.HeaderName,
			ProfileImage: header.ProfileImage,
			Theme:        header.Theme,
		}

		img, err := c.renderer.Render(ctx, req)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil || img == nil {
			if err == nil {
				err = failure.New(failure.KindRender, "snapshot", "renderer returned no image")
			} else if !failure.Recoverable(err) {
				err = failure.Wrap(failure.KindRender, "snapshot", err)
			}
			c.logger.Warn().Err(err).Int("message", i+1).Msg("failed to capture conversation, skipping step")
			metrics.StepsSkipped.Inc()
			tl.Skipped = append(tl.Skipped, i)
			acc.Advance(duration)
			continue
		}

		step := Step{
			Index:     i,
			MessageID: msg.ID,
			Image:     img,
			Placement: snapshot.Place(img.Width, img.Height, frame.Width, frame.Height),
			Audio:     audio,
			Duration:  duration,
		}
		step.Start = acc.Advance(duration)
		tl.Steps = append(tl.Steps, step)

		c.logger.Debug().
			Int("message", i+1).
			Float64("start", step.Start).
			Float64("duration", step.Duration).
			Bool("header", req.ShowHeader).
			Msg("step added")
	}

	if len(tl.Steps) == 0 {
		return nil, failure.New(failure.KindNothingToCompose, "materialize", "no valid messages to generate video")
	}

	tl.Duration = acc.Current()
	return tl, nil
}

// window returns the messages shown in the snapshot of message i.
func (c *Composer) window(messages []models.Message, i int) []models.Message {
	start := 0
	if c.chunkSize > 0 {
		start = (i / c.chunkSize) * c.chunkSize
	}
	return messages[start : i+1]
}

// slot derives a message's duration and audio layout.
func (c *Composer) slot(ctx context.Context, msg models.Message) (float64, []AudioClip, error) {
	effectPath, effectDur, hasEffect, err := c.effect(ctx, msg.SoundEffect)
	if err != nil {
		return 0, nil, err
	}

	if msg.IsPicture() {
		if !hasEffect {
			return PictureDuration(0, false), nil, nil
		}
		return PictureDuration(effectDur, true), []AudioClip{{Path: effectPath}}, nil
	}

	voiceID, err := c.voices.VoiceFor(msg.Role())
	if err != nil {
		return 0, nil, err
	}
	speech, err := c.speech.Synthesize(ctx, msg.Spoken(), voiceID)
	if err != nil {
		return 0, nil, err
	}

	if !hasEffect {
		return TextDuration(speech.Duration, 0, false), []AudioClip{{Path: speech.Path}}, nil
	}
	audio := []AudioClip{
		{Path: effectPath},
		{Path: speech.Path, Offset: VoiceDelay},
	}
	return TextDuration(speech.Duration, effectDur, true), audio, nil
}

// effect resolves a sound effect and its duration. Unknown names mean no
// effect.
func (c *Composer) effect(ctx context.Context, name string) (string, float64, bool, error) {
	if name == "" || c.effects == nil {
		return "", 0, false, nil
	}
	path, ok := c.effects.SoundEffect(name)
	if !ok {
		c.logger.Debug().Str("effect", name).Msg("unknown sound effect, ignoring")
		return "", 0, false, nil
	}

	c.mu.Lock()
	d, cached := c.effectD[name]
	c.mu.Unlock()
	if cached {
		return path, d, true, nil
	}

	info, err := c.prober.Probe(ctx, path)
	if err != nil {
		return "", 0, false, failure.Wrap(failure.KindConfig, "sound effect "+name, err)
	}

	c.mu.Lock()
	c.effectD[name] = info.Duration
	c.mu.Unlock()
	return path, info.Duration, true, nil
}
