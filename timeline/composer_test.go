package timeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/drewmudry/chatshorts-api/failure"
	"github.com/drewmudry/chatshorts-api/media"
	"github.com/drewmudry/chatshorts-api/models"
	"github.com/drewmudry/chatshorts-api/snapshot"
	"github.com/drewmudry/chatshorts-api/voice"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSpeech struct {
	durations map[string]float64
	calls     []string
	err       error
}

func (f *fakeSpeech) Synthesize(ctx context.Context, text, voiceID string) (voice.Asset, error) {
	f.calls = append(f.calls, voiceID+":"+text)
	if f.err != nil {
		return voice.Asset{}, f.err
	}
	d, ok := f.durations[text]
	if !ok {
		d = 1.0
	}
	return voice.Asset{Path: "/tmp/" + text + ".mp3", Duration: d}, nil
}

type fakeRenderer struct {
	failAt   map[int]bool
	requests []snapshot.Request
}

func (f *fakeRenderer) Render(ctx context.Context, req snapshot.Request) (*snapshot.Image, error) {
	f.requests = append(f.requests, req)
	if f.failAt[len(f.requests)-1] {
		return nil, failure.New(failure.KindRender, "render", "browser crashed")
	}
	return &snapshot.Image{Width: 400, Height: 200}, nil
}

type fakeEffects map[string]string

func (f fakeEffects) SoundEffect(name string) (string, bool) {
	p, ok := f[name]
	return p, ok
}

type fakeProber map[string]float64

func (f fakeProber) Probe(ctx context.Context, path string) (*media.Info, error) {
	d, ok := f[path]
	if !ok {
		return nil, fmt.Errorf("no such file %s", path)
	}
	return &media.Info{Duration: d}, nil
}

var testVoices = voice.Assignment{
	models.RoleSender:   "voice-sender",
	models.RoleReceiver: "voice-receiver",
}

var testFrame = Frame{Width: 1080, Height: 1920}

func newComposer(speech *fakeSpeech, renderer *fakeRenderer) *Composer {
	return New(Config{
		Speech:   speech,
		Renderer: renderer,
		Effects:  fakeEffects{"vineboom": "sfx/vineboom.mp3", "notification": "sfx/notification.mp3"},
		Prober:   fakeProber{"sfx/vineboom.mp3": 0.5, "sfx/notification.mp3": 2.0},
		Voices:   testVoices,
		Logger:   zerolog.Nop(),
	})
}

func text(id, body string, sender bool, effect string) models.Message {
	return models.Message{ID: id, Text: body, IsSender: sender, Type: models.MessageText, SoundEffect: effect}
}

func picture(id, effect string) models.Message {
	return models.Message{ID: id, Text: "https://img.example.com/" + id + ".png", Type: models.MessagePicture, SoundEffect: effect}
}

func TestComposeTwoMessages(t *testing.T) {
	speech := &fakeSpeech{durations: map[string]float64{"hi": 1.0, "yo": 1.2}}
	renderer := &fakeRenderer{}
	c := newComposer(speech, renderer)

	messages := []models.Message{
		text("1", "hi", true, ""),
		text("2", "yo", false, "vineboom"),
	}

	plan, err := c.Plan(context.Background(), messages)
	require.NoError(t, err)
	assert.InDelta(t, 2.48, plan.Total, 1e-9)

	tl, err := c.Materialize(context.Background(), messages, models.HeaderConfig{HeaderName: "Mom"}, testFrame, plan)
	require.NoError(t, err)
	require.Len(t, tl.Steps, 2)

	assert.InDelta(t, 0, tl.Steps[0].Start, 1e-9)
	assert.InDelta(t, 1.09, tl.Steps[0].Duration, 1e-9)
	assert.InDelta(t, 1.09, tl.Steps[1].Start, 1e-9)
	assert.InDelta(t, 1.39, tl.Steps[1].Duration, 1e-9)
	assert.InDelta(t, 2.48, tl.Duration, 1e-9)

	assert.Equal(t, []AudioClip{{Path: "/tmp/hi.mp3"}}, tl.Steps[0].Audio)
	assert.Equal(t, []AudioClip{
		{Path: "sfx/vineboom.mp3"},
		{Path: "/tmp/yo.mp3", Offset: VoiceDelay},
	}, tl.Steps[1].Audio)

	assert.Equal(t, []string{
		"voice-sender:hi", "voice-receiver:yo",
		"voice-sender:hi", "voice-receiver:yo",
	}, speech.calls)

	assert.Equal(t, snapshot.Place(400, 200, 1080, 1920), tl.Steps[0].Placement)
	assert.Equal(t, "Mom", renderer.requests[0].HeaderName)
}

func TestEffectLongerThanVoice(t *testing.T) {
	speech := &fakeSpeech{durations: map[string]float64{"ding": 0.4}}
	c := newComposer(speech, &fakeRenderer{})

	tl, err := c.Compose(context.Background(), []models.Message{text("1", "ding", true, "notification")}, models.HeaderConfig{}, testFrame)
	require.NoError(t, err)
	assert.InDelta(t, 2.09, tl.Steps[0].Duration, 1e-9)
}

func TestPictureDurations(t *testing.T) {
	c := newComposer(&fakeSpeech{}, &fakeRenderer{})

	tl, err := c.Compose(context.Background(), []models.Message{
		picture("1", ""),
		picture("2", "vineboom"),
		picture("3", "not-a-sound"),
	}, models.HeaderConfig{}, testFrame)
	require.NoError(t, err)
	require.Len(t, tl.Steps, 3)

	assert.InDelta(t, 0.54, tl.Steps[0].Duration, 1e-9)
	assert.Empty(t, tl.Steps[0].Audio)
	assert.InDelta(t, 0.54, tl.Steps[1].Duration, 1e-9)
	assert.Equal(t, []AudioClip{{Path: "sfx/vineboom.mp3"}}, tl.Steps[1].Audio)
	assert.InDelta(t, 0.54, tl.Steps[2].Duration, 1e-9)
	assert.Empty(t, tl.Steps[2].Audio)
}

func TestRenderFailureLeavesGap(t *testing.T) {
	renderer := &fakeRenderer{failAt: map[int]bool{1: true}}
	c := newComposer(&fakeSpeech{}, renderer)

	tl, err := c.Compose(context.Background(), []models.Message{
		text("1", "hi", true, ""),
		picture("2", ""),
		text("3", "ok", false, ""),
	}, models.HeaderConfig{}, testFrame)
	require.NoError(t, err)

	require.Len(t, tl.Steps, 2)
	assert.Equal(t, []int{1}, tl.Skipped)
	assert.Equal(t, "3", tl.Steps[1].MessageID)
	assert.InDelta(t, 1.09+0.54, tl.Steps[1].Start, 1e-9)
	assert.InDelta(t, 1.09+0.54+1.09, tl.Duration, 1e-9)
}

func TestNothingToCompose(t *testing.T) {
	c := newComposer(&fakeSpeech{}, &fakeRenderer{failAt: map[int]bool{0: true, 1: true}})

	_, err := c.Compose(context.Background(), nil, models.HeaderConfig{}, testFrame)
	assert.Equal(t, failure.KindNothingToCompose, failure.KindOf(err))

	_, err = c.Compose(context.Background(), []models.Message{picture("1", ""), picture("2", "")}, models.HeaderConfig{}, testFrame)
	assert.Equal(t, failure.KindNothingToCompose, failure.KindOf(err))
}

func TestValidationHappensBeforeSynthesis(t *testing.T) {
	tests := []struct {
		name     string
		messages []models.Message
		voices   voice.Assignment
	}{
		{"empty text", []models.Message{text("1", "hi", true, ""), text("2", "  ", false, "")}, testVoices},
		{"empty picture", []models.Message{{ID: "1", Type: models.MessagePicture}}, testVoices},
		{"unknown type", []models.Message{{ID: "1", Text: "hi", Type: "video"}}, testVoices},
		{"unresolved role", []models.Message{text("1", "hi", false, "")}, voice.Assignment{models.RoleSender: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			speech := &fakeSpeech{}
			c := New(Config{Speech: speech, Renderer: &fakeRenderer{}, Voices: tt.voices, Logger: zerolog.Nop()})

			_, err := c.Plan(context.Background(), tt.messages)
			assert.Equal(t, failure.KindConfig, failure.KindOf(err))
			assert.Empty(t, speech.calls)
		})
	}
}

func TestSynthesisFailureIsFatal(t *testing.T) {
	unavailable := failure.Wrap(failure.KindSynthesisUnavailable, "synthesize", errors.New("busy"))
	c := newComposer(&fakeSpeech{err: unavailable}, &fakeRenderer{})

	_, err := c.Compose(context.Background(), []models.Message{text("1", "hi", true, "")}, models.HeaderConfig{}, testFrame)
	assert.Equal(t, failure.KindSynthesisUnavailable, failure.KindOf(err))
}

func TestHeaderAndWindows(t *testing.T) {
	var messages []models.Message
	for i := 1; i <= 7; i++ {
		messages = append(messages, text(fmt.Sprint(i), fmt.Sprintf("line %d", i), i%2 == 1, ""))
	}

	renderer := &fakeRenderer{}
	_, err := newComposer(&fakeSpeech{}, renderer).Compose(context.Background(), messages, models.HeaderConfig{}, testFrame)
	require.NoError(t, err)
	require.Len(t, renderer.requests, 7)

	for i, req := range renderer.requests {
		assert.Equal(t, i < 5, req.ShowHeader, "message %d", i+1)
	}
	assert.Len(t, renderer.requests[4].Messages, 5)
	assert.Len(t, renderer.requests[5].Messages, 1)
	assert.Equal(t, "6", renderer.requests[5].Messages[0].ID)
	assert.Len(t, renderer.requests[6].Messages, 2)

	full := &fakeRenderer{}
	c := New(Config{Speech: &fakeSpeech{}, Renderer: full, Voices: testVoices, ChunkSize: -1, Logger: zerolog.Nop()})
	_, err = c.Compose(context.Background(), messages, models.HeaderConfig{}, testFrame)
	require.NoError(t, err)
	assert.Len(t, full.requests[6].Messages, 7)
	assert.False(t, full.requests[6].ShowHeader)
}

func TestTimelineIsGapless(t *testing.T) {
	durations := map[string]float64{}
	var messages []models.Message
	for i := 0; i < 12; i++ {
		body := fmt.Sprintf("message %d", i)
		durations[body] = 0.3 + float64(i)*0.17
		effect := ""
		if i%3 == 0 {
			effect = "vineboom"
		}
		messages = append(messages, text(fmt.Sprint(i), body, i%2 == 0, effect))
	}
	messages = append(messages, picture("p", "notification"))

	c := newComposer(&fakeSpeech{durations: durations}, &fakeRenderer{})
	plan, err := c.Plan(context.Background(), messages)
	require.NoError(t, err)
	tl, err := c.Materialize(context.Background(), messages, models.HeaderConfig{}, testFrame, plan)
	require.NoError(t, err)

	var sum float64
	for i, step := range tl.Steps {
		assert.InDelta(t, plan.Durations[i], step.Duration, 1e-9)
		assert.InDelta(t, sum, step.Start, 1e-9)
		if i+1 < len(tl.Steps) {
			assert.InDelta(t, step.End(), tl.Steps[i+1].Start, 1e-9)
		}
		sum += step.Duration
	}
	assert.InDelta(t, plan.Total, sum, 1e-9)
	assert.InDelta(t, plan.Total, tl.Duration, 1e-9)
}

func TestCancelledRenderAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newComposer(&fakeSpeech{}, &fakeRenderer{})
	messages := []models.Message{text("1", "hi", true, "")}

	plan, err := c.Plan(ctx, messages)
	require.NoError(t, err)
	cancel()

	_, err = c.Materialize(ctx, messages, models.HeaderConfig{}, testFrame, plan)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAccumulatorOnlyMovesForward(t *testing.T) {
	var acc Accumulator
	assert.Zero(t, acc.Advance(1.5))
	assert.InDelta(t, 1.5, acc.Advance(-3), 1e-9)
	assert.InDelta(t, 1.5, acc.Current(), 1e-9)
}
