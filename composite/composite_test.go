package composite

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/drewmudry/chatshorts-api/background"
	"github.com/drewmudry/chatshorts-api/failure"
	"github.com/drewmudry/chatshorts-api/media"
	"github.com/drewmudry/chatshorts-api/scratch"
	"github.com/drewmudry/chatshorts-api/snapshot"
	"github.com/drewmudry/chatshorts-api/timeline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	name string
	args []string
	err  error
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.name = name
	r.args = args
	return nil, r.err
}

type staticProber media.Info

func (p staticProber) Probe(ctx context.Context, path string) (*media.Info, error) {
	info := media.Info(p)
	return &info, nil
}

var frame = timeline.Frame{Width: 1080, Height: 1920}

func testTimeline() *timeline.Timeline {
	place := snapshot.Place(400, 200, frame.Width, frame.Height)
	return &timeline.Timeline{
		Steps: []timeline.Step{
			{
				Index: 0, Image: &snapshot.Image{PNG: []byte("png-0")}, Placement: place,
				Audio: []timeline.AudioClip{{Path: "hi.mp3"}},
				Start: 0, Duration: 1.09,
			},
			{
				Index: 2, Image: &snapshot.Image{PNG: []byte("png-2")}, Placement: place,
				Audio: []timeline.AudioClip{{Path: "vineboom.mp3"}, {Path: "yo.mp3", Offset: 0.1}},
				Start: 1.63, Duration: 1.39,
			},
		},
		Skipped:  []int{1},
		Duration: 3.02,
	}
}

func TestBuild(t *testing.T) {
	arena, err := scratch.New(t.TempDir())
	require.NoError(t, err)
	defer arena.Close()

	track := background.Track{Clip: background.Clip{Path: "bg.mp4", Duration: 10}, Offset: 2, Loops: 1, Duration: 3.02}
	c, err := Build(arena, track, testTimeline(), frame)
	require.NoError(t, err)

	require.Len(t, c.Overlays, 2)
	assert.InDelta(t, 1.63, c.Overlays[1].Start, 1e-9)
	assert.InDelta(t, 3.02, c.Overlays[1].End, 1e-9)
	data, err := os.ReadFile(c.Overlays[1].ImagePath)
	require.NoError(t, err)
	assert.Equal(t, "png-2", string(data))

	require.Len(t, c.Audio, 3)
	assert.Equal(t, AudioLayer{Path: "hi.mp3", Start: 0}, c.Audio[0])
	assert.Equal(t, "yo.mp3", c.Audio[2].Path)
	assert.InDelta(t, 1.73, c.Audio[2].Start, 1e-9)
}

func TestBuildRejectsShortBackground(t *testing.T) {
	arena, err := scratch.New(t.TempDir())
	require.NoError(t, err)
	defer arena.Close()

	_, err = Build(arena, background.Track{Duration: 2}, testTimeline(), frame)
	assert.Error(t, err)

	_, err = Build(arena, background.Track{Duration: 2}, &timeline.Timeline{}, frame)
	assert.True(t, failure.Is(err, failure.KindNothingToCompose))
}

func TestEncodeArgs(t *testing.T) {
	c := &Composition{
		Background: background.Track{Clip: background.Clip{Path: "bg.mp4", Duration: 10}, Offset: 2.5, Loops: 1, Duration: 3.02},
		Frame:      frame,
		Overlays: []Overlay{
			{ImagePath: "s0.png", Placement: snapshot.Placement{X: 81, Y: 240, Width: 918, Height: 459}, Start: 0, End: 1.09},
		},
		Audio:    []AudioLayer{{Path: "hi.mp3"}, {Path: "yo.mp3", Start: 1.73}},
		Duration: 3.02,
	}

	args := EncodeArgs(c, "out.mp4")
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-ss 2.500 -t 3.020 -i bg.mp4")
	assert.NotContains(t, joined, "-stream_loop")
	assert.Contains(t, joined, "-loop 1 -t 3.020 -i s0.png")
	assert.Contains(t, joined, "[1:v]scale=918:459:flags=lanczos[o1]")
	assert.Contains(t, joined, "[bg][o1]overlay=81:240:enable='between(t,0.000,1.090)'[v1]")
	assert.Contains(t, joined, "[2:a]adelay=0|0[a0]")
	assert.Contains(t, joined, "[3:a]adelay=1730|1730[a1]")
	assert.Contains(t, joined, "[a0][a1]amix=inputs=2:normalize=0:dropout_transition=0[aout]")
	assert.Contains(t, joined, "-map [v1] -map [aout]")
	assert.Contains(t, joined, "-crf 17")
	assert.Contains(t, joined, "-b:a 320k")
	assert.Equal(t, "out.mp4", args[len(args)-1])
}

func TestEncodeArgsLoopedSilent(t *testing.T) {
	c := &Composition{
		Background: background.Track{Clip: background.Clip{Path: "bg.mp4", Duration: 4}, Loops: 3, Duration: 11},
		Frame:      frame,
		Overlays:   []Overlay{{ImagePath: "s0.png", Placement: snapshot.Placement{Width: 10, Height: 10}, End: 11}},
		Duration:   11,
	}
	joined := strings.Join(EncodeArgs(c, "out.mp4"), " ")

	assert.Contains(t, joined, "-stream_loop 2 -t 11.000 -i bg.mp4")
	assert.NotContains(t, joined, "-ss")
	assert.NotContains(t, joined, "amix")
	assert.Contains(t, joined, "-an")
}

func TestEncodeWrapsFailure(t *testing.T) {
	runner := &recordingRunner{err: errors.New("exit status 1")}
	enc := NewFFmpegEncoder("/usr/bin/ffmpeg", runner, zerolog.Nop())

	err := enc.Encode(context.Background(), &Composition{Duration: 1}, "out.mp4")
	assert.True(t, failure.Is(err, failure.KindEncode))
	assert.Equal(t, "/usr/bin/ffmpeg", runner.name)
}

func TestEnhance(t *testing.T) {
	runner := &recordingRunner{}
	p := NewPostProcessor("", runner, staticProber{Width: 721, Height: 1280, HasAudio: true}, zerolog.Nop())

	require.NoError(t, p.Enhance(context.Background(), "in.mp4", "hd.mp4"))
	assert.Equal(t, "ffmpeg", runner.name)
	assert.Contains(t, runner.args, "scale=608:1080:flags=lanczos")
	assert.Contains(t, runner.args, "aac")
}

func TestEnhancedWidth(t *testing.T) {
	assert.Equal(t, 608, EnhancedWidth(1080, 1920))
	assert.Equal(t, 1920, EnhancedWidth(1920, 1080))
	assert.Equal(t, 0, EnhancedWidth(1, 1080)%2)
}

func TestSpeedUp(t *testing.T) {
	args := SpeedUpArgs("in.mp4", "fast.mp4", 1.5, true)
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "minterpolate=fps=60")
	assert.Contains(t, joined, "setpts=0.666667*PTS")
	assert.Contains(t, joined, "[0:a]atempo=1.5[a]")
	assert.Contains(t, joined, "-map [v] -map [a]")

	runner := &recordingRunner{}
	p := NewPostProcessor("", runner, nil, zerolog.Nop())
	assert.True(t, failure.Is(p.SpeedUp(context.Background(), "in", "out", 0), failure.KindConfig))
}

func TestPostProcessSilentComposition(t *testing.T) {
	// pictures without sound effects encode with -an
	c := &Composition{
		Background: background.Track{Clip: background.Clip{Path: "bg.mp4", Duration: 10}, Loops: 1, Duration: 1.08},
		Frame:      frame,
		Overlays:   []Overlay{{ImagePath: "s0.png", Placement: snapshot.Placement{Width: 10, Height: 10}, End: 0.54}},
		Duration:   1.08,
	}
	assert.Contains(t, EncodeArgs(c, "out.mp4"), "-an")

	runner := &recordingRunner{}
	p := NewPostProcessor("", runner, staticProber{Duration: 1.08, Width: 1080, Height: 1920}, zerolog.Nop())

	require.NoError(t, p.SpeedUp(context.Background(), "out.mp4", "fast.mp4", 1.5))
	joined := strings.Join(runner.args, " ")
	assert.NotContains(t, joined, "[0:a]")
	assert.NotContains(t, joined, "[a]")
	assert.Contains(t, joined, "-map [v] -an")

	require.NoError(t, p.Enhance(context.Background(), "out.mp4", "hd.mp4"))
	assert.Contains(t, runner.args, "-an")
	assert.NotContains(t, runner.args, "aac")
}

func TestAtempoChain(t *testing.T) {
	assert.Equal(t, "atempo=1.5", atempo(1.5))
	assert.Equal(t, "atempo=2.0,atempo=1.5", atempo(3))
	assert.Equal(t, "atempo=0.5,atempo=0.8", atempo(0.4))
}
