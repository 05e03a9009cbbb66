package composite

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/drewmudry/chatshorts-api/failure"
	"github.com/drewmudry/chatshorts-api/media"
	"github.com/rs/zerolog"
)

// FPS is the output frame rate.
const FPS = 60

// FFmpegEncoder encodes compositions with a single ffmpeg invocation.
type FFmpegEncoder struct {
	Path   string
	Runner media.Runner
	Logger zerolog.Logger
}

func NewFFmpegEncoder(path string, runner media.Runner, logger zerolog.Logger) *FFmpegEncoder {
	if path == "" {
		path = "ffmpeg"
	}
	if runner == nil {
		runner = media.Exec{}
	}
	return &FFmpegEncoder{
		Path:   path,
		Runner: runner,
		Logger: logger.With().Str("component", "encoder").Logger(),
	}
}

func (e *FFmpegEncoder) Encode(ctx context.Context, c *Composition, out string) error {
	args := EncodeArgs(c, out)
	e.Logger.Info().
		Int("overlays", len(c.Overlays)).
		Int("audio", len(c.Audio)).
		Float64("duration", c.Duration).
		Str("out", out).
		Msg("encoding composition")

	if _, err := e.Runner.Run(ctx, e.Path, args...); err != nil {
		return failure.Wrap(failure.KindEncode, "encode", err)
	}
	return nil
}

// EncodeArgs builds the ffmpeg arguments for c. Input 0 is the background,
// followed by one input per overlay and one per audio layer.
func EncodeArgs(c *Composition, out string) []string {
	total := seconds(c.Duration)
	bg := c.Background

	args := []string{"-hide_banner", "-loglevel", "error"}
	if bg.Looped() {
		args = append(args, "-stream_loop", strconv.Itoa(bg.Loops-1))
	}
	if bg.Offset > 0 {
		args = append(args, "-ss", seconds(bg.Offset))
	}
	args = append(args, "-t", seconds(bg.Duration), "-i", bg.Clip.Path)

	for _, o := range c.Overlays {
		args = append(args, "-loop", "1", "-t", total, "-i", o.ImagePath)
	}
	for _, a := range c.Audio {
		args = append(args, "-i", a.Path)
	}

	var filters []string
	video := "[0:v]"
	if c.Frame.Width > 0 && c.Frame.Height > 0 {
		filters = append(filters, fmt.Sprintf("[0:v]scale=%d:%d,setsar=1[bg]", c.Frame.Width, c.Frame.Height))
		video = "[bg]"
	}
	for i, o := range c.Overlays {
		in := i + 1
		label := fmt.Sprintf("[v%d]", in)
		filters = append(filters,
			fmt.Sprintf("[%d:v]scale=%d:%d:flags=lanczos[o%d]", in, o.Placement.Width, o.Placement.Height, in),
			fmt.Sprintf("%s[o%d]overlay=%d:%d:enable='between(t,%s,%s)'%s",
				video, in, o.Placement.X, o.Placement.Y, seconds(o.Start), seconds(o.End), label),
		)
		video = label
	}

	audio := ""
	if len(c.Audio) > 0 {
		var mix strings.Builder
		for j, a := range c.Audio {
			in := 1 + len(c.Overlays) + j
			ms := int64(math.Round(a.Start * 1000))
			filters = append(filters, fmt.Sprintf("[%d:a]adelay=%d|%d[a%d]", in, ms, ms, j))
			fmt.Fprintf(&mix, "[a%d]", j)
		}
		filters = append(filters, fmt.Sprintf("%samix=inputs=%d:normalize=0:dropout_transition=0[aout]", mix.String(), len(c.Audio)))
		audio = "[aout]"
	}

	if len(filters) > 0 {
		args = append(args, "-filter_complex", strings.Join(filters, ";"))
	}
	if video == "[0:v]" {
		video = "0:v"
	}
	args = append(args, "-map", video)
	if audio != "" {
		args = append(args, "-map", audio)
	}

	args = append(args,
		"-c:v", "libx264",
		"-preset", "slow",
		"-crf", "17",
		"-pix_fmt", "yuv420p",
		"-profile:v", "high",
		"-r", strconv.Itoa(FPS),
		"-movflags", "+faststart",
	)
	if audio != "" {
		args = append(args, "-c:a", "aac", "-b:a", "320k")
	} else {
		args = append(args, "-an")
	}
	args = append(args, "-t", total, "-y", out)
	return args
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
