package composite

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/drewmudry/chatshorts-api/failure"
	"github.com/drewmudry/chatshorts-api/media"
	"github.com/rs/zerolog"
)

// TargetHeight is the height Enhance scales to.
const TargetHeight = 1080

// PostProcessor runs the optional passes over an encoded video.
type PostProcessor struct {
	Path   string
	Runner media.Runner
	Prober media.Prober
	Logger zerolog.Logger
}

func NewPostProcessor(path string, runner media.Runner, prober media.Prober, logger zerolog.Logger) *PostProcessor {
	if path == "" {
		path = "ffmpeg"
	}
	if runner == nil {
		runner = media.Exec{}
	}
	return &PostProcessor{
		Path:   path,
		Runner: runner,
		Prober: prober,
		Logger: logger.With().Str("component", "postprocess").Logger(),
	}
}

// Enhance rescales in to 1080p with an even width.
func (p *PostProcessor) Enhance(ctx context.Context, in, out string) error {
	info, err := p.Prober.Probe(ctx, in)
	if err != nil {
		return failure.Wrap(failure.KindEncode, "enhance", err)
	}
	if info.Height == 0 {
		return failure.New(failure.KindEncode, "enhance", "%s has no video stream", in)
	}

	width := EnhancedWidth(info.Width, info.Height)
	p.Logger.Info().Int("width", width).Int("height", TargetHeight).Str("in", in).Msg("enhancing video")

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", in,
		"-vf", fmt.Sprintf("scale=%d:%d:flags=lanczos", width, TargetHeight),
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "18",
		"-maxrate", "15M",
		"-bufsize", "15M",
		"-profile:v", "high",
		"-level", "4.1",
		"-movflags", "+faststart",
	}
	if info.HasAudio {
		args = append(args, "-c:a", "aac", "-b:a", "256k", "-ar", "48000")
	} else {
		args = append(args, "-an")
	}
	args = append(args, "-y", out)
	if _, err := p.Runner.Run(ctx, p.Path, args...); err != nil {
		return failure.Wrap(failure.KindEncode, "enhance", err)
	}
	return nil
}

// EnhancedWidth scales width to TargetHeight and rounds it up to even.
func EnhancedWidth(width, height int) int {
	w := int(float64(width) * float64(TargetHeight) / float64(height))
	return w + w%2
}

// SpeedUp plays in back factor times faster with motion interpolation.
func (p *PostProcessor) SpeedUp(ctx context.Context, in, out string, factor float64) error {
	if factor <= 0 {
		return failure.New(failure.KindConfig, "speed up", "invalid factor %v", factor)
	}
	info, err := p.Prober.Probe(ctx, in)
	if err != nil {
		return failure.Wrap(failure.KindEncode, "speed up", err)
	}
	p.Logger.Info().Float64("factor", factor).Bool("audio", info.HasAudio).Str("in", in).Msg("speeding up video")

	if _, err := p.Runner.Run(ctx, p.Path, SpeedUpArgs(in, out, factor, info.HasAudio)...); err != nil {
		return failure.Wrap(failure.KindEncode, "speed up", err)
	}
	return nil
}

// SpeedUpArgs builds the ffmpeg arguments for SpeedUp. The audio chain is
// only added when in has an audio stream.
func SpeedUpArgs(in, out string, factor float64, hasAudio bool) []string {
	filter := fmt.Sprintf(
		"[0:v]minterpolate=fps=%d:mi_mode=mci:mc_mode=aobmc:me_mode=bidir:vsbmc=1[v1];[v1]setpts=%s*PTS[v]",
		FPS, strconv.FormatFloat(1/factor, 'f', 6, 64),
	)
	maps := []string{"-map", "[v]"}
	if hasAudio {
		filter += ";[0:a]" + atempo(factor) + "[a]"
		maps = append(maps, "-map", "[a]")
	} else {
		maps = append(maps, "-an")
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", in,
		"-filter_complex", filter,
	}
	args = append(args, maps...)
	return append(args,
		"-c:v", "libx264",
		"-preset", "slow",
		"-crf", "18",
		"-tune", "film",
		"-profile:v", "high",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-r", strconv.Itoa(FPS),
		"-maxrate", "12M",
		"-bufsize", "24M",
		"-y", out,
	)
}

// atempo chains atempo filters so each stays within [0.5, 2].
func atempo(factor float64) string {
	var parts []string
	for factor > 2 {
		parts = append(parts, "atempo=2.0")
		factor /= 2
	}
	for factor < 0.5 {
		parts = append(parts, "atempo=0.5")
		factor /= 0.5
	}
	parts = append(parts, "atempo="+strconv.FormatFloat(factor, 'f', -1, 64))
	return strings.Join(parts, ",")
}
