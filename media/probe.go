package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Info describes a probed media file.
type Info struct {
	Duration float64
	Width    int
	Height   int
	HasAudio bool
}

// Prober reads media metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*Info, error)
}

// FFprobe probes files with the ffprobe binary.
type FFprobe struct {
	Path   string
	Runner Runner
}

// NewFFprobe returns a prober using the given binary (default "ffprobe").
func NewFFprobe(path string, runner Runner) *FFprobe {
	if path == "" {
		path = "ffprobe"
	}
	if runner == nil {
		runner = Exec{}
	}
	return &FFprobe{Path: path, Runner: runner}
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (p *FFprobe) Probe(ctx context.Context, path string) (*Info, error) {
	out, err := p.Runner.Run(ctx, p.Path,
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type,width,height,duration",
		"-of", "json",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (*Info, error) {
	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &Info{}
	if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	for _, s := range parsed.Streams {
		if s.CodecType == "video" && info.Width == 0 {
			info.Width = s.Width
			info.Height = s.Height
		}
		if s.CodecType == "audio" {
			info.HasAudio = true
		}
		if info.Duration == 0 {
			if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
				info.Duration = d
			}
		}
	}

	if info.Duration <= 0 {
		return nil, fmt.Errorf("ffprobe reported no duration")
	}
	return info, nil
}
