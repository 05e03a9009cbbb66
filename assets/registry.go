// Package assets maps symbolic background and sound effect names to media.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/drewmudry/chatshorts-api/failure"
	"gopkg.in/yaml.v3"
)

// Background is a source clip for the looping video background. URL is
// downloaded when Path is empty or missing on disk.
type Background struct {
	URL  string `yaml:"url"`
	Path string `yaml:"path,omitempty"`
}

// Registry holds the known backgrounds and sound effects.
type Registry struct {
	Backgrounds  map[string]Background `yaml:"backgrounds"`
	SoundEffects map[string]string     `yaml:"sound_effects"`
}

// DefaultRegistry returns the built-in asset set. Sound effect paths are
// relative to baseDir.
func DefaultRegistry(baseDir string) *Registry {
	sfx := func(name string) string {
		return filepath.Join(baseDir, "static", "sfx", name)
	}
	return &Registry{
		Backgrounds: map[string]Background{
			"background":   {URL: "https://res.cloudinary.com/dokndhglh/video/upload/c_scale,h_1080,q_100/v1739342327/h3mqdaupaop1eprdcld3.mp4"},
			"background_1": {URL: "https://res.cloudinary.com/dokndhglh/video/upload/c_scale,h_1080,q_100/v1739342660/f1bhluhc6si77uapdawe_slowed_oq2v20.mp4"},
			"background_2": {URL: "https://res.cloudinary.com/dokndhglh/video/upload/c_scale,h_1080,q_100/v1739343309/dxo2rlb7kckps0fnfvv4_slowed_mmptbq.mp4"},
			"background_3": {URL: "https://res.cloudinary.com/dokndhglh/video/upload/c_scale,h_1080,q_100/v1739343390/pytgss2oi9idgch1xhrw_slowed_ku8hde.mp4"},
			"background_4": {URL: "https://res.cloudinary.com/dokndhglh/video/upload/v1739599641/Minecraft_Jump_and_Run_Gameplay_TIKTOK_Format_60fps_1440p_HD_No_Ads_No_Credits_3_-_Minecraft_Gameplay_1080p_h264_mute_youtube_online-video-cutter.com_1_eprmyf.mp4"},
		},
		SoundEffects: map[string]string{
			"vineboom":      sfx("vineboom.mp3"),
			"notification":  sfx("notification.mp3"),
			"rizz":          sfx("rizz.mp3"),
			"imessage_text": sfx("iMessage Text.mp3"),
		},
	}
}

// LoadRegistry reads a YAML registry. A missing file falls back to the
// defaults rooted at the file's directory. Relative sound effect and
// background paths are resolved against the file's directory.
func LoadRegistry(path string) (*Registry, error) {
	baseDir := filepath.Dir(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultRegistry(baseDir), nil
		}
		return nil, fmt.Errorf("read asset registry: %w", err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse asset registry %s: %w", path, err)
	}
	if reg.Backgrounds == nil {
		reg.Backgrounds = map[string]Background{}
	}
	if reg.SoundEffects == nil {
		reg.SoundEffects = map[string]string{}
	}

	for name, p := range reg.SoundEffects {
		if p != "" && !filepath.IsAbs(p) {
			reg.SoundEffects[name] = filepath.Join(baseDir, p)
		}
	}
	for name, bg := range reg.Backgrounds {
		if bg.Path != "" && !filepath.IsAbs(bg.Path) {
			bg.Path = filepath.Join(baseDir, bg.Path)
			reg.Backgrounds[name] = bg
		}
		if bg.URL == "" && bg.Path == "" {
			return nil, fmt.Errorf("background %q has neither url nor path", name)
		}
	}
	return &reg, nil
}

// Background looks up a background clip. Unknown names are configuration
// errors.
func (r *Registry) Background(name string) (Background, error) {
	bg, ok := r.Backgrounds[name]
	if !ok {
		return Background{}, failure.New(failure.KindConfig, "background", "invalid background video: %s", name)
	}
	return bg, nil
}

// SoundEffect returns the local path of a sound effect. Unknown or empty
// names report false and are treated as "no effect".
func (r *Registry) SoundEffect(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	path, ok := r.SoundEffects[name]
	if !ok || path == "" {
		return "", false
	}
	return path, true
}

// HasBackground reports whether name is a known background.
func (r *Registry) HasBackground(name string) bool {
	_, ok := r.Backgrounds[name]
	return ok
}

// SoundEffectNames returns the known sound effect names, sorted.
func (r *Registry) SoundEffectNames() []string {
	names := make([]string, 0, len(r.SoundEffects))
	for name := range r.SoundEffects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
