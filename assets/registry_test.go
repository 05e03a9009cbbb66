package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/drewmudry/chatshorts-api/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry("/srv")

	bg, err := reg.Background("background_2")
	require.NoError(t, err)
	assert.Contains(t, bg.URL, "cloudinary")

	path, ok := reg.SoundEffect("vineboom")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join("/srv", "static", "sfx", "vineboom.mp3"), path)
}

func TestUnknownBackgroundIsConfigError(t *testing.T) {
	_, err := DefaultRegistry(".").Background("lava")
	require.Error(t, err)
	assert.Equal(t, failure.KindConfig, failure.KindOf(err))
}

func TestUnknownSoundEffectIsNoEffect(t *testing.T) {
	reg := DefaultRegistry(".")

	_, ok := reg.SoundEffect("airhorn")
	assert.False(t, ok)
	_, ok = reg.SoundEffect("")
	assert.False(t, ok)
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "assets.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
backgrounds:
  parkour:
    url: https://cdn.example.com/parkour.mp4
  local:
    path: clips/local.mp4
sound_effects:
  vineboom: sfx/vineboom.mp3
`), 0o644))

	reg, err := LoadRegistry(file)
	require.NoError(t, err)

	bg, err := reg.Background("local")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "clips", "local.mp4"), bg.Path)

	path, ok := reg.SoundEffect("vineboom")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "sfx", "vineboom.mp3"), path)
}

func TestLoadRegistryMissingFileUsesDefaults(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Len(t, reg.Backgrounds, 5)
	assert.Len(t, reg.SoundEffects, 4)
}

func TestLoadRegistryRejectsEmptyBackground(t *testing.T) {
	file := filepath.Join(t.TempDir(), "assets.yaml")
	require.NoError(t, os.WriteFile(file, []byte("backgrounds:\n  broken: {}\n"), 0o644))

	_, err := LoadRegistry(file)
	assert.Error(t, err)
}

func TestRegistryNames(t *testing.T) {
	reg := DefaultRegistry("/srv")
	assert.True(t, reg.HasBackground("background_3"))
	assert.False(t, reg.HasBackground("background_9"))
	assert.Equal(t, []string{"imessage_text", "notification", "rizz", "vineboom"}, reg.SoundEffectNames())
}
