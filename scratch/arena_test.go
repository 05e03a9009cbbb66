package scratch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaWriteAndClose(t *testing.T) {
	root := t.TempDir()
	arena, err := New(root)
	require.NoError(t, err)

	path, err := arena.Write("voice_001.mp3", []byte("audio"))
	require.NoError(t, err)
	assert.Equal(t, arena.Dir(), filepath.Dir(path))

	outside := filepath.Join(root, "download.mp4")
	require.NoError(t, os.WriteFile(outside, []byte("video"), 0o644))
	arena.Track(outside)

	require.NoError(t, arena.Close())

	_, err = os.Stat(arena.Dir())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(outside)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, arena.Close())
}

func TestArenaWriteAfterClose(t *testing.T) {
	arena, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, arena.Close())

	_, err = arena.Write("late.png", []byte{1})
	assert.Error(t, err)
}

func TestArenasAreIsolated(t *testing.T) {
	root := t.TempDir()
	a, err := New(root)
	require.NoError(t, err)
	b, err := New(root)
	require.NoError(t, err)
	defer b.Close()

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Dir(), b.Dir())

	_, err = b.Write("step.png", []byte{1})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	_, err = os.Stat(b.Path("step.png"))
	assert.NoError(t, err)
}

func TestPathStripsDirectories(t *testing.T) {
	arena, err := New(t.TempDir())
	require.NoError(t, err)
	defer arena.Close()

	assert.Equal(t, filepath.Join(arena.Dir(), "x.png"), arena.Path("../../x.png"))
}
