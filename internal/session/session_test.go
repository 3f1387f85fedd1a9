// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

func TestCreate_Layout(t *testing.T) {
	base := filepath.Join(t.TempDir(), "results")

	l, err := Create(base, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "recording_20240309_140507"), l.Root())
	assert.Equal(t, filepath.Join(l.Root(), "camera"), l.CameraDir())
	assert.Equal(t, filepath.Join(l.Root(), "positioning"), l.PositioningDir())
	assert.Equal(t, "recording_20240309_140507", l.ID())
	assert.True(t, l.CreatedAt().Equal(fixedNow))

	for _, dir := range []string{l.Root(), l.CameraDir(), l.PositioningDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}
}

func TestCreate_SameSecondCollisionIsFatal(t *testing.T) {
	base := t.TempDir()

	_, err := Create(base, fixedNow)
	require.NoError(t, err)

	_, err = Create(base, fixedNow.Add(500*time.Millisecond))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDirectoryCreation))
	assert.True(t, errors.Is(err, os.ErrExist))
}

func TestCreate_NonDirectoryAtRootPath(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "recording_20240309_140507")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := Create(base, fixedNow)
	require.ErrorIs(t, err, ErrDirectoryCreation)

	// The existing file is not overwritten.
	data, err := os.ReadFile(blocker)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestCreate_BaseIsAFile(t *testing.T) {
	base := filepath.Join(t.TempDir(), "results")
	require.NoError(t, os.WriteFile(base, nil, 0o600))

	_, err := Create(base, fixedNow)
	require.ErrorIs(t, err, ErrDirectoryCreation)
}

func TestCreate_DefaultBaseIsResultsUnderCwd(t *testing.T) {
	wd := t.TempDir()
	t.Chdir(wd)

	l, err := Create("", fixedNow)
	require.NoError(t, err)

	// Resolve symlinks so macOS /private/var temp paths compare equal.
	want, err := filepath.EvalSymlinks(filepath.Join(wd, "results"))
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(filepath.Dir(l.Root()))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCreate_DistinctSecondsDoNotCollide(t *testing.T) {
	base := t.TempDir()

	a, err := Create(base, fixedNow)
	require.NoError(t, err)
	b, err := Create(base, fixedNow.Add(time.Second))
	require.NoError(t, err)
	assert.NotEqual(t, a.Root(), b.Root())
}

func TestDirFor(t *testing.T) {
	l, err := Create(t.TempDir(), fixedNow)
	require.NoError(t, err)

	dir, ok := l.DirFor("camera")
	assert.True(t, ok)
	assert.Equal(t, l.CameraDir(), dir)

	dir, ok = l.DirFor("positioning")
	assert.True(t, ok)
	assert.Equal(t, l.PositioningDir(), dir)

	_, ok = l.DirFor("lidar")
	assert.False(t, ok)
}
