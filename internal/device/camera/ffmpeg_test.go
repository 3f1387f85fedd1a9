// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build linux

package camera

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/rigrec/internal/device"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFFmpeg writes the output file named by the last argument and emits
// progress blocks until SIGTERM.
const fakeFFmpeg = `#!/bin/sh
for last; do :; done
echo recorded > "$last"
trap 'printf "progress=end\n"; exit 0' TERM
while true; do
  printf 'frame=1\nout_time_ms=1000\nprogress=continue\n'
  sleep 0.05
done
`

const failingFFmpeg = `#!/bin/sh
echo "video4linux2: cannot open device" >&2
exit 1
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func testFFmpegDriver(t *testing.T, script string) (*FFmpegDriver, device.Descriptor) {
	t.Helper()
	drv := NewFFmpegDriver(writeScript(t, script), "mkv")
	drv.StartTimeout = 3 * time.Second
	drv.GrabTimeout = time.Second
	drv.StopGrace = 2 * time.Second
	drv.Logger = zerolog.Nop()

	node := filepath.Join(t.TempDir(), "video0")
	require.NoError(t, os.WriteFile(node, nil, 0o644))
	return drv, device.Descriptor{ID: "1001", Family: device.FamilyCamera, Path: node}
}

func TestFFmpegDriver_Args(t *testing.T) {
	drv := NewFFmpegDriver("ffmpeg", "mkv")
	res, _ := ParseResolution("HD1200")
	args := drv.Args("/dev/video0", Settings{Resolution: res, FPS: 15}, "/out/camera_1001.mkv")

	assert.Subset(t, args, []string{"-f", "v4l2", "-framerate", "15", "-video_size", "3840x1200", "-i", "/dev/video0", "-progress", "pipe:1"})
	assert.Equal(t, "/out/camera_1001.mkv", args[len(args)-1])
	assert.Equal(t, "-n", args[len(args)-2])
	assert.NotContains(t, args, "-y")
	assert.Equal(t, "mkv", drv.Extension())
}

func TestFFmpegDriver_RecordAndClose(t *testing.T) {
	drv, desc := testFFmpegDriver(t, fakeFFmpeg)
	out := filepath.Join(t.TempDir(), "camera_1001.mkv")

	h, err := drv.Open(context.Background(), desc, testSettings(t))
	require.NoError(t, err)
	require.NoError(t, h.EnableRecording(out))

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Grab(context.Background()))
	}

	require.NoError(t, h.Close())
	require.NoError(t, h.Close(), "close is idempotent")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "recorded\n", string(data))
}

func TestFFmpegDriver_EarlyExitFailsStart(t *testing.T) {
	drv, desc := testFFmpegDriver(t, failingFFmpeg)

	h, err := drv.Open(context.Background(), desc, testSettings(t))
	require.NoError(t, err)

	err = h.EnableRecording(filepath.Join(t.TempDir(), "out.mkv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot open device")
	assert.NoError(t, h.Close())
}

func TestFFmpegDriver_OpenMissingNode(t *testing.T) {
	drv, desc := testFFmpegDriver(t, fakeFFmpeg)
	desc.Path = filepath.Join(t.TempDir(), "absent")

	_, err := drv.Open(context.Background(), desc, testSettings(t))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFFmpegDriver_OpenMissingBinary(t *testing.T) {
	drv, desc := testFFmpegDriver(t, fakeFFmpeg)
	drv.Bin = filepath.Join(t.TempDir(), "no-ffmpeg")

	_, err := drv.Open(context.Background(), desc, testSettings(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg binary")
}

func TestFFmpegDriver_RefusesExistingOutput(t *testing.T) {
	drv, desc := testFFmpegDriver(t, fakeFFmpeg)
	out := filepath.Join(t.TempDir(), "camera_a_b.mkv")
	require.NoError(t, os.WriteFile(out, []byte("first\n"), 0o644))

	h, err := drv.Open(context.Background(), desc, testSettings(t))
	require.NoError(t, err)
	err = h.EnableRecording(out)
	assert.ErrorIs(t, err, os.ErrExist)
	assert.NoError(t, h.Close())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(data))
}

func TestFFmpegDriver_GrabHonoursContext(t *testing.T) {
	drv, desc := testFFmpegDriver(t, fakeFFmpeg)
	drv.GrabTimeout = time.Hour

	h, err := drv.Open(context.Background(), desc, testSettings(t))
	require.NoError(t, err)
	require.NoError(t, h.EnableRecording(filepath.Join(t.TempDir(), "out.mkv")))
	defer func() { _ = h.Close() }()

	// Drain pending progress so the next Grab blocks.
	_ = h.Grab(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Either a fresh progress block or the cancelled context wins; neither blocks.
	done := make(chan struct{})
	go func() {
		_ = h.Grab(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Grab did not return on cancelled context")
	}
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(8)
	_, _ = tb.Write([]byte("0123456789"))
	assert.Equal(t, "23456789", tb.String())
	_, _ = tb.Write([]byte("ab"))
	assert.Equal(t, "456789ab", tb.String())
}
