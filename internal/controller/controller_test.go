// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/rigrec/internal/config"
	"github.com/ManuGH/rigrec/internal/device"
	"github.com/ManuGH/rigrec/internal/device/camera"
	"github.com/ManuGH/rigrec/internal/device/positioning"
	"github.com/ManuGH/rigrec/internal/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local) }

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Default()
	cfg.BaseDir = t.TempDir()
	cfg.Camera.Driver = config.DriverSim
	cfg.Positioning.Driver = config.DriverSim
	cfg.Camera.GrabInterval = time.Millisecond
	cfg.Positioning.PollInterval = time.Millisecond
	return cfg
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newController(t *testing.T, cfg config.AppConfig, drivers Drivers) (*Controller, *syncBuffer) {
	t.Helper()
	logs := &syncBuffer{}
	logger := zerolog.New(logs)
	c, err := New(Options{Config: cfg, Drivers: drivers, Logger: &logger, Now: fixedNow})
	require.NoError(t, err)
	return c, logs
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func TestController_CameraStartFailureIsIsolated(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testConfig(t)
	cfg.Positioning.Enabled = false
	cams := camera.NewSimDriver(2)
	cams.FailRecording = map[string]bool{"1002": true}

	c, logs := newController(t, cfg, Drivers{Camera: cams})

	n, err := c.DiscoverAndOpen(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	retained := c.Retained()
	require.Len(t, retained, 1)
	assert.Equal(t, "1001", retained[0].Descriptor().ID)
	assert.Equal(t, device.StateRecording, retained[0].State())

	c.BeginAll()
	assert.Equal(t, StateActive, c.State())
	require.Eventually(t, func() bool { return retained[0].Status().Acquired > 0 }, 2*time.Second, time.Millisecond)
	require.NoError(t, c.StopAll())

	files := listFiles(t, c.Layout().Root())
	assert.Equal(t, []string{"camera/camera_1001.sim"}, files)
	assert.Equal(t, 1, cams.Closes("1002"), "failed camera handle released during discovery")
	assert.Contains(t, logs.String(), `"event":"device.failed"`)
	assert.Contains(t, logs.String(), `"device":"1002"`)
	assert.True(t, c.Recorded())
}

func TestController_PositioningOnly(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testConfig(t)
	pos := positioning.NewSimDriver()
	c, _ := newController(t, cfg, Drivers{Camera: camera.NewSimDriver(0), Positioning: pos})

	n, err := c.DiscoverAndOpen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c.BeginAll()
	require.Eventually(t, func() bool { return pos.Calls() >= 2 }, 2*time.Second, time.Millisecond)
	require.NoError(t, c.StopAll())

	assert.Equal(t, []string{"positioning/positioning_data.json"}, listFiles(t, c.Layout().Root()))
	assert.Equal(t, 1, pos.Closes())
}

func TestController_RetainedSubsetOfDiscovered(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	tests := []struct {
		name      string
		cameras   int
		failOpen  []string
		failStart []string
		posFail   bool
	}{
		{name: "all good", cameras: 3},
		{name: "one open failure", cameras: 3, failOpen: []string{"1002"}},
		{name: "mixed failures", cameras: 4, failOpen: []string{"1001"}, failStart: []string{"1004"}, posFail: true},
		{name: "only positioning fails", cameras: 1, posFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cams := camera.NewSimDriver(tt.cameras)
			cams.FailOpen = map[string]bool{}
			cams.FailRecording = map[string]bool{}
			for _, s := range tt.failOpen {
				cams.FailOpen[s] = true
			}
			for _, s := range tt.failStart {
				cams.FailRecording[s] = true
			}
			pos := positioning.NewSimDriver()
			pos.FailInit = tt.posFail

			c, logs := newController(t, testConfig(t), Drivers{Camera: cams, Positioning: pos})
			n, err := c.DiscoverAndOpen(context.Background())
			require.NoError(t, err)

			discovered := tt.cameras + 1
			failures := len(tt.failOpen) + len(tt.failStart)
			if tt.posFail {
				failures++
			}
			assert.LessOrEqual(t, n, discovered)
			assert.Equal(t, discovered-failures, n)
			for _, r := range c.Retained() {
				assert.Equal(t, device.StateRecording, r.State(), r.Descriptor().String())
			}

			snap := c.Status()
			require.Len(t, snap.Dropped, failures)
			for _, d := range snap.Dropped {
				assert.Equal(t, device.StateFailed, d.State)
				assert.NotEmpty(t, d.Error, "dropped device %s has no cause", d.ID)
			}
			assert.Equal(t, failures, strings.Count(logs.String(), `"event":"device.failed"`))

			require.NoError(t, c.StopAll())
		})
	}
}

func TestController_DirectoriesExistBeforeOpen(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testConfig(t)
	cfg.Positioning.Enabled = false
	cams := camera.NewSimDriver(2)

	var c *Controller
	var checked int
	cams.BeforeOpen = func(device.Descriptor) {
		checked++
		for _, dir := range []string{c.Layout().Root(), c.Layout().CameraDir(), c.Layout().PositioningDir()} {
			info, err := os.Stat(dir)
			if assert.NoError(t, err) {
				assert.True(t, info.IsDir())
			}
		}
	}

	c, _ = newController(t, cfg, Drivers{Camera: cams})
	_, err := c.DiscoverAndOpen(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.StopAll())
	assert.Equal(t, 2, checked)
}

func TestController_SameSecondSessionCollision(t *testing.T) {
	cfg := testConfig(t)
	cams := camera.NewSimDriver(1)

	_, err := New(Options{Config: cfg, Drivers: Drivers{Camera: cams}, Now: fixedNow})
	require.NoError(t, err)

	_, err = New(Options{Config: cfg, Drivers: Drivers{Camera: cams}, Now: fixedNow})
	require.ErrorIs(t, err, session.ErrDirectoryCreation)
	assert.Zero(t, cams.Opens("1001"), "no device is touched when the layout fails")
}

func TestController_StopAllIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cams := camera.NewSimDriver(2)
	pos := positioning.NewSimDriver()
	c, _ := newController(t, testConfig(t), Drivers{Camera: cams, Positioning: pos})

	_, err := c.DiscoverAndOpen(context.Background())
	require.NoError(t, err)
	c.BeginAll()

	require.NoError(t, c.StopAll())
	require.NoError(t, c.StopAll())

	assert.Equal(t, 1, cams.Closes("1001"))
	assert.Equal(t, 1, cams.Closes("1002"))
	assert.Equal(t, 1, pos.Closes())
	assert.Equal(t, StateIdle, c.State())
	for _, r := range c.Retained() {
		assert.Equal(t, device.StateStopped, r.State())
	}
}

func TestController_ConcurrentStopAllWaitsForRelease(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cams := camera.NewSimDriver(2)
	cams.ReleaseDelay = map[string]time.Duration{
		"1001": 150 * time.Millisecond,
		"1002": 150 * time.Millisecond,
	}
	c, _ := newController(t, testConfig(t), Drivers{Camera: cams})

	_, err := c.DiscoverAndOpen(context.Background())
	require.NoError(t, err)
	c.BeginAll()

	first := make(chan error, 1)
	go func() { first <- c.StopAll() }()
	require.Eventually(t, func() bool { return c.State() == StateStopping }, time.Second, time.Millisecond)

	require.NoError(t, c.StopAll())
	assert.Equal(t, 1, cams.Closes("1001"), "second caller returned before release")
	assert.Equal(t, 1, cams.Closes("1002"), "second caller returned before release")
	for _, r := range c.Retained() {
		assert.Equal(t, device.StateStopped, r.State())
	}
	require.NoError(t, <-first)
}

func TestController_StopLatencyIsMaxNotSum(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cams := camera.NewSimDriver(2)
	cams.ReleaseDelay = map[string]time.Duration{
		"1001": 100 * time.Millisecond,
		"1002": 150 * time.Millisecond,
	}
	pos := positioning.NewSimDriver()
	pos.ReleaseDelay = 200 * time.Millisecond

	c, _ := newController(t, testConfig(t), Drivers{Camera: cams, Positioning: pos})
	n, err := c.DiscoverAndOpen(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
	c.BeginAll()

	start := time.Now()
	require.NoError(t, c.StopAll())
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, 400*time.Millisecond, "sum of release delays is 450ms")
}

func TestController_NoDevices(t *testing.T) {
	tests := []struct {
		name    string
		drivers Drivers
	}{
		{name: "nothing attached", drivers: Drivers{Camera: camera.NewSimDriver(0), Positioning: &positioning.SimDriver{}}},
		{name: "no drivers", drivers: Drivers{}},
		{name: "everything fails", drivers: Drivers{
			Camera:      &camera.SimDriver{Serials: []string{"1001"}, FailOpen: map[string]bool{"1001": true}},
			Positioning: &positioning.SimDriver{Ports: []string{"sim0"}, FailInit: true},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newController(t, testConfig(t), tt.drivers)

			n, err := c.DiscoverAndOpen(context.Background())
			require.ErrorIs(t, err, ErrNoDevices)
			assert.Zero(t, n)
			assert.Equal(t, StateIdle, c.State())
			assert.False(t, c.Recorded())

			assert.ErrorIs(t, c.Run(context.Background()), ErrNoDevices)
			assert.NoError(t, c.StopAll())
		})
	}
}

func TestController_EnumerationErrorDoesNotAbortOtherFamily(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cams := &camera.SimDriver{EnumerateErr: errors.New("v4l2 unavailable")}
	pos := positioning.NewSimDriver()
	c, logs := newController(t, testConfig(t), Drivers{Camera: cams, Positioning: pos})

	n, err := c.DiscoverAndOpen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, logs.String(), "controller.enumerate_failed")
	require.NoError(t, c.StopAll())
}

func TestController_SinglePositioningSensor(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	pos := &positioning.SimDriver{Ports: []string{"sim0", "sim1", "sim2"}}
	cfg := testConfig(t)
	c, _ := newController(t, cfg, Drivers{Positioning: pos})

	n, err := c.DiscoverAndOpen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, pos.Inits())
	assert.Len(t, c.Status().Skipped, 2)
	require.NoError(t, c.StopAll())
}

func TestController_PositioningDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Positioning.Enabled = false
	pos := positioning.NewSimDriver()
	c, _ := newController(t, cfg, Drivers{Camera: camera.NewSimDriver(0), Positioning: pos})

	_, err := c.DiscoverAndOpen(context.Background())
	require.ErrorIs(t, err, ErrNoDevices)
	assert.Zero(t, pos.Inits())
}

func TestController_RunUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cams := camera.NewSimDriver(2)
	pos := positioning.NewSimDriver()
	c, _ := newController(t, testConfig(t), Drivers{Camera: cams, Positioning: pos})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return c.State() == StateActive }, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return pos.Calls() > 0 }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.True(t, c.Recorded())
	assert.Equal(t, 1, cams.Closes("1001"))
	assert.Equal(t, 1, pos.Closes())

	_, err := c.DiscoverAndOpen(context.Background())
	assert.ErrorIs(t, err, ErrBusy, "a controller records one session only")
}

func TestController_StopBeforeBeginReleases(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cams := camera.NewSimDriver(1)
	c, _ := newController(t, testConfig(t), Drivers{Camera: cams})

	_, err := c.DiscoverAndOpen(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.StopAll())
	assert.Equal(t, 1, cams.Closes("1001"))
}

func TestController_InvalidResolution(t *testing.T) {
	cfg := testConfig(t)
	cfg.Camera.Resolution = "8K"

	_, err := New(Options{Config: cfg, Now: fixedNow})
	require.Error(t, err)

	entries, err := os.ReadDir(cfg.BaseDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no session is created for invalid settings")
}

func TestEnumerate(t *testing.T) {
	descs, err := Enumerate(context.Background(), Drivers{
		Camera:      camera.NewSimDriver(2),
		Positioning: positioning.NewSimDriver(),
	})
	require.NoError(t, err)

	var ids []string
	for _, d := range descs {
		ids = append(ids, fmt.Sprintf("%s:%s", d.Family, d.ID))
	}
	assert.Equal(t, []string{"camera:1001", "camera:1002", "positioning:sim0"}, ids)

	_, err = Enumerate(context.Background(), Drivers{Camera: &camera.SimDriver{EnumerateErr: errors.New("boom")}})
	assert.ErrorContains(t, err, "camera: boom")
}

func TestDriversFromConfig(t *testing.T) {
	cfg := config.Default()
	d, err := DriversFromConfig(cfg)
	require.NoError(t, err)
	assert.IsType(t, &camera.FFmpegDriver{}, d.Camera)
	assert.IsType(t, &positioning.SerialDriver{}, d.Positioning)

	cfg.Camera.Driver = config.DriverSim
	cfg.Positioning.Enabled = false
	d, err = DriversFromConfig(cfg)
	require.NoError(t, err)
	assert.IsType(t, &camera.SimDriver{}, d.Camera)
	assert.Nil(t, d.Positioning)

	cfg.Camera.Driver = "gstreamer"
	_, err = DriversFromConfig(cfg)
	assert.Error(t, err)
}
