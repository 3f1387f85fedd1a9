// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package controller orchestrates one recording session across every
// attached camera and the positioning sensor.
//
// A Controller creates the session layout at construction, then discovers,
// opens and arms devices, runs their capture loops and finally stops them.
// Device failures are isolated: a camera that fails to open is dropped and
// the session continues with the rest.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/rigrec/internal/config"
	"github.com/ManuGH/rigrec/internal/device"
	"github.com/ManuGH/rigrec/internal/device/camera"
	"github.com/ManuGH/rigrec/internal/device/positioning"
	"github.com/ManuGH/rigrec/internal/log"
	"github.com/ManuGH/rigrec/internal/metrics"
	"github.com/ManuGH/rigrec/internal/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoDevices means discovery retained no recorder.
	ErrNoDevices = errors.New("nothing to record: no device could be opened")
	// ErrBusy is returned when discovery is requested outside the idle state.
	ErrBusy = errors.New("controller is not idle")
)

// State is the controller's lifecycle position.
type State string

const (
	StateIdle        State = "idle"
	StateDiscovering State = "discovering"
	StateActive      State = "active"
	StateStopping    State = "stopping"
)

// Drivers selects the driver for each device family. A nil driver disables
// that family.
type Drivers struct {
	Camera      camera.Driver
	Positioning positioning.Driver
}

// Options configures a Controller.
type Options struct {
	Config  config.AppConfig
	Drivers Drivers
	// Logger defaults to the "controller" component logger.
	Logger *zerolog.Logger
	// Now defaults to time.Now and names the session root.
	Now func() time.Time
}

// Controller owns one session and the recorders bound to it.
type Controller struct {
	cfg      config.AppConfig
	drivers  Drivers
	settings camera.Settings
	layout   *session.Layout
	runID    string
	logger   zerolog.Logger

	mu        sync.Mutex
	state     State
	retained  []device.Recorder
	dropped   []device.Recorder
	skipped   []device.Descriptor
	recorded  bool
	released  bool
	stopDone  chan struct{}
	stopErr   error
	startedAt time.Time
}

// New validates camera settings and creates the session layout. No driver
// is touched. A layout failure wraps session.ErrDirectoryCreation.
func New(opts Options) (*Controller, error) {
	res, err := camera.ParseResolution(opts.Config.Camera.Resolution)
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	layout, err := session.Create(opts.Config.BaseDir, now())
	if err != nil {
		return nil, err
	}

	logger := log.WithComponent("controller")
	if opts.Logger != nil {
		logger = opts.Logger.With().Str(log.FieldComponent, "controller").Logger()
	}
	runID := uuid.NewString()
	logger = logger.With().
		Str(log.FieldRunID, runID).
		Str(log.FieldSessionID, layout.ID()).
		Logger()

	return &Controller{
		cfg:      opts.Config,
		drivers:  opts.Drivers,
		settings: camera.Settings{Resolution: res, FPS: opts.Config.Camera.FPS},
		layout:   layout,
		runID:    runID,
		logger:   logger,
		state:    StateIdle,
	}, nil
}

// Layout returns the session layout.
func (c *Controller) Layout() *session.Layout { return c.layout }

// RunID returns the identifier attached to every log line of this run.
func (c *Controller) RunID() string { return c.runID }

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()
	c.logger.Debug().
		Str(log.FieldEvent, "controller.state").
		Str(log.FieldOldState, string(prev)).
		Str(log.FieldNewState, string(next)).
		Msg("controller state changed")
}

// Recorded reports whether at least one device reached recording.
func (c *Controller) Recorded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recorded
}

// Retained returns the recorders that opened and armed successfully.
func (c *Controller) Retained() []device.Recorder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]device.Recorder(nil), c.retained...)
}

// DiscoverAndOpen enumerates cameras then the positioning sensor, opens and
// arms each, and retains those where both steps succeed. At most one
// positioning recorder is retained. It returns the retained count, or
// ErrNoDevices when nothing could be armed.
func (c *Controller) DiscoverAndOpen(ctx context.Context) (int, error) {
	c.mu.Lock()
	if c.state != StateIdle || c.released {
		c.mu.Unlock()
		return 0, ErrBusy
	}
	c.mu.Unlock()
	c.setState(StateDiscovering)

	ctx = log.ContextWithRunID(ctx, c.runID)
	discovered := 0

	if c.drivers.Camera != nil {
		descs := c.enumerate(ctx, device.FamilyCamera, c.drivers.Camera.Enumerate)
		discovered += len(descs)
		for _, desc := range descs {
			if ctx.Err() != nil {
				break
			}
			rec := camera.NewRecorder(desc, c.layout.CameraDir(), c.drivers.Camera, c.settings,
				c.cfg.Camera.GrabInterval, c.logger)
			c.attempt(ctx, rec)
		}
	}

	if c.drivers.Positioning != nil && c.cfg.Positioning.Enabled {
		descs := c.enumerate(ctx, device.FamilyPositioning, c.drivers.Positioning.Enumerate)
		discovered += len(descs)
		haveSensor := false
		for _, desc := range descs {
			if ctx.Err() != nil {
				break
			}
			if haveSensor {
				c.skip(desc)
				continue
			}
			rec := positioning.NewRecorder(desc, c.layout.PositioningDir(), c.drivers.Positioning,
				c.cfg.Positioning.PollInterval, c.logger)
			haveSensor = c.attempt(ctx, rec)
		}
	}

	c.mu.Lock()
	retained := len(c.retained)
	dropped := len(c.dropped)
	c.mu.Unlock()

	if retained == 0 {
		c.setState(StateIdle)
		c.logger.Warn().
			Str(log.FieldEvent, "controller.no_devices").
			Int("discovered", discovered).
			Int("dropped", dropped).
			Msg("nothing to record")
		return 0, fmt.Errorf("%w (discovered %d, dropped %d)", ErrNoDevices, discovered, dropped)
	}

	c.logger.Info().
		Str(log.FieldEvent, "controller.discovered").
		Int("discovered", discovered).
		Int("retained", retained).
		Int("dropped", dropped).
		Msg("devices armed")
	return retained, nil
}

func (c *Controller) enumerate(ctx context.Context, family device.Family, fn func(context.Context) ([]device.Descriptor, error)) []device.Descriptor {
	descs, err := fn(ctx)
	if err != nil {
		metrics.IncDeviceFailure(string(family), "enumerate")
		c.logger.Warn().Err(err).
			Str(log.FieldEvent, "controller.enumerate_failed").
			Str(log.FieldFamily, string(family)).
			Msg("device enumeration failed, continuing")
	}
	metrics.IncDevicesDiscovered(string(family), len(descs))
	return descs
}

// attempt opens then arms rec; it reports whether rec was retained.
func (c *Controller) attempt(ctx context.Context, rec device.Recorder) bool {
	ok := rec.Open(ctx) && rec.StartRecording(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.retained = append(c.retained, rec)
		c.recorded = true
	} else {
		c.dropped = append(c.dropped, rec)
	}
	return ok
}

func (c *Controller) skip(desc device.Descriptor) {
	metrics.IncDeviceFailure(string(desc.Family), "skipped")
	c.logger.Info().
		Str(log.FieldEvent, "controller.device_skipped").
		Str(log.FieldDevice, desc.ID).
		Str(log.FieldFamily, string(desc.Family)).
		Msg("positioning sensor already recording, skipping additional port")

	c.mu.Lock()
	c.skipped = append(c.skipped, desc)
	c.mu.Unlock()
}

// BeginAll starts the capture loop of every retained recorder.
func (c *Controller) BeginAll() {
	c.mu.Lock()
	if c.state != StateDiscovering || len(c.retained) == 0 {
		st := c.state
		c.mu.Unlock()
		c.logger.Warn().Str("state", string(st)).Msg("begin ignored: nothing armed")
		return
	}
	recs := append([]device.Recorder(nil), c.retained...)
	c.startedAt = time.Now()
	c.mu.Unlock()

	for _, r := range recs {
		r.Run()
	}
	c.setState(StateActive)
	c.logger.Info().
		Str(log.FieldEvent, "controller.active").
		Int("recorders", len(recs)).
		Str(log.FieldSessionRoot, c.layout.Root()).
		Msg("recording started")
}

// StopAll signals every retained recorder to stop, then joins them all.
// Joins run concurrently so the stop latency is that of the slowest device.
// Later calls wait for the first one to finish and return its result.
func (c *Controller) StopAll() error {
	c.mu.Lock()
	if done := c.stopDone; done != nil {
		c.mu.Unlock()
		<-done
		return c.stopErr
	}
	if len(c.retained) == 0 {
		c.mu.Unlock()
		return nil
	}
	c.released = true
	c.stopDone = make(chan struct{})
	recs := append([]device.Recorder(nil), c.retained...)
	c.mu.Unlock()
	c.setState(StateStopping)

	start := time.Now()
	for _, r := range recs {
		r.RequestStop()
	}

	errs := make([]error, len(recs))
	var g errgroup.Group
	for i, r := range recs {
		g.Go(func() error {
			if err := r.Join(); err != nil {
				errs[i] = fmt.Errorf("%s: %w", r.Descriptor(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	metrics.ObserveStopDuration(elapsed)
	c.setState(StateIdle)

	err := errors.Join(errs...)
	ev := c.logger.Info()
	if err != nil {
		ev = c.logger.Warn().Err(err)
	}
	ev.Str(log.FieldEvent, "controller.stopped").
		Dur("stop_latency", elapsed).
		Int("recorders", len(recs)).
		Str(log.FieldSessionRoot, c.layout.Root()).
		Msg("recording stopped")

	c.stopErr = err
	close(c.stopDone)
	return err
}

// Run discovers and arms devices, records until ctx is done, then stops
// everything.
func (c *Controller) Run(ctx context.Context) error {
	if _, err := c.DiscoverAndOpen(ctx); err != nil {
		return err
	}
	c.BeginAll()
	<-ctx.Done()
	return c.StopAll()
}
