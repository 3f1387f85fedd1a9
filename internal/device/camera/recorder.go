// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package camera

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ManuGH/rigrec/internal/device"
	"github.com/ManuGH/rigrec/internal/log"
	"github.com/rs/zerolog"
)

// Recorder drives one camera. It implements device.Recorder.
type Recorder struct {
	*device.Base

	driver   Driver
	settings Settings
	interval time.Duration
	handle   Handle
}

var _ device.Recorder = (*Recorder)(nil)

// NewRecorder binds desc to camera_<id>.<ext> inside dir.
func NewRecorder(desc device.Descriptor, dir string, drv Driver, s Settings, interval time.Duration, logger zerolog.Logger) *Recorder {
	out := filepath.Join(dir, ArtifactName(desc.ID, drv.Extension()))
	return &Recorder{
		Base:     device.NewBase(desc, out, logger),
		driver:   drv,
		settings: s,
		interval: interval,
	}
}

// Open binds to the camera. It returns false and moves to failed on any
// driver error or panic.
func (r *Recorder) Open(ctx context.Context) bool {
	if st := r.State(); st != device.StateCreated {
		lg := r.Logger()
		lg.Warn().Str("state", string(st)).Msg("open ignored: recorder already opened")
		return st == device.StateOpened || st == device.StateRecording
	}

	var h Handle
	err := device.Guard(device.ErrDeviceOpen, func() error {
		var err error
		h, err = r.driver.Open(ctx, r.Descriptor(), r.settings)
		return err
	})
	if err != nil {
		if h != nil {
			_ = h.Close()
		}
		r.Fail("open", err)
		return false
	}
	if h == nil {
		r.Fail("open", fmt.Errorf("%w: driver returned no handle", device.ErrDeviceOpen))
		return false
	}

	r.handle = h
	r.Transition(device.StateOpened)
	lg := r.Logger()
	lg.Info().
		Str(log.FieldEvent, "device.opened").
		Str(log.FieldResolution, r.settings.Resolution.Name).
		Int(log.FieldFPS, r.settings.FPS).
		Msg("camera opened")
	return true
}

// StartRecording arms encoding into the artifact. On failure the opened
// handle is closed and the recorder moves to failed.
func (r *Recorder) StartRecording(ctx context.Context) bool {
	if st := r.State(); st != device.StateOpened {
		lg := r.Logger()
		lg.Warn().Str("state", string(st)).Msg("start ignored: recorder is not opened")
		return st == device.StateRecording
	}

	h := r.handle
	err := device.Guard(device.ErrRecordingStart, func() error {
		return h.EnableRecording(r.OutputPath())
	})
	if err != nil {
		if cerr := h.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close after failed start: %w", cerr))
		}
		r.handle = nil
		r.Fail("start", err)
		return false
	}

	r.Arm(device.NewLoop(device.LoopConfig{
		Family:   device.FamilyCamera,
		Interval: r.interval,
		Acquire: func(ctx context.Context) error {
			if err := h.Grab(ctx); err != nil {
				return fmt.Errorf("%w: %w", device.ErrAcquire, err)
			}
			return nil
		},
		Release: h.Close,
		Logger:  r.Logger(),
	}))
	lg := r.Logger()
	lg.Info().
		Str(log.FieldEvent, "device.recording").
		Str(log.FieldPath, r.OutputPath()).
		Msg("camera recording")
	return true
}
