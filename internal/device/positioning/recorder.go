// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package positioning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/rigrec/internal/device"
	"github.com/ManuGH/rigrec/internal/log"
	"github.com/ManuGH/rigrec/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Recorder drives one positioning sensor. It implements device.Recorder.
type Recorder struct {
	*device.Base

	driver   Driver
	interval time.Duration
	now      func() time.Time

	sensor   Sensor
	file     recordFile
	offset   int64
	noFixLog rate.Sometimes
}

// recordFile is the artifact as the recorder writes it; *os.File satisfies it.
type recordFile interface {
	io.Writer
	io.Seeker
	Truncate(size int64) error
	Sync() error
	Close() error
}

var _ device.Recorder = (*Recorder)(nil)

// NewRecorder binds desc to positioning_data.json inside dir. interval is
// the pause between samples.
func NewRecorder(desc device.Descriptor, dir string, drv Driver, interval time.Duration, logger zerolog.Logger) *Recorder {
	return &Recorder{
		Base:     device.NewBase(desc, filepath.Join(dir, ArtifactName), logger),
		driver:   drv,
		interval: interval,
		now:      time.Now,
		noFixLog: rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
}

// Open initializes the sensor.
func (r *Recorder) Open(ctx context.Context) bool {
	if st := r.State(); st != device.StateCreated {
		lg := r.Logger()
		lg.Warn().Str("state", string(st)).Msg("open ignored: recorder already opened")
		return st == device.StateOpened || st == device.StateRecording
	}

	var s Sensor
	err := device.Guard(device.ErrDeviceOpen, func() error {
		var err error
		s, err = r.driver.Initialize(ctx, r.Descriptor())
		return err
	})
	if err == nil && s == nil {
		err = fmt.Errorf("%w: driver returned no sensor", device.ErrDeviceOpen)
	}
	if err != nil {
		if s != nil {
			_ = s.Close()
		}
		r.Fail("open", err)
		return false
	}

	r.sensor = s
	r.Transition(device.StateOpened)
	lg := r.Logger()
	lg.Info().
		Str(log.FieldEvent, "device.opened").
		Str(log.FieldPort, r.Descriptor().Path).
		Msg("positioning sensor opened")
	return true
}

// StartRecording creates the artifact. On failure the sensor is closed.
func (r *Recorder) StartRecording(_ context.Context) bool {
	if st := r.State(); st != device.StateOpened {
		lg := r.Logger()
		lg.Warn().Str("state", string(st)).Msg("start ignored: recorder is not opened")
		return st == device.StateRecording
	}

	// #nosec G304 -- path is built from the session layout
	f, err := os.OpenFile(r.OutputPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		err = fmt.Errorf("%w: %w", device.ErrRecordingStart, err)
		if cerr := r.sensor.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close after failed start: %w", cerr))
		}
		r.sensor = nil
		r.Fail("start", err)
		return false
	}
	r.file = f

	r.Arm(device.NewLoop(device.LoopConfig{
		Family:   device.FamilyPositioning,
		Interval: r.interval,
		Acquire:  r.acquire,
		Release:  r.release,
		Logger:   r.Logger(),
	}))
	lg := r.Logger()
	lg.Info().
		Str(log.FieldEvent, "device.recording").
		Str(log.FieldPath, r.OutputPath()).
		Msg("positioning recording")
	return true
}

// acquire reads one sample and appends its record. A failed read writes nothing.
func (r *Recorder) acquire(ctx context.Context) error {
	sample, err := r.sensor.AcquireSample(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", device.ErrAcquire, err)
	}

	rec, cerr := NewRecord(r.now(), sample)
	if cerr != nil {
		r.noFixLog.Do(func() {
			lg := r.Logger()
			lg.Warn().Err(cerr).
				Str(log.FieldEvent, "positioning.no_fix").
				Msg("sample without coordinates, writing null record")
		})
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode record: %w", device.ErrAcquire, err)
	}
	line = append(line, '\n')
	if err := r.appendLine(line); err != nil {
		return fmt.Errorf("%w: %w", device.ErrAcquire, err)
	}
	metrics.IncPositioningRecords()
	return nil
}

// appendLine writes one whole line or none: a partial write is cut back to
// the previous line end.
func (r *Recorder) appendLine(line []byte) error {
	n, err := r.file.Write(line)
	if err == nil {
		r.offset += int64(n)
		if err := r.file.Sync(); err != nil {
			return fmt.Errorf("sync record: %w", err)
		}
		return nil
	}
	err = fmt.Errorf("write record: %w", err)
	if n > 0 {
		if terr := r.file.Truncate(r.offset); terr != nil {
			return errors.Join(err, fmt.Errorf("truncate partial record: %w", terr))
		}
	}
	if _, serr := r.file.Seek(r.offset, io.SeekStart); serr != nil {
		return errors.Join(err, fmt.Errorf("seek after partial record: %w", serr))
	}
	return err
}

func (r *Recorder) release() error {
	var errs []error
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", ArtifactName, err))
		}
	}
	if r.sensor != nil {
		if err := r.sensor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sensor: %w", err))
		}
	}
	return errors.Join(errs...)
}
