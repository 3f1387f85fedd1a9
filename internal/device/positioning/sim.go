// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package positioning

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/ManuGH/rigrec/internal/device"
)

// ErrScriptExhausted is returned once every scripted step has been played.
var ErrScriptExhausted = errors.New("simulated script exhausted")

var errSimInit = errors.New("simulated initialize failure")

// SimStep is one scripted acquisition.
type SimStep struct {
	// Err fails the acquisition; no record is written.
	Err error
	// NoFix yields a sample whose coordinates cannot be read.
	NoFix bool

	Lat, Lon, Alt float64
}

// SimDriver fakes a positioning sensor. With a Script it plays the steps
// once and then fails every acquisition. Without one it emits a slow
// circular track forever.
type SimDriver struct {
	Ports    []string
	Script   []SimStep
	FailInit bool
	// ReleaseDelay delays Close.
	ReleaseDelay time.Duration

	mu      sync.Mutex
	inits   int
	closes  int
	calls   int
	drained chan struct{}
}

// NewSimDriver returns a driver exposing one port named sim0.
func NewSimDriver() *SimDriver {
	return &SimDriver{Ports: []string{"sim0"}}
}

func (d *SimDriver) Enumerate(ctx context.Context) ([]device.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]device.Descriptor, 0, len(d.Ports))
	for _, p := range d.Ports {
		out = append(out, device.Descriptor{ID: p, Family: device.FamilyPositioning, Path: p})
	}
	return out, nil
}

func (d *SimDriver) Initialize(_ context.Context, _ device.Descriptor) (Sensor, error) {
	d.mu.Lock()
	d.inits++
	d.mu.Unlock()
	if d.FailInit {
		return nil, errSimInit
	}
	return &simSensor{drv: d, start: time.Now()}, nil
}

// Drained is closed once every scripted step has been consumed.
func (d *SimDriver) Drained() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.drained == nil {
		d.drained = make(chan struct{})
		if d.Script != nil && d.calls >= len(d.Script) {
			close(d.drained)
		}
	}
	return d.drained
}

// Calls returns how many acquisitions were attempted.
func (d *SimDriver) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Inits returns how many sensors were initialized.
func (d *SimDriver) Inits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inits
}

// Closes returns how many sensors were closed.
func (d *SimDriver) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// next returns the step for this call and whether one exists.
func (d *SimDriver) next() (SimStep, int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	d.calls++
	if d.Script == nil {
		return SimStep{}, i, false
	}
	if i >= len(d.Script) {
		return SimStep{Err: ErrScriptExhausted}, i, true
	}
	if i == len(d.Script)-1 && d.drained != nil {
		defer close(d.drained)
	}
	return d.Script[i], i, true
}

type simSensor struct {
	drv   *SimDriver
	start time.Time
}

func (s *simSensor) AcquireSample(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step, i, scripted := s.drv.next()
	if !scripted {
		// Circle of about 50 m radius, one lap per ten minutes.
		phase := 2 * math.Pi * float64(i) / 600
		step = SimStep{
			Lat: 48.137154 + 0.00045*math.Sin(phase),
			Lon: 11.576124 + 0.00067*math.Cos(phase),
			Alt: 519.0 + math.Sin(phase),
		}
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return simSample{step: step}, nil
}

func (s *simSensor) Close() error {
	if s.drv.ReleaseDelay > 0 {
		time.Sleep(s.drv.ReleaseDelay)
	}
	s.drv.mu.Lock()
	s.drv.closes++
	s.drv.mu.Unlock()
	return nil
}

type simSample struct {
	step SimStep
}

func (s simSample) Coordinates() (lat, lon, alt float64, err error) {
	if s.step.NoFix {
		return 0, 0, 0, ErrNoFix
	}
	return s.step.Lat, s.step.Lon, s.step.Alt, nil
}
