// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ManuGH/rigrec/internal/device"
)

// SimExtension is the artifact extension written by SimDriver.
const SimExtension = "sim"

var (
	errSimOpen   = errors.New("simulated open failure")
	errSimRecord = errors.New("simulated recording failure")
	errSimGrab   = errors.New("simulated grab failure")
)

// SimDriver fakes cameras. Each armed camera writes one line per grab to
// its artifact. The zero value enumerates nothing.
type SimDriver struct {
	Serials []string

	// Per-serial fault injection.
	FailOpen      map[string]bool
	FailRecording map[string]bool
	ReleaseDelay  map[string]time.Duration

	// FailGrabEvery makes every Nth grab fail when > 0.
	FailGrabEvery int
	// GrabDelay is how long one grab blocks.
	GrabDelay time.Duration

	EnumerateErr error
	// BeforeOpen runs before each Open, for ordering checks in tests.
	BeforeOpen func(device.Descriptor)

	mu     sync.Mutex
	opens  map[string]int
	closes map[string]int
}

// NewSimDriver returns a driver with serials 1001, 1002, ... up to n.
func NewSimDriver(n int) *SimDriver {
	d := &SimDriver{}
	for i := 0; i < n; i++ {
		d.Serials = append(d.Serials, fmt.Sprintf("%d", 1001+i))
	}
	return d
}

func (d *SimDriver) Extension() string { return SimExtension }

func (d *SimDriver) Enumerate(ctx context.Context) ([]device.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.EnumerateErr != nil {
		return nil, d.EnumerateErr
	}
	out := make([]device.Descriptor, 0, len(d.Serials))
	for _, s := range d.Serials {
		out = append(out, device.Descriptor{ID: s, Family: device.FamilyCamera, Name: "sim-" + s})
	}
	return out, nil
}

func (d *SimDriver) Open(_ context.Context, desc device.Descriptor, s Settings) (Handle, error) {
	if d.BeforeOpen != nil {
		d.BeforeOpen(desc)
	}
	d.mu.Lock()
	if d.opens == nil {
		d.opens = make(map[string]int)
	}
	d.opens[desc.ID]++
	d.mu.Unlock()

	if d.FailOpen[desc.ID] {
		return nil, errSimOpen
	}
	return &simHandle{drv: d, id: desc.ID, settings: s}, nil
}

// Opens returns how many times Open was called for serial.
func (d *SimDriver) Opens(serial string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens[serial]
}

// Closes returns how many times a handle for serial was closed.
func (d *SimDriver) Closes(serial string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes[serial]
}

func (d *SimDriver) recordClose(serial string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closes == nil {
		d.closes = make(map[string]int)
	}
	d.closes[serial]++
}

type simHandle struct {
	drv      *SimDriver
	id       string
	settings Settings

	file   *os.File
	grabs  int
	closed bool
}

func (h *simHandle) EnableRecording(path string) error {
	if h.drv.FailRecording[h.id] {
		return errSimRecord
	}
	// #nosec G304 -- path is built from the session layout
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "sim camera %s %s@%d\n", h.id, h.settings.Resolution.VideoSize(), h.settings.FPS); err != nil {
		_ = f.Close()
		return err
	}
	h.file = f
	return nil
}

func (h *simHandle) Grab(ctx context.Context) error {
	if h.file == nil {
		return errors.New("recording not enabled")
	}
	if h.drv.GrabDelay > 0 {
		select {
		case <-time.After(h.drv.GrabDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h.grabs++
	if n := h.drv.FailGrabEvery; n > 0 && h.grabs%n == 0 {
		return errSimGrab
	}
	_, err := fmt.Fprintf(h.file, "frame %d\n", h.grabs)
	return err
}

func (h *simHandle) Close() error {
	if h.closed {
		return errors.New("handle closed twice")
	}
	h.closed = true
	if d := h.drv.ReleaseDelay[h.id]; d > 0 {
		time.Sleep(d)
	}
	h.drv.recordClose(h.id)
	if h.file == nil {
		return nil
	}
	return h.file.Close()
}
