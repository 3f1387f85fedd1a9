// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package device

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceOpen means the driver refused to open the device.
	ErrDeviceOpen = errors.New("device open failed")
	// ErrRecordingStart means the driver refused to arm recording.
	ErrRecordingStart = errors.New("recording start failed")
	// ErrAcquire marks a single failed capture iteration. It is never fatal.
	ErrAcquire = errors.New("acquire failed")
)

// Guard runs fn and converts a panic into an error wrapping kind, so driver
// bugs surface as ordinary device failures.
func Guard(kind error, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: driver panic: %v", kind, r)
		}
	}()
	if err := fn(); err != nil {
		if errors.Is(err, kind) {
			return err
		}
		return fmt.Errorf("%w: %w", kind, err)
	}
	return nil
}
