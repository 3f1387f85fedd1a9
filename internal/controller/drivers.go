// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/rigrec/internal/config"
	"github.com/ManuGH/rigrec/internal/device"
	"github.com/ManuGH/rigrec/internal/device/camera"
	"github.com/ManuGH/rigrec/internal/device/positioning"
)

// DriversFromConfig builds the drivers named by cfg.
func DriversFromConfig(cfg config.AppConfig) (Drivers, error) {
	var d Drivers

	switch cfg.Camera.Driver {
	case config.DriverFFmpeg:
		d.Camera = camera.NewFFmpegDriver(cfg.Camera.FFmpegBin, cfg.Camera.Container)
	case config.DriverSim:
		d.Camera = camera.NewSimDriver(cfg.Camera.SimCount)
	default:
		return d, fmt.Errorf("unknown camera driver %q", cfg.Camera.Driver)
	}

	if !cfg.Positioning.Enabled {
		return d, nil
	}
	switch cfg.Positioning.Driver {
	case config.DriverSerial:
		d.Positioning = positioning.NewSerialDriver(cfg.Positioning.Port, cfg.Positioning.BaudRate, cfg.Positioning.ReadTimeout)
	case config.DriverSim:
		d.Positioning = positioning.NewSimDriver()
	default:
		return d, fmt.Errorf("unknown positioning driver %q", cfg.Positioning.Driver)
	}
	return d, nil
}

// Enumerate lists devices of every enabled family without opening them or
// creating a session. Errors of one family do not hide the other's devices.
func Enumerate(ctx context.Context, d Drivers) ([]device.Descriptor, error) {
	var (
		out  []device.Descriptor
		errs []error
	)
	if d.Camera != nil {
		descs, err := d.Camera.Enumerate(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("camera: %w", err))
		}
		out = append(out, descs...)
	}
	if d.Positioning != nil {
		descs, err := d.Positioning.Enumerate(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("positioning: %w", err))
		}
		out = append(out, descs...)
	}
	return out, errors.Join(errs...)
}
