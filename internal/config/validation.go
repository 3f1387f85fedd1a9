// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"github.com/ManuGH/rigrec/internal/validate"
)

// resolutionNames are the camera resolution presets understood by the
// camera drivers.
var resolutionNames = []string{"HD2K", "HD1080", "HD1200", "HD720", "SVGA", "VGA"}

// Validate validates an AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Path("base_dir", cfg.BaseDir)

	// Camera
	v.OneOf("camera_resolution", cfg.Camera.Resolution, resolutionNames)
	v.Range("camera_fps", cfg.Camera.FPS, 1, 120)
	v.OneOf("camera_driver", cfg.Camera.Driver, []string{DriverFFmpeg, DriverSim})
	v.NotEmpty("camera_container", cfg.Camera.Container)
	v.PositiveDuration("camera_grab_interval", cfg.Camera.GrabInterval)
	if cfg.Camera.Driver == DriverFFmpeg {
		v.NotEmpty("camera_ffmpeg_bin", cfg.Camera.FFmpegBin)
	}
	if cfg.Camera.Driver == DriverSim {
		v.Range("camera_sim_count", cfg.Camera.SimCount, 0, 16)
	}

	// Positioning
	if cfg.Positioning.Enabled {
		v.OneOf("positioning_driver", cfg.Positioning.Driver, []string{DriverSerial, DriverSim})
		if cfg.Positioning.Driver == DriverSerial {
			v.NotEmpty("positioning_port", cfg.Positioning.Port)
		}
		v.Range("positioning_baudrate", cfg.Positioning.BaudRate, 300, 921600)
		v.PositiveDuration("positioning_poll_interval", cfg.Positioning.PollInterval)
		v.PositiveDuration("positioning_read_timeout", cfg.Positioning.ReadTimeout)
	}

	// Logging
	v.LogLevel("log_level", cfg.Log.Level)
	v.OneOf("log_format", cfg.Log.Format, []string{"json", "console", "auto"})

	v.ListenAddr("status_listen", cfg.Status.Listen)

	return v.Err()
}
