// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the resolved configuration for one rigrec process.
type AppConfig struct {
	BaseDir string `yaml:"base_dir"`

	Camera      CameraConfig      `yaml:",inline"`
	Positioning PositioningConfig `yaml:",inline"`
	Log         LogConfig         `yaml:",inline"`
	Status      StatusConfig      `yaml:",inline"`

	// Version is set from the binary, never from file or env.
	Version string `yaml:"-"`
}

// CameraConfig holds the settings shared by every camera recorder.
type CameraConfig struct {
	Resolution   string        `yaml:"camera_resolution"`
	FPS          int           `yaml:"camera_fps"`
	Driver       string        `yaml:"camera_driver"`
	FFmpegBin    string        `yaml:"camera_ffmpeg_bin"`
	Container    string        `yaml:"camera_container"`
	GrabInterval time.Duration `yaml:"camera_grab_interval"`
	SimCount     int           `yaml:"camera_sim_count"`
}

// PositioningConfig holds the positioning sensor settings.
type PositioningConfig struct {
	Enabled      bool          `yaml:"positioning_enabled"`
	Driver       string        `yaml:"positioning_driver"`
	Port         string        `yaml:"positioning_port"`
	BaudRate     int           `yaml:"positioning_baudrate"`
	PollInterval time.Duration `yaml:"positioning_poll_interval"`
	ReadTimeout  time.Duration `yaml:"positioning_read_timeout"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"log_level"`
	Format string `yaml:"log_format"`
}

// StatusConfig configures the optional status HTTP server.
type StatusConfig struct {
	// Listen is empty when the status server is disabled.
	Listen string `yaml:"status_listen"`
}

// Driver names.
const (
	DriverFFmpeg = "ffmpeg"
	DriverSerial = "serial"
	DriverSim    = "sim"
)
