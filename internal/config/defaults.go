// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Default option values used when a key is absent.
const (
	DefaultBaseDir                 = "./results"
	DefaultCameraResolution        = "HD1200"
	DefaultCameraFPS               = 30
	DefaultCameraFFmpegBin         = "ffmpeg"
	DefaultCameraContainer         = "mkv"
	DefaultCameraGrabInterval      = time.Millisecond
	DefaultCameraSimCount          = 2
	DefaultPositioningPort         = "/dev/ttyUSB0"
	DefaultPositioningBaudRate     = 9600
	DefaultPositioningPollInterval = time.Second
	DefaultPositioningReadTimeout  = 2 * time.Second
	DefaultLogLevel                = "info"
	DefaultLogFormat               = "json"
)

// Default returns the configuration used when no file, env or option is set.
func Default() AppConfig {
	return AppConfig{
		BaseDir: DefaultBaseDir,
		Camera: CameraConfig{
			Resolution:   DefaultCameraResolution,
			FPS:          DefaultCameraFPS,
			Driver:       DriverFFmpeg,
			FFmpegBin:    DefaultCameraFFmpegBin,
			Container:    DefaultCameraContainer,
			GrabInterval: DefaultCameraGrabInterval,
			SimCount:     DefaultCameraSimCount,
		},
		Positioning: PositioningConfig{
			Enabled:      true,
			Driver:       DriverSerial,
			Port:         DefaultPositioningPort,
			BaudRate:     DefaultPositioningBaudRate,
			PollInterval: DefaultPositioningPollInterval,
			ReadTimeout:  DefaultPositioningReadTimeout,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
