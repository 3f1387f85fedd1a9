// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ManuGH/rigrec/internal/config"
	"github.com/ManuGH/rigrec/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment before any device is
// touched.
func PerformStartupChecks(cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")

	if err := checkBaseDir(logger, cfg.BaseDir); err != nil {
		return fmt.Errorf("base directory check failed: %w", err)
	}

	if cfg.Camera.Driver == config.DriverFFmpeg {
		bin := strings.TrimSpace(cfg.Camera.FFmpegBin)
		if bin == "" {
			bin = config.DefaultCameraFFmpegBin
		}
		if _, err := exec.LookPath(bin); err != nil {
			// Cameras fail individually at open; other families still record.
			logger.Warn().Err(err).
				Str("ffmpeg", bin).
				Msg("ffmpeg binary not found, cameras will be dropped")
		} else {
			logger.Debug().Str("ffmpeg", bin).Msg("camera driver dependencies available")
		}
	}

	if cfg.Positioning.Enabled && cfg.Positioning.Driver == config.DriverSerial && cfg.Positioning.Port != "" {
		if _, err := os.Stat(cfg.Positioning.Port); err != nil {
			// The sensor is optional; recording proceeds without it.
			logger.Warn().Err(err).
				Str(log.FieldPort, cfg.Positioning.Port).
				Msg("configured positioning port is not present")
		}
	}
	return nil
}

// checkBaseDir accepts a missing base directory but requires an existing
// one to be a writable directory.
func checkBaseDir(logger zerolog.Logger, path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	f, err := os.CreateTemp(path, ".write_test")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %w)", path, err)
	}
	_ = f.Close()
	_ = os.Remove(filepath.Clean(f.Name()))

	logger.Debug().Str(log.FieldPath, path).Msg("base directory is writable")
	return nil
}
