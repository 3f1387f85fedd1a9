// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

// mergeEnvConfig overrides cfg with RIGREC_* variables. Values already in
// cfg (defaults or file) act as the fallback for each key.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.BaseDir = l.envString(EnvKey("base_dir"), cfg.BaseDir)

	cfg.Camera.Resolution = l.envString(EnvKey("camera_resolution"), cfg.Camera.Resolution)
	cfg.Camera.FPS = l.envInt(EnvKey("camera_fps"), cfg.Camera.FPS)
	cfg.Camera.Driver = l.envString(EnvKey("camera_driver"), cfg.Camera.Driver)
	cfg.Camera.FFmpegBin = l.envString(EnvKey("camera_ffmpeg_bin"), cfg.Camera.FFmpegBin)
	cfg.Camera.Container = l.envString(EnvKey("camera_container"), cfg.Camera.Container)
	cfg.Camera.GrabInterval = l.envDuration(EnvKey("camera_grab_interval"), cfg.Camera.GrabInterval)
	cfg.Camera.SimCount = l.envInt(EnvKey("camera_sim_count"), cfg.Camera.SimCount)

	cfg.Positioning.Enabled = l.envBool(EnvKey("positioning_enabled"), cfg.Positioning.Enabled)
	cfg.Positioning.Driver = l.envString(EnvKey("positioning_driver"), cfg.Positioning.Driver)
	cfg.Positioning.Port = l.envString(EnvKey("positioning_port"), cfg.Positioning.Port)
	cfg.Positioning.BaudRate = l.envInt(EnvKey("positioning_baudrate"), cfg.Positioning.BaudRate)
	cfg.Positioning.PollInterval = l.envDuration(EnvKey("positioning_poll_interval"), cfg.Positioning.PollInterval)
	cfg.Positioning.ReadTimeout = l.envDuration(EnvKey("positioning_read_timeout"), cfg.Positioning.ReadTimeout)

	cfg.Log.Level = l.envString(EnvKey("log_level"), cfg.Log.Level)
	cfg.Log.Format = l.envString(EnvKey("log_format"), cfg.Log.Format)

	cfg.Status.Listen = l.envString(EnvKey("status_listen"), cfg.Status.Listen)
}
