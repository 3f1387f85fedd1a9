// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is prepended to upper-cased option names to form env keys.
const EnvPrefix = "RIGREC_"

type option struct {
	key string
	get func(*AppConfig) string
	set func(*AppConfig, string) error
}

func stringOpt(key string, field func(*AppConfig) *string) option {
	return option{
		key: key,
		get: func(c *AppConfig) string { return *field(c) },
		set: func(c *AppConfig, v string) error { *field(c) = v; return nil },
	}
}

func intOpt(key string, field func(*AppConfig) *int) option {
	return option{
		key: key,
		get: func(c *AppConfig) string { return strconv.Itoa(*field(c)) },
		set: func(c *AppConfig, v string) error {
			i, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidOption, key, v)
			}
			*field(c) = i
			return nil
		},
	}
}

func durationOpt(key string, field func(*AppConfig) *time.Duration) option {
	return option{
		key: key,
		get: func(c *AppConfig) string { return field(c).String() },
		set: func(c *AppConfig, v string) error {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidOption, key, v)
			}
			*field(c) = d
			return nil
		},
	}
}

func boolOpt(key string, field func(*AppConfig) *bool) option {
	return option{
		key: key,
		get: func(c *AppConfig) string { return strconv.FormatBool(*field(c)) },
		set: func(c *AppConfig, v string) error {
			b, ok := parseBoolValue(v)
			if !ok {
				return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidOption, key, v)
			}
			*field(c) = b
			return nil
		},
	}
}

// registry lists every flat option name. It is the single source for
// FromOptions, Options and the env key set.
var registry = []option{
	stringOpt("base_dir", func(c *AppConfig) *string { return &c.BaseDir }),
	stringOpt("camera_resolution", func(c *AppConfig) *string { return &c.Camera.Resolution }),
	intOpt("camera_fps", func(c *AppConfig) *int { return &c.Camera.FPS }),
	stringOpt("camera_driver", func(c *AppConfig) *string { return &c.Camera.Driver }),
	stringOpt("camera_ffmpeg_bin", func(c *AppConfig) *string { return &c.Camera.FFmpegBin }),
	stringOpt("camera_container", func(c *AppConfig) *string { return &c.Camera.Container }),
	durationOpt("camera_grab_interval", func(c *AppConfig) *time.Duration { return &c.Camera.GrabInterval }),
	intOpt("camera_sim_count", func(c *AppConfig) *int { return &c.Camera.SimCount }),
	boolOpt("positioning_enabled", func(c *AppConfig) *bool { return &c.Positioning.Enabled }),
	stringOpt("positioning_driver", func(c *AppConfig) *string { return &c.Positioning.Driver }),
	stringOpt("positioning_port", func(c *AppConfig) *string { return &c.Positioning.Port }),
	intOpt("positioning_baudrate", func(c *AppConfig) *int { return &c.Positioning.BaudRate }),
	durationOpt("positioning_poll_interval", func(c *AppConfig) *time.Duration { return &c.Positioning.PollInterval }),
	durationOpt("positioning_read_timeout", func(c *AppConfig) *time.Duration { return &c.Positioning.ReadTimeout }),
	stringOpt("log_level", func(c *AppConfig) *string { return &c.Log.Level }),
	stringOpt("log_format", func(c *AppConfig) *string { return &c.Log.Format }),
	stringOpt("status_listen", func(c *AppConfig) *string { return &c.Status.Listen }),
}

func lookupOption(key string) (option, bool) {
	for _, o := range registry {
		if o.key == key {
			return o, true
		}
	}
	return option{}, false
}

// Keys returns all option names in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for _, o := range registry {
		keys = append(keys, o.key)
	}
	sort.Strings(keys)
	return keys
}

// EnvKey returns the environment variable consulted for an option name.
func EnvKey(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

// Apply sets the given options on c. Unknown keys are rejected.
func (c *AppConfig) Apply(opts map[string]string) error {
	// Deterministic error reporting when several keys are bad.
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		o, ok := lookupOption(k)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownConfigField, k)
		}
		if err := o.set(c, opts[k]); err != nil {
			return err
		}
	}
	return nil
}

// Options renders c as a flat option map.
func (c AppConfig) Options() map[string]string {
	out := make(map[string]string, len(registry))
	for _, o := range registry {
		out[o.key] = o.get(&c)
	}
	return out
}

// FromOptions builds a validated configuration from a flat option map.
// Absent keys keep their documented defaults.
func FromOptions(opts map[string]string) (AppConfig, error) {
	cfg := Default()
	if err := cfg.Apply(opts); err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func parseBoolValue(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	default:
		return false, false
	}
}
