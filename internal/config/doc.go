// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads rigrec configuration.
//
// Precedence is ENV > File > Defaults. The YAML file is parsed strictly:
// unknown keys and multiple documents are rejected. Every key is a flat
// option name (camera_resolution, positioning_port, ...) so the same names
// work in YAML, as RIGREC_* environment variables, and in an option map
// passed to FromOptions.
package config
