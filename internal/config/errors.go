// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "errors"

var (
	// ErrUnknownConfigField classifies strict YAML parse failures and option
	// maps carrying keys rigrec does not know.
	ErrUnknownConfigField = errors.New("unknown config field")

	// ErrInvalidOption is returned when an option value cannot be parsed.
	ErrInvalidOption = errors.New("invalid option value")
)
