// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts driver helper processes in their own process group
// and tears the whole group down on release.
package procgroup

import "errors"

// ErrUnsupported is returned by Kill on platforms without process groups.
var ErrUnsupported = errors.New("process groups not supported on this platform")
