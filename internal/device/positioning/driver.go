// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package positioning records a positioning (GNSS) sensor into
// newline-delimited JSON, one record per acquired sample.
package positioning

import (
	"context"

	"github.com/ManuGH/rigrec/internal/device"
)

// ArtifactName is the file name of the positioning artifact.
const ArtifactName = "positioning_data.json"

// Driver is the positioning sensor contract the recorder depends on.
type Driver interface {
	Enumerate(ctx context.Context) ([]device.Descriptor, error)
	// Initialize opens the sensor.
	Initialize(ctx context.Context, desc device.Descriptor) (Sensor, error)
}

// Sensor is an initialized positioning sensor.
type Sensor interface {
	// AcquireSample blocks until one sample is read or the driver's
	// timeout expires.
	AcquireSample(ctx context.Context) (Sample, error)
	Close() error
}

// Sample is one acquired reading. Coordinates fails when the reading
// carries no usable fix.
type Sample interface {
	Coordinates() (lat, lon, alt float64, err error)
}
