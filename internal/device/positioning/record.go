// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package positioning

import (
	"math"
	"time"
)

// Record is one line of the positioning artifact. Coordinates are null when
// the sample carried no fix or a value is not finite.
type Record struct {
	Timestamp float64  `json:"timestamp"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  *float64 `json:"altitude"`
}

// NewRecord builds a record for a sample taken at t. The second return value
// is the coordinate read error, if any; the record is valid either way.
func NewRecord(t time.Time, s Sample) (Record, error) {
	r := Record{Timestamp: unixSeconds(t)}
	lat, lon, alt, err := s.Coordinates()
	if err != nil {
		return r, err
	}
	r.Latitude = finite(lat, 6)
	r.Longitude = finite(lon, 6)
	r.Altitude = finite(alt, 2)
	return r, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// finite rounds v, or returns nil for NaN and infinities, which JSON cannot encode.
func finite(v float64, places int) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	v = round(v, places)
	return &v
}
