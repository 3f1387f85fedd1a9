// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import (
	"time"

	"github.com/ManuGH/rigrec/internal/device"
)

// Snapshot is a point-in-time view of a controller for reporting.
type Snapshot struct {
	RunID       string              `json:"run_id"`
	SessionRoot string              `json:"session_root"`
	State       State               `json:"state"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	Recorders   []device.Status     `json:"recorders"`
	Dropped     []device.Status     `json:"dropped"`
	Skipped     []device.Descriptor `json:"skipped,omitempty"`
}

// Status returns a snapshot of the controller and every recorder it built.
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	retained := append([]device.Recorder(nil), c.retained...)
	dropped := append([]device.Recorder(nil), c.dropped...)
	s := Snapshot{
		RunID:       c.runID,
		SessionRoot: c.layout.Root(),
		State:       c.state,
		Skipped:     append([]device.Descriptor(nil), c.skipped...),
	}
	if !c.startedAt.IsZero() {
		t := c.startedAt
		s.StartedAt = &t
	}
	c.mu.Unlock()

	s.Recorders = statuses(retained)
	s.Dropped = statuses(dropped)
	return s
}

func statuses(recs []device.Recorder) []device.Status {
	out := make([]device.Status, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Status())
	}
	return out
}
