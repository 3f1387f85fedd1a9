// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
)

// DirChecker checks that a session directory still exists.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a checker for directory existence.
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(_ context.Context) CheckResult {
	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{Status: StatusUnhealthy, Error: "directory not found", Message: c.path}
		}
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected directory, got file", Message: c.path}
	}
	return CheckResult{Status: StatusHealthy, Message: c.path}
}

// RecorderCounts is a summary of a session's recorders.
type RecorderCounts struct {
	Recording int
	Dropped   int
}

// RecordersChecker reports unhealthy when nothing records and degraded when
// some device was dropped.
type RecordersChecker struct {
	counts func() RecorderCounts
}

// NewRecordersChecker creates a checker backed by counts.
func NewRecordersChecker(counts func() RecorderCounts) *RecordersChecker {
	return &RecordersChecker{counts: counts}
}

func (c *RecordersChecker) Name() string { return "recorders" }

func (c *RecordersChecker) Check(_ context.Context) CheckResult {
	n := c.counts()
	switch {
	case n.Recording == 0:
		return CheckResult{Status: StatusUnhealthy, Message: "no recorder is capturing"}
	case n.Dropped > 0:
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("%d recording, %d dropped", n.Recording, n.Dropped),
		}
	default:
		return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d recording", n.Recording)}
	}
}
