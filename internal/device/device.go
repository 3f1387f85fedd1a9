// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package device defines the recorder contract shared by every device family
// and the capture loop that drives a recorder once it is armed.
package device

import (
	"context"
	"fmt"
)

// Family tags a device with the kind of recorder that drives it.
type Family string

const (
	FamilyCamera      Family = "camera"
	FamilyPositioning Family = "positioning"
)

// Descriptor identifies one discovered device. It is immutable.
type Descriptor struct {
	// ID is the stable identifier: a serial number or a port name.
	ID     string `json:"id"`
	Family Family `json:"family"`
	// Name is an optional display name reported by the driver.
	Name string `json:"name,omitempty"`
	// Path is the OS node used to reach the device, if any.
	Path string `json:"path,omitempty"`
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s:%s", d.Family, d.ID)
}

// State is the lifecycle position of a recorder.
type State string

const (
	StateCreated   State = "created"
	StateOpened    State = "opened"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// Recorder drives one device through open, arm, capture and release.
//
// Open and StartRecording report failure by return value and never panic.
// Run starts exactly one capture loop and returns immediately. RequestStop
// is non-blocking and idempotent. Join blocks until the loop has released
// the device and may be called any number of times.
type Recorder interface {
	Descriptor() Descriptor
	State() State
	OutputPath() string

	Open(ctx context.Context) bool
	StartRecording(ctx context.Context) bool
	Run()
	RequestStop()
	Join() error

	// Err returns the cause of the last open or start failure.
	Err() error
	Status() Status
}

// Status is a point-in-time view of a recorder for reporting.
type Status struct {
	Descriptor
	State      State  `json:"state"`
	OutputPath string `json:"output_path,omitempty"`
	Acquired   int64  `json:"acquired"`
	Failed     int64  `json:"acquire_errors"`
	Error      string `json:"error,omitempty"`
}
