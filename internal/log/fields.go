// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRunID     = "run_id"
	FieldSessionID = "session_id"
	FieldDevice    = "device"
	FieldFamily    = "family"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldPID       = "pid"

	// Media / sensor fields
	FieldResolution = "resolution"
	FieldFPS        = "fps"
	FieldPort       = "port"
	FieldBaudRate   = "baud_rate"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath        = "path"
	FieldSessionRoot = "session_root"
)
