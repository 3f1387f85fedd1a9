// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package device

import (
	"sync"

	"github.com/ManuGH/rigrec/internal/log"
	"github.com/ManuGH/rigrec/internal/metrics"
	"github.com/rs/zerolog"
)

// Base carries the lifecycle state shared by every recorder family.
// Family recorders embed it and supply Open and StartRecording.
type Base struct {
	desc       Descriptor
	outputPath string
	logger     zerolog.Logger

	mu    sync.Mutex
	state State
	err   error
	loop  *Loop
}

// NewBase returns a recorder base in the created state.
func NewBase(desc Descriptor, outputPath string, logger zerolog.Logger) *Base {
	return &Base{
		desc:       desc,
		outputPath: outputPath,
		logger: logger.With().
			Str(log.FieldDevice, desc.ID).
			Str(log.FieldFamily, string(desc.Family)).
			Logger(),
		state: StateCreated,
	}
}

func (b *Base) Descriptor() Descriptor { return b.desc }

func (b *Base) OutputPath() string { return b.outputPath }

// Logger returns the recorder's logger, tagged with device and family.
func (b *Base) Logger() zerolog.Logger { return b.logger }

func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Base) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Transition moves to next and logs the change.
func (b *Base) Transition(next State) {
	b.mu.Lock()
	prev := b.state
	b.state = next
	b.mu.Unlock()

	if prev == next {
		return
	}
	b.logger.Debug().
		Str(log.FieldEvent, "device.state").
		Str(log.FieldOldState, string(prev)).
		Str(log.FieldNewState, string(next)).
		Msg("recorder state changed")
}

// Fail records cause, moves to failed and counts the failure under stage.
func (b *Base) Fail(stage string, cause error) {
	b.mu.Lock()
	b.err = cause
	b.mu.Unlock()
	b.Transition(StateFailed)

	metrics.IncDeviceFailure(string(b.desc.Family), stage)
	b.logger.Warn().Err(cause).
		Str(log.FieldEvent, "device.failed").
		Str(log.FieldStage, stage).
		Msg("device dropped")
}

// Arm attaches the capture loop built after a successful StartRecording and
// moves to recording.
func (b *Base) Arm(loop *Loop) {
	b.mu.Lock()
	b.loop = loop
	b.mu.Unlock()
	b.Transition(StateRecording)
}

func (b *Base) currentLoop() *Loop {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loop
}

// Run starts the capture loop. Calling it before recording is armed or
// more than once is a logged no-op.
func (b *Base) Run() {
	loop := b.currentLoop()
	if loop == nil || b.State() != StateRecording {
		b.logger.Warn().
			Str(log.FieldEvent, "device.run_ignored").
			Str("state", string(b.State())).
			Msg("run ignored: recorder is not recording")
		return
	}
	if !loop.Start() {
		b.logger.Warn().
			Str(log.FieldEvent, "device.run_ignored").
			Msg("run ignored: capture loop already started")
		return
	}
	b.logger.Info().Str(log.FieldEvent, "device.capture_started").Msg("capture loop started")
}

// RequestStop signals the capture loop to exit without waiting for it.
func (b *Base) RequestStop() {
	loop := b.currentLoop()
	if loop == nil {
		return
	}
	loop.Stop()

	b.mu.Lock()
	if b.state == StateRecording {
		b.state = StateStopping
	}
	b.mu.Unlock()
}

// Join blocks until the capture loop has released the device.
func (b *Base) Join() error {
	loop := b.currentLoop()
	if loop == nil {
		return nil
	}
	err := loop.Join()

	if st := b.State(); st == StateRecording || st == StateStopping {
		b.Transition(StateStopped)
		b.logger.Info().
			Str(log.FieldEvent, "device.released").
			Int64("acquired", loop.Acquired()).
			Int64("acquire_errors", loop.Failed()).
			Msg("device released")
	}
	return err
}

// Status returns a snapshot for reporting.
func (b *Base) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Status{
		Descriptor: b.desc,
		State:      b.state,
		OutputPath: b.outputPath,
	}
	if b.loop != nil {
		s.Acquired = b.loop.Acquired()
		s.Failed = b.loop.Failed()
	}
	if b.err != nil {
		s.Error = b.err.Error()
	}
	return s
}
