// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestConfigure_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "rigrec-test", Version: "v0.0.1"})
	t.Cleanup(func() { Configure(Config{}) })

	logger := WithComponent("session")
	logger.Info().Str(FieldEvent, "session.created").Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}

	want := map[string]string{
		"service":      "rigrec-test",
		"version":      "v0.0.1",
		FieldComponent: "session",
		FieldEvent:     "session.created",
		"message":      "hello",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("field %s = %v, want %v", k, entry[k], v)
		}
	}
}

func TestConfigure_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Format: "console", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	lg := WithComponent("cli")
	lg.Info().Msg("console line")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected human readable output, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "console line") {
		t.Errorf("expected message in output, got %q", buf.String())
	}
}

func TestConfigure_AutoFormatOnNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Format: "auto", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	lg := WithComponent("cli")
	lg.Info().Msg("auto line")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("auto format on a buffer should stay JSON, got %q", buf.String())
	}
}

func TestConfigure_InvalidLevelFallsBackToInfo(t *testing.T) {
	Configure(Config{Level: "not-a-level", Output: &bytes.Buffer{}})
	t.Cleanup(func() { Configure(Config{}) })

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("global level = %v, want info", zerolog.GlobalLevel())
	}
}

func TestDerive(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	logger := Derive(func(c *zerolog.Context) {
		*c = c.Str(FieldDevice, "1001")
	})
	logger.Info().Msg("derived")
	if !strings.Contains(buf.String(), `"device":"1001"`) {
		t.Errorf("expected device field, got %q", buf.String())
	}

	// nil builder must not panic
	_ = Derive(nil)
}

func TestContextIDs(t *testing.T) {
	tests := []struct {
		name   string
		ctx    context.Context
		runID  string
		device string
	}{
		{name: "nil context", ctx: nil, runID: "run-1", device: "1001"},
		{name: "background context", ctx: context.Background(), runID: "run-2", device: "/dev/ttyUSB0"},
		{name: "empty values", ctx: context.Background(), runID: "", device: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithRunID(tt.ctx, tt.runID)
			ctx = ContextWithDeviceID(ctx, tt.device)
			if got := RunIDFromContext(ctx); got != tt.runID {
				t.Errorf("RunIDFromContext() = %q, want %q", got, tt.runID)
			}
			if got := DeviceIDFromContext(ctx); got != tt.device {
				t.Errorf("DeviceIDFromContext() = %q, want %q", got, tt.device)
			}
		})
	}
}

func TestWithContext_AddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := ContextWithRunID(context.Background(), "run-xyz")
	logger := WithContext(ctx, base)
	logger.Info().Msg("x")

	if !strings.Contains(buf.String(), `"run_id":"run-xyz"`) {
		t.Errorf("expected run_id in output, got %q", buf.String())
	}

	buf.Reset()
	plain := WithContext(context.Background(), base)
	plain.Info().Msg("y")
	if strings.Contains(buf.String(), "run_id") {
		t.Errorf("unexpected run_id in output: %q", buf.String())
	}
}

func TestFromContext_FallsBackToBase(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	if FromContext(nil) == nil {
		t.Fatal("FromContext(nil) returned nil")
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext(background) returned nil")
	}

	var buf bytes.Buffer
	attached := zerolog.New(&buf)
	ctx := attached.WithContext(context.Background())
	FromContext(ctx).Info().Msg("attached")
	if !strings.Contains(buf.String(), "attached") {
		t.Errorf("expected context logger to be used, got %q", buf.String())
	}
}
