// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package positioning

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ManuGH/rigrec/internal/device"
	"github.com/ManuGH/rigrec/internal/log"
	nmea "github.com/adrianmo/go-nmea"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

var (
	// ErrReadTimeout is returned when no GGA sentence arrives before the read timeout.
	ErrReadTimeout = errors.New("no position sentence before timeout")
	// ErrNoFix is returned by Coordinates when the receiver reports no fix.
	ErrNoFix = errors.New("receiver has no fix")
)

const (
	// pollSlice bounds one blocking read so the context is checked regularly.
	pollSlice  = 100 * time.Millisecond
	maxLineLen = 4096
)

// SerialDriver reads NMEA 0183 from a serial-attached GNSS receiver.
type SerialDriver struct {
	// Port is the configured port. Empty means every port the OS lists.
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
	Logger      zerolog.Logger

	listPorts func() ([]string, error)
	openPort  func(path string, baud int) (io.ReadCloser, error)
}

// NewSerialDriver returns a driver bound to port at baud.
func NewSerialDriver(port string, baud int, readTimeout time.Duration) *SerialDriver {
	return &SerialDriver{
		Port:        port,
		BaudRate:    baud,
		ReadTimeout: readTimeout,
		Logger:      log.WithComponent("positioning.serial"),
		listPorts:   serial.GetPortsList,
		openPort:    openSerialPort,
	}
}

func openSerialPort(path string, baud int) (io.ReadCloser, error) {
	p, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(pollSlice); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return p, nil
}

func (d *SerialDriver) Enumerate(ctx context.Context) ([]device.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Port != "" {
		return []device.Descriptor{{ID: d.Port, Family: device.FamilyPositioning, Path: d.Port}}, nil
	}

	ports, err := d.listPorts()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	out := make([]device.Descriptor, 0, len(ports))
	for _, p := range ports {
		out = append(out, device.Descriptor{ID: p, Family: device.FamilyPositioning, Path: p})
	}
	return out, nil
}

func (d *SerialDriver) Initialize(_ context.Context, desc device.Descriptor) (Sensor, error) {
	path := desc.Path
	if path == "" {
		path = desc.ID
	}
	port, err := d.openPort(path, d.BaudRate)
	if err != nil {
		return nil, fmt.Errorf("open %s at %d baud: %w", path, d.BaudRate, err)
	}
	d.Logger.Debug().
		Str(log.FieldPort, path).
		Int(log.FieldBaudRate, d.BaudRate).
		Msg("serial port opened")
	return &serialSensor{
		port:    port,
		timeout: d.ReadTimeout,
		chunk:   make([]byte, 256),
		logger:  d.Logger,
	}, nil
}

type serialSensor struct {
	port    io.ReadCloser
	timeout time.Duration
	buf     []byte
	chunk   []byte
	logger  zerolog.Logger
}

// AcquireSample reads sentences until a GGA arrives or the timeout expires.
func (s *serialSensor) AcquireSample(ctx context.Context) (Sample, error) {
	deadline := time.Now().Add(s.timeout)
	for {
		line, err := s.readLine(ctx, deadline)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(line, "$") {
			continue
		}
		sentence, err := nmea.Parse(line)
		if err != nil {
			// Receivers without a fix send GGA with empty coordinate fields.
			if isNoFixGGA(line) {
				return noFixSample{}, nil
			}
			s.logger.Debug().Err(err).Str("sentence", line).Msg("discarding malformed sentence")
			continue
		}
		if gga, ok := sentence.(nmea.GGA); ok {
			return ggaSample{gga}, nil
		}
	}
}

// readLine returns the next CR/LF-terminated line. A port read returning no
// data is a poll timeout, not EOF.
func (s *serialSensor) readLine(ctx context.Context, deadline time.Time) (string, error) {
	for {
		if i := bytes.IndexByte(s.buf, '\n'); i >= 0 {
			line := strings.TrimSpace(string(s.buf[:i]))
			s.buf = s.buf[i+1:]
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", ErrReadTimeout
		}

		n, err := s.port.Read(s.chunk)
		if n > 0 {
			s.buf = append(s.buf, s.chunk[:n]...)
			if len(s.buf) > maxLineLen {
				// Line noise without terminators; resynchronize.
				s.buf = s.buf[:0]
			}
		}
		if err != nil {
			return "", fmt.Errorf("serial read: %w", err)
		}
	}
}

func (s *serialSensor) Close() error {
	return s.port.Close()
}

type ggaSample struct {
	gga nmea.GGA
}

func (g ggaSample) Coordinates() (lat, lon, alt float64, err error) {
	if g.gga.FixQuality == nmea.Invalid || g.gga.FixQuality == "" {
		return 0, 0, 0, ErrNoFix
	}
	return g.gga.Latitude, g.gga.Longitude, g.gga.Altitude, nil
}

// isNoFixGGA reports whether line is a GGA sentence with fix quality 0 or empty.
func isNoFixGGA(line string) bool {
	body, _, _ := strings.Cut(strings.TrimPrefix(line, "$"), "*")
	fields := strings.Split(body, ",")
	if len(fields) < 7 || !strings.HasSuffix(fields[0], nmea.TypeGGA) {
		return false
	}
	return fields[6] == nmea.Invalid || fields[6] == ""
}

type noFixSample struct{}

func (noFixSample) Coordinates() (lat, lon, alt float64, err error) {
	return 0, 0, 0, ErrNoFix
}
