// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package camera

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/rigrec/internal/device"
	"github.com/ManuGH/rigrec/internal/log"
	"github.com/ManuGH/rigrec/internal/procgroup"
	"github.com/rs/zerolog"
)

// ErrGrabTimeout is returned by Grab when ffmpeg reports no progress in time.
var ErrGrabTimeout = errors.New("no frame progress before timeout")

// FFmpegDriver captures V4L2 cameras with one ffmpeg process per camera.
type FFmpegDriver struct {
	Bin       string
	Container string

	// StartTimeout bounds how long EnableRecording waits for the first
	// progress report.
	StartTimeout time.Duration
	// GrabTimeout bounds one Grab call.
	GrabTimeout time.Duration
	// StopGrace is how long Close waits after SIGTERM before SIGKILL.
	StopGrace time.Duration

	// DevGlob and SysfsRoot locate nodes; overridable for tests.
	DevGlob   string
	SysfsRoot string

	Logger zerolog.Logger
}

// NewFFmpegDriver returns a driver with production paths and timeouts.
func NewFFmpegDriver(bin, container string) *FFmpegDriver {
	return &FFmpegDriver{
		Bin:          bin,
		Container:    container,
		StartTimeout: 5 * time.Second,
		GrabTimeout:  2 * time.Second,
		StopGrace:    5 * time.Second,
		DevGlob:      defaultDevGlob,
		SysfsRoot:    defaultSysfsRoot,
		Logger:       log.WithComponent("camera.ffmpeg"),
	}
}

func (d *FFmpegDriver) Extension() string { return d.Container }

func (d *FFmpegDriver) Enumerate(ctx context.Context) ([]device.Descriptor, error) {
	return v4l2Discovery{devGlob: d.DevGlob, sysfsRoot: d.SysfsRoot}.scan(ctx)
}

// Open checks the node is readable. The capture process starts in EnableRecording.
func (d *FFmpegDriver) Open(_ context.Context, desc device.Descriptor, s Settings) (Handle, error) {
	if desc.Path == "" {
		return nil, fmt.Errorf("camera %s has no device node", desc.ID)
	}
	if s.FPS <= 0 || s.Resolution.Width <= 0 {
		return nil, fmt.Errorf("invalid camera settings %+v", s)
	}
	bin, err := exec.LookPath(d.Bin)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg binary: %w", err)
	}
	// #nosec G304 -- device nodes come from discovery
	f, err := os.OpenFile(desc.Path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", desc.Path, err)
	}
	_ = f.Close()

	return &ffmpegHandle{
		drv:      d,
		bin:      bin,
		desc:     desc,
		settings: s,
		logger:   d.Logger.With().Str(log.FieldDevice, desc.ID).Logger(),
	}, nil
}

// Args returns the ffmpeg argument list for recording node into out.
func (d *FFmpegDriver) Args(node string, s Settings, out string) []string {
	return []string{
		"-hide_banner", "-nostdin", "-nostats",
		"-loglevel", "error",
		"-f", "v4l2",
		"-framerate", strconv.Itoa(s.FPS),
		"-video_size", s.Resolution.VideoSize(),
		"-i", node,
		"-c:v", "copy",
		"-progress", "pipe:1",
		"-n", out,
	}
}

type ffmpegHandle struct {
	drv      *FFmpegDriver
	bin      string
	desc     device.Descriptor
	settings Settings
	logger   zerolog.Logger

	cmd      *exec.Cmd
	stderr   *tailBuffer
	progress chan struct{}
	waitCh   chan error
	exited   chan struct{}
	exitErr  error

	closeOnce sync.Once
	closeErr  error
}

func (h *ffmpegHandle) EnableRecording(path string) error {
	if h.cmd != nil {
		return errors.New("recording already enabled")
	}

	// Outputs are never overwritten.
	if _, err := os.Lstat(path); err == nil {
		return fmt.Errorf("ffmpeg output %s: %w", path, os.ErrExist)
	}

	// #nosec G204 -- binary and arguments come from operator config and discovery
	cmd := exec.Command(h.bin, h.drv.Args(h.desc.Path, h.settings, path)...)
	procgroup.Set(cmd)
	h.stderr = newTailBuffer(4096)
	cmd.Stderr = h.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}

	h.progress = make(chan struct{}, 1)
	h.waitCh = make(chan error, 1)
	h.exited = make(chan struct{})

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}
	h.cmd = cmd
	h.logger.Info().
		Str("command", cmd.String()).
		Int(log.FieldPID, cmd.Process.Pid).
		Msg("ffmpeg started")

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		h.readProgress(stdout)
	}()
	go func() {
		// Wait must not run before the progress reader has drained stdout.
		<-readDone
		err := cmd.Wait()
		h.exitErr = err
		close(h.exited)
		h.waitCh <- err
	}()

	select {
	case <-h.progress:
		// Leave a token so the first Grab reports this frame.
		select {
		case h.progress <- struct{}{}:
		default:
		}
		return nil
	case <-h.exited:
		err := h.exitError()
		h.cmd = nil
		return err
	case <-time.After(h.drv.StartTimeout):
		_ = procgroup.Terminate(cmd, h.waitCh, h.drv.StopGrace)
		h.cmd = nil
		return fmt.Errorf("ffmpeg reported no progress within %s: %s", h.drv.StartTimeout, h.stderr.String())
	}
}

// readProgress parses key=value blocks from -progress; each block ends
// with a progress= line.
func (h *ffmpegHandle) readProgress(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, _, ok := strings.Cut(scanner.Text(), "=")
		if !ok || strings.TrimSpace(key) != "progress" {
			continue
		}
		select {
		case h.progress <- struct{}{}:
		default:
		}
	}
}

func (h *ffmpegHandle) exitError() error {
	tail := strings.TrimSpace(h.stderr.String())
	if h.exitErr == nil {
		return fmt.Errorf("ffmpeg exited early: %s", tail)
	}
	return fmt.Errorf("ffmpeg exited: %w: %s", h.exitErr, tail)
}

func (h *ffmpegHandle) Grab(ctx context.Context) error {
	if h.cmd == nil {
		return errors.New("recording not enabled")
	}
	timer := time.NewTimer(h.drv.GrabTimeout)
	defer timer.Stop()

	select {
	case <-h.progress:
		return nil
	case <-h.exited:
		return h.exitError()
	case <-timer.C:
		return ErrGrabTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops ffmpeg with SIGTERM so it finalizes the container, escalating
// to SIGKILL after StopGrace.
func (h *ffmpegHandle) Close() error {
	h.closeOnce.Do(func() {
		if h.cmd == nil {
			return
		}
		select {
		case <-h.exited:
			// Already gone; report why unless it was a clean exit.
			if h.exitErr != nil {
				h.closeErr = h.exitError()
			}
			return
		default:
		}

		err := procgroup.Terminate(h.cmd, h.waitCh, h.drv.StopGrace)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Exit status after our own SIGTERM is expected.
			h.logger.Debug().Int("exit_code", exitErr.ExitCode()).Msg("ffmpeg stopped")
			return
		}
		h.closeErr = err
	})
	return h.closeErr
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
