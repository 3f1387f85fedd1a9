// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package device

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/rigrec/internal/log"
	"github.com/ManuGH/rigrec/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// AcquireFunc captures one unit of data. It may block up to the driver's own
// timeout. The context is cancelled when stop is requested.
type AcquireFunc func(ctx context.Context) error

// ReleaseFunc frees the device handle and output artifact.
type ReleaseFunc func() error

// LoopConfig configures a capture loop.
type LoopConfig struct {
	Family   Family
	Interval time.Duration
	Acquire  AcquireFunc
	Release  ReleaseFunc
	Logger   zerolog.Logger
}

// Loop repeatedly acquires until stopped, then releases exactly once.
//
// The stop signal is the Done channel of a context cancelled by Stop. Only
// the loop goroutine touches the driver once Start has returned true.
type Loop struct {
	cfg LoopConfig

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	mu      sync.Mutex
	started bool
	closed  bool

	done        chan struct{}
	releaseOnce sync.Once
	releaseErr  error

	acquired atomic.Int64
	failed   atomic.Int64
	errLog   rate.Sometimes
}

// NewLoop returns a loop that has not been started.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		errLog: rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
}

// Start spawns the loop goroutine. It returns false if the loop was already
// started or already released.
func (l *Loop) Start() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.closed {
		return false
	}
	l.started = true
	metrics.RecorderStarted(string(l.cfg.Family))
	go l.run()
	return true
}

// Stop signals the loop to exit. Safe to call from any goroutine, any number of times.
func (l *Loop) Stop() {
	l.stopOnce.Do(l.cancel)
}

// Stopped reports whether Stop has been called.
func (l *Loop) Stopped() bool {
	return l.ctx.Err() != nil
}

// Join waits for the loop to release the device and returns the release
// error. A loop that was never started releases inline. Every call returns
// the same result.
func (l *Loop) Join() error {
	l.mu.Lock()
	started := l.started
	l.closed = true
	l.mu.Unlock()

	if started {
		<-l.done
		return l.releaseErr
	}
	l.Stop()
	l.release()
	return l.releaseErr
}

// Acquired returns the number of successful acquisitions.
func (l *Loop) Acquired() int64 { return l.acquired.Load() }

// Failed returns the number of failed acquisitions.
func (l *Loop) Failed() int64 { return l.failed.Load() }

func (l *Loop) release() {
	l.releaseOnce.Do(func() {
		if l.cfg.Release == nil {
			return
		}
		if err := l.cfg.Release(); err != nil {
			l.releaseErr = err
			l.cfg.Logger.Warn().Err(err).
				Str(log.FieldEvent, "device.release_failed").
				Msg("device release failed")
		}
	})
}

func (l *Loop) run() {
	defer close(l.done)
	defer metrics.RecorderStopped(string(l.cfg.Family))
	defer l.release()

	stop := l.ctx.Done()
	timer := time.NewTimer(l.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := l.cfg.Acquire(l.ctx); err != nil {
			if l.ctx.Err() != nil {
				// Interrupted by stop, not a device fault.
				return
			}
			n := l.failed.Add(1)
			metrics.IncAcquire(string(l.cfg.Family), false)
			l.errLog.Do(func() {
				l.cfg.Logger.Warn().Err(err).
					Str(log.FieldEvent, "device.acquire_failed").
					Int64("failed_total", n).
					Msg("acquire failed, continuing")
			})
		} else {
			l.acquired.Add(1)
			metrics.IncAcquire(string(l.cfg.Family), true)
		}

		timer.Reset(l.cfg.Interval)
		select {
		case <-stop:
			return
		case <-timer.C:
		}
	}
}
