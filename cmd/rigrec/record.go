// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManuGH/rigrec/internal/config"
	"github.com/ManuGH/rigrec/internal/controller"
	"github.com/ManuGH/rigrec/internal/device"
	"github.com/ManuGH/rigrec/internal/health"
	"github.com/ManuGH/rigrec/internal/log"
	"github.com/ManuGH/rigrec/internal/statusapi"
	"github.com/ManuGH/rigrec/internal/version"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type recordOptions struct {
	duration     time.Duration
	statusListen string
}

func addRecordFlags(cmd *cobra.Command, rec *recordOptions) {
	f := cmd.Flags()
	f.DurationVar(&rec.duration, "duration", 0, "stop automatically after this long (0 records until stopped)")
	f.StringVar(&rec.statusListen, "status-listen", "", "serve the status API on this address, e.g. 127.0.0.1:9470")
}

func newRecordCmd(opts *rootOptions) *cobra.Command {
	rec := &recordOptions{}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record every available device until stopped (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecord(cmd, opts, rec)
		},
	}
	addRecordFlags(cmd, rec)
	return cmd
}

func runRecord(cmd *cobra.Command, opts *rootOptions, rec *recordOptions) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("status-listen") {
		cfg.Status.Listen = rec.statusListen
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	configureLogging(cmd, cfg)
	logger := log.WithComponent("record")

	if err := health.PerformStartupChecks(cfg); err != nil {
		return err
	}
	drivers, err := controller.DriversFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stopSignals := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if rec.duration > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, rec.duration)
		defer cancelTimeout()
	}

	ctrl, err := controller.New(controller.Options{Config: cfg, Drivers: drivers})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	n, err := ctrl.DiscoverAndOpen(ctx)
	if err != nil {
		if errors.Is(err, controller.ErrNoDevices) {
			printSummary(out, ctrl.Status())
			return &exitError{code: exitNoDevices, err: err}
		}
		return err
	}

	var srvErr <-chan error
	if cfg.Status.Listen != "" {
		srv := statusapi.NewServer(cfg.Status.Listen, newStatusHandler(ctrl))
		if err := srv.Start(); err != nil {
			_ = ctrl.StopAll()
			return err
		}
		defer func() {
			if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Warn().Err(err).Msg("status API shutdown failed")
			}
		}()
		srvErr = srv.Err()
		_, _ = fmt.Fprintf(out, "Status API on http://%s\n", srv.Addr())
	}

	ctrl.BeginAll()
	_, _ = fmt.Fprintf(out, "Recording %d device(s) into %s\n", n, ctrl.Layout().Root())
	if isTerminal(cmd.InOrStdin()) {
		_, _ = fmt.Fprintln(out, "Press Enter or Ctrl+C to stop.")
		go waitForEnter(cmd.InOrStdin(), cancel)
	}

	select {
	case <-ctx.Done():
	case err, ok := <-srvErr:
		if ok && err != nil {
			logger.Error().Err(err).Msg("status API failed, stopping recording")
		}
	}

	if err := ctrl.StopAll(); err != nil {
		logger.Warn().Err(err).
			Str(log.FieldEvent, "record.release_errors").
			Msg("some devices reported errors while releasing")
	}
	printSummary(out, ctrl.Status())
	return nil
}

func newStatusHandler(ctrl *controller.Controller) http.Handler {
	hm := health.NewManager(version.Get().Version)
	hm.RegisterChecker(health.NewDirChecker("session_dir", ctrl.Layout().Root()))
	hm.RegisterChecker(health.NewRecordersChecker(func() health.RecorderCounts {
		snap := ctrl.Status()
		var c health.RecorderCounts
		for _, r := range snap.Recorders {
			if r.State == device.StateRecording {
				c.Recording++
			}
		}
		c.Dropped = len(snap.Dropped)
		return c
	}))
	return statusapi.NewRouter(statusapi.Deps{
		Source: ctrl,
		Health: hm,
		Logger: log.WithComponent("statusapi"),
	})
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// waitForEnter calls stop once a line is read from r.
func waitForEnter(r io.Reader, stop context.CancelFunc) {
	if _, err := bufio.NewReader(r).ReadString('\n'); err == nil || errors.Is(err, io.EOF) {
		stop()
	}
}

// printSummary reports where each artifact was written and why dropped
// devices are missing.
func printSummary(w io.Writer, snap controller.Snapshot) {
	_, _ = fmt.Fprintf(w, "Session directory: %s\n", snap.SessionRoot)
	for _, r := range snap.Recorders {
		switch r.Family {
		case device.FamilyCamera:
			_, _ = fmt.Fprintf(w, "  camera %s saved to %s (%d grabs, %d errors)\n", r.ID, r.OutputPath, r.Acquired, r.Failed)
		case device.FamilyPositioning:
			_, _ = fmt.Fprintf(w, "  positioning data saved to %s (%d samples, %d errors)\n", r.OutputPath, r.Acquired, r.Failed)
		}
	}
	for _, d := range snap.Dropped {
		_, _ = fmt.Fprintf(w, "  dropped %s %s: %s\n", d.Family, d.ID, d.Error)
	}
	for _, s := range snap.Skipped {
		_, _ = fmt.Fprintf(w, "  skipped %s %s\n", s.Family, s.ID)
	}
}
