// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics exposes Prometheus instruments for the recording orchestrator.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	devicesDiscoveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rigrec_devices_discovered_total",
		Help: "Total number of devices returned by discovery, by family",
	}, []string{"family"})

	deviceFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rigrec_device_failures_total",
		Help: "Total number of devices dropped from a session, by family and lifecycle stage",
	}, []string{"family", "stage"})

	acquireTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rigrec_acquire_total",
		Help: "Total capture iterations by family and result",
	}, []string{"family", "result"})

	positioningRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rigrec_positioning_records_total",
		Help: "Total positioning records appended to session artifacts",
	})

	activeRecorders = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rigrec_active_recorders",
		Help: "Number of recorders with a running capture loop, by family",
	}, []string{"family"})

	stopDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rigrec_stop_duration_seconds",
		Help:    "Wall-clock time from stop request to all capture loops joined",
		Buckets: prometheus.ExponentialBuckets(0.001, 2.0, 16), // 1ms to ~65s
	})

	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rigrec_proc_terminate_total",
		Help: "Signals sent to driver child process groups, by signal and result",
	}, []string{"signal", "result"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rigrec_proc_wait_total",
		Help: "Driver child process exits observed during termination, by outcome",
	}, []string{"outcome"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rigrec_http_request_duration_seconds",
		Help:    "Status API request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// IncDevicesDiscovered records n devices returned by a discovery pass.
func IncDevicesDiscovered(family string, n int) {
	if n <= 0 {
		return
	}
	devicesDiscoveredTotal.WithLabelValues(normalizeFamily(family)).Add(float64(n))
}

// IncDeviceFailure records a device dropped at the given stage.
// stage ∈ {enumerate,open,start,skipped}; anything else maps to "unknown".
func IncDeviceFailure(family, stage string) {
	deviceFailuresTotal.WithLabelValues(normalizeFamily(family), normalizeStage(stage)).Inc()
}

// IncAcquire records one capture iteration outcome.
func IncAcquire(family string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	acquireTotal.WithLabelValues(normalizeFamily(family), result).Inc()
}

// IncPositioningRecords counts one appended positioning record.
func IncPositioningRecords() {
	positioningRecordsTotal.Inc()
}

// RecorderStarted marks a capture loop as running.
func RecorderStarted(family string) {
	activeRecorders.WithLabelValues(normalizeFamily(family)).Inc()
}

// RecorderStopped marks a capture loop as finished.
func RecorderStopped(family string) {
	activeRecorders.WithLabelValues(normalizeFamily(family)).Dec()
}

// ObserveStopDuration records how long a stop-then-join sequence took.
func ObserveStopDuration(d time.Duration) {
	stopDuration.Observe(d.Seconds())
}

// IncProcTerminate records a signal delivery attempt to a child process group.
func IncProcTerminate(signal, result string) {
	procTerminateTotal.WithLabelValues(signal, result).Inc()
}

// IncProcWait records how a terminated child process exited.
func IncProcWait(outcome string) {
	procWaitTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest records one status API request. path must be a route
// pattern, not the raw URL.
func ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	httpRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(d.Seconds())
}

func normalizeFamily(family string) string {
	switch f := strings.ToLower(strings.TrimSpace(family)); f {
	case "camera", "positioning":
		return f
	default:
		return "unknown"
	}
}

func normalizeStage(stage string) string {
	switch s := strings.ToLower(strings.TrimSpace(stage)); s {
	case "enumerate", "open", "start", "skipped":
		return s
	default:
		return "unknown"
	}
}
