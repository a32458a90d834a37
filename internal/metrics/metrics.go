// Package metrics exposes Prometheus instrumentation for the stream session
// and the capture pipeline. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meetstream"

// Frame kinds for FramesSent.
const (
	FrameLive      = "live"
	FrameMuted     = "muted"
	FrameKeepAlive = "keepalive"
	FrameControl   = "control"
)

// Metrics holds all collectors.
type Metrics struct {
	registry *prometheus.Registry

	dials           *prometheus.CounterVec
	reconnects      prometheus.Counter
	messages        *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	state           *prometheus.GaugeVec
	framesSent      *prometheus.CounterVec
	framesDropped   prometheus.Counter
	captureFailures prometheus.Counter
	ledgerEntries   prometheus.Gauge
	downloadsArmed  prometheus.Counter
	sendBytes       prometheus.Counter
	captureSessions *prometheus.CounterVec
}

// New creates a Metrics registered on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		dials: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "dials_total",
			Help:      "Connection attempts by result.",
		}, []string{"role", "result"}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect timers armed after a connection loss.",
		}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_total",
			Help:      "Inbound messages handled, by type.",
		}, []string{"type"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_dropped_total",
			Help:      "Inbound messages dropped, by reason.",
		}, []string{"reason"}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "state",
			Help:      "1 for the current lifecycle state of each role.",
		}, []string{"role", "state"}),
		framesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audio",
			Name:      "frames_sent_total",
			Help:      "Outbound frames written, by kind.",
		}, []string{"kind"}),
		framesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audio",
			Name:      "frames_dropped_total",
			Help:      "Outbound frames dropped because the transport was not open.",
		}),
		captureFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audio",
			Name:      "capture_start_failures_total",
			Help:      "Capture starts rolled back after a device failure.",
		}),
		ledgerEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transcript",
			Name:      "entries",
			Help:      "Entries currently held by the viewer ledger.",
		}),
		downloadsArmed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transcript",
			Name:      "download_windows_total",
			Help:      "Download windows armed by a session end.",
		}),
		sendBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "sent_bytes_total",
			Help:      "Bytes written to the transport.",
		}),
		captureSessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audio",
			Name:      "capture_starts_total",
			Help:      "Successful capture starts, by mode.",
		}, []string{"mode"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Dial(role string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.dials.WithLabelValues(role, result).Inc()
}

func (m *Metrics) ReconnectScheduled() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) Message(msgType string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(msgType).Inc()
}

func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

// State marks state as the current one for role and clears the others.
func (m *Metrics) State(role, state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(role, s).Set(v)
	}
}

func (m *Metrics) FrameSent(kind string, size int) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(kind).Inc()
	m.sendBytes.Add(float64(size))
}

func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.framesDropped.Inc()
}

func (m *Metrics) CaptureFailed() {
	if m == nil {
		return
	}
	m.captureFailures.Inc()
}

func (m *Metrics) CaptureStarted(mode string) {
	if m == nil {
		return
	}
	m.captureSessions.WithLabelValues(mode).Inc()
}

func (m *Metrics) LedgerSize(n int) {
	if m == nil {
		return
	}
	m.ledgerEntries.Set(float64(n))
}

func (m *Metrics) DownloadArmed() {
	if m == nil {
		return
	}
	m.downloadsArmed.Inc()
}
