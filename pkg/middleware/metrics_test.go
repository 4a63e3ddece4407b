package middleware

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/parley-dev/parley/pkg/protocol"
	"github.com/parley-dev/parley/pkg/server"
	"github.com/parley-dev/parley/pkg/session"
)

func resetGlobalMetricsForTest() {
	globalMetricsMu.Lock()
	globalMetrics = nil
	globalMetricsMu.Unlock()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	return m.GetGauge().GetValue()
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func newTestManager(t *testing.T) *server.SessionManager {
	t.Helper()
	sm := server.NewSessionManager(&server.Config{Logger: testLogger()}, testLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		sm.Shutdown(ctx)
	})
	return sm
}

func TestPrometheusInstrumentTracksSessionLifecycle(t *testing.T) {
	resetGlobalMetricsForTest()
	m := Prometheus(WithRegistry(prometheus.NewRegistry()))

	sm := newTestManager(t)
	m.Instrument(sm)

	s := session.NewGoroutineSession(&session.Config{Logger: testLogger()})
	if err := sm.Track(s); err != nil {
		t.Fatalf("Track: %v", err)
	}

	if got := gaugeValue(t, m.sessionsActive); got != 1 {
		t.Errorf("active_sessions = %v, want 1", got)
	}
	if got := counterValue(t, m.sessionsTotal.WithLabelValues("goroutine")); got != 1 {
		t.Errorf("sessions_total{goroutine} = %v, want 1", got)
	}

	s.Deliver(protocol.Event{Kind: "input", Data: "a"})
	s.Deliver(protocol.Event{Kind: "input", Data: "b"})
	s.Send(protocol.Output(map[string]any{"type": "text", "content": "x"}))

	sm.Remove(s.ID())

	if got := gaugeValue(t, m.sessionsActive); got != 0 {
		t.Errorf("active_sessions after close = %v, want 0", got)
	}
	if got := counterValue(t, m.eventsReceived); got != 2 {
		t.Errorf("client_events_total = %v, want 2", got)
	}
	// The output plus the close notification.
	if got := counterValue(t, m.commandsSent); got != 2 {
		t.Errorf("commands_sent_total = %v, want 2", got)
	}
	if got := histogramCount(t, m.sessionDuration.WithLabelValues("goroutine")); got != 1 {
		t.Errorf("session_duration_seconds count = %v, want 1", got)
	}
}

func TestPrometheusIsSingleton(t *testing.T) {
	resetGlobalMetricsForTest()
	a := Prometheus(WithRegistry(prometheus.NewRegistry()))
	b := Prometheus(WithRegistry(prometheus.NewRegistry()))
	if a != b {
		t.Error("second Prometheus() call built a new metric set")
	}
	if GetMetrics() != a {
		t.Error("GetMetrics() does not return the singleton")
	}
}

func TestRecordTransportError(t *testing.T) {
	resetGlobalMetricsForTest()
	RecordTransportError("early")

	m := Prometheus(WithRegistry(prometheus.NewRegistry()))
	RecordTransportError("websocket_read")
	RecordTransportError("websocket_read")

	if got := counterValue(t, m.transportErrors.WithLabelValues("websocket_read")); got != 2 {
		t.Errorf("transport_errors_total = %v, want 2", got)
	}
	if got := counterValue(t, m.transportErrors.WithLabelValues("early")); got != 0 {
		t.Errorf("pre-init error was recorded: %v", got)
	}
}
