package ingress

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/SigmaX-ai/bolson/metric"
)

// Metrics holds Prometheus metrics for the TCP ingress client, grounded on
// input/udp's newMetrics shape (nil-registry guard preserved: nil input
// means nil feature).
type Metrics struct {
	recordsReceived prometheus.Counter
	bytesReceived   prometheus.Counter
	buffersFilled   prometheus.Counter
	bufferFullWait  prometheus.Counter
	connectionErrs  prometheus.Counter
	lastActivity    prometheus.Gauge
}

func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		recordsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bolson", Subsystem: "ingress", Name: "records_received_total",
			Help: "Total JSON records received from the TCP source",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bolson", Subsystem: "ingress", Name: "bytes_received_total",
			Help: "Total bytes received from the TCP source",
		}),
		buffersFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bolson", Subsystem: "ingress", Name: "buffers_filled_total",
			Help: "Total JSONBuffers submitted to the raw-JSON queue",
		}),
		bufferFullWait: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bolson", Subsystem: "ingress", Name: "buffer_full_wait_total",
			Help: "Times ingress blocked waiting for an empty buffer",
		}),
		connectionErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bolson", Subsystem: "ingress", Name: "connection_errors_total",
			Help: "TCP connection or read errors encountered",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bolson", Subsystem: "ingress", Name: "last_activity_unixtime",
			Help: "Unix timestamp of the last record received",
		}),
	}

	_ = registry.RegisterCounter("ingress", "records_received_total", m.recordsReceived)
	_ = registry.RegisterCounter("ingress", "bytes_received_total", m.bytesReceived)
	_ = registry.RegisterCounter("ingress", "buffers_filled_total", m.buffersFilled)
	_ = registry.RegisterCounter("ingress", "buffer_full_wait_total", m.bufferFullWait)
	_ = registry.RegisterCounter("ingress", "connection_errors_total", m.connectionErrs)
	_ = registry.RegisterGauge("ingress", "last_activity_unixtime", m.lastActivity)

	return m
}
