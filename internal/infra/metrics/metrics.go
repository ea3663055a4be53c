// internal/infra/metrics/metrics.go
package metrics

import (
	"io"
	"strconv"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
)

var enabled atomic.Bool

// Init switches metric collection on or off. Recording is a no-op while disabled.
func Init(on bool) {
	enabled.Store(on)
}

// IsEnabled returns true if metrics collection is enabled
func IsEnabled() bool {
	return enabled.Load()
}

// WritePrometheus writes every registered metric in Prometheus text format.
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, true)
}

// RecordMessage counts an outbound message. kind is video, reminder or test.
func RecordMessage(kind, language string, success bool) {
	if !IsEnabled() {
		return
	}
	status := "sent"
	if !success {
		status = "failed"
	}
	// VictoriaMetrics/metrics API: include labels in metric name
	name := `estirar_messages_total{kind="` + kind + `",language="` + language + `",status="` + status + `"}`
	metrics.GetOrCreateCounter(name).Inc()
}

// RecordReply counts an inbound reply attached to a log.
func RecordReply(completed bool) {
	if !IsEnabled() {
		return
	}
	name := `estirar_replies_total{completed="` + strconv.FormatBool(completed) + `"}`
	metrics.GetOrCreateCounter(name).Inc()
}

// RecordSkip counts a recipient skipped on a reminder tick.
func RecordSkip(reason string) {
	if !IsEnabled() {
		return
	}
	metrics.GetOrCreateCounter(`estirar_skips_total{reason="` + reason + `"}`).Inc()
}

// RecordDroppedReply counts replies that could not be attached.
func RecordDroppedReply(reason string) {
	if !IsEnabled() {
		return
	}
	metrics.GetOrCreateCounter(`estirar_dropped_replies_total{reason="` + reason + `"}`).Inc()
}

// RecordCycleRun counts a finished tick and tracks its duration.
func RecordCycleRun(mode string, seconds float64) {
	if !IsEnabled() {
		return
	}
	metrics.GetOrCreateCounter(`estirar_cycle_runs_total{mode="` + mode + `"}`).Inc()
	metrics.GetOrCreateHistogram(`estirar_cycle_duration_seconds{mode="` + mode + `"}`).Update(seconds)
}
