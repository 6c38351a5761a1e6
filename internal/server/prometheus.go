// prometheus.go - Prometheus text exporter
package server

import (
	"fmt"
	"net/http"
	"strings"
)

func writeMetric(b *strings.Builder, name, kind, help string, value any) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, kind)
	switch v := value.(type) {
	case float64:
		fmt.Fprintf(b, "%s %g\n\n", name, v)
	default:
		fmt.Fprintf(b, "%s %v\n\n", name, v)
	}
}

// renderPrometheus formats a snapshot in the Prometheus text exposition format.
func renderPrometheus(s MetricsSnapshot, build BuildInfo, breakers []CircuitBreakerStats) string {
	var b strings.Builder

	b.WriteString("# HELP lvs_info Application version info\n")
	b.WriteString("# TYPE lvs_info gauge\n")
	fmt.Fprintf(&b, "lvs_info{version=\"%s\",commit=\"%s\"} 1\n\n",
		prometheusLabel(build.Version), prometheusLabel(build.Commit))

	writeMetric(&b, "lvs_requests_total", "counter", "Total number of HTTP requests", s.RequestsTotal)

	b.WriteString("# HELP lvs_request_errors_total HTTP responses with an error status\n")
	b.WriteString("# TYPE lvs_request_errors_total counter\n")
	fmt.Fprintf(&b, "lvs_request_errors_total{class=\"4xx\"} %d\n", s.RequestErrors4xx)
	fmt.Fprintf(&b, "lvs_request_errors_total{class=\"5xx\"} %d\n\n", s.RequestErrors5xx)

	writeMetric(&b, "lvs_submissions_total", "counter", "Total number of stored verification submissions", s.SubmissionsTotal)
	writeMetric(&b, "lvs_submission_bytes_total", "counter", "Total video bytes stored", s.SubmissionBytesTotal)
	writeMetric(&b, "lvs_validation_failures_total", "counter", "Submissions rejected as invalid", s.ValidationFailuresTotal)
	writeMetric(&b, "lvs_submission_errors_total", "counter", "Submissions that failed with an internal error", s.SubmissionErrorsTotal)
	writeMetric(&b, "lvs_transcript_failures_total", "counter", "Transcripts that could not be written", s.TranscriptFailuresTotal)
	writeMetric(&b, "lvs_sink_failures_total", "counter", "Failed index, mirror or event deliveries", s.SinkFailuresTotal)

	if len(breakers) > 0 {
		b.WriteString("# HELP lvs_sink_circuit_state Sink circuit breaker state (0 closed, 1 open, 2 half-open)\n")
		b.WriteString("# TYPE lvs_sink_circuit_state gauge\n")
		for _, cb := range breakers {
			fmt.Fprintf(&b, "lvs_sink_circuit_state{sink=\"%s\"} %d\n", prometheusLabel(cb.Name), int(cb.State))
		}
		b.WriteString("\n# HELP lvs_sink_rejected_total Sink calls skipped by an open circuit\n")
		b.WriteString("# TYPE lvs_sink_rejected_total counter\n")
		for _, cb := range breakers {
			fmt.Fprintf(&b, "lvs_sink_rejected_total{sink=\"%s\"} %d\n", prometheusLabel(cb.Name), cb.RejectedRequests)
		}
		b.WriteString("\n")
	}

	b.WriteString("# HELP lvs_submit_duration_ms Submission handling time in milliseconds\n")
	b.WriteString("# TYPE lvs_submit_duration_ms summary\n")
	fmt.Fprintf(&b, "lvs_submit_duration_ms{quantile=\"0.5\"} %g\n", s.SubmitP50Ms)
	fmt.Fprintf(&b, "lvs_submit_duration_ms{quantile=\"0.95\"} %g\n", s.SubmitP95Ms)
	fmt.Fprintf(&b, "lvs_submit_duration_ms{quantile=\"0.99\"} %g\n\n", s.SubmitP99Ms)

	writeMetric(&b, "lvs_downloads_total", "counter", "Total number of artifact downloads", s.DownloadsTotal)
	writeMetric(&b, "lvs_download_bytes_total", "counter", "Total bytes served by downloads", s.DownloadBytesTotal)
	writeMetric(&b, "lvs_download_errors_total", "counter", "Downloads that failed", s.DownloadErrorsTotal)

	b.WriteString("# HELP lvs_uptime_seconds Application uptime in seconds\n")
	b.WriteString("# TYPE lvs_uptime_seconds counter\n")
	fmt.Fprintf(&b, "lvs_uptime_seconds %.0f\n", s.UptimeSeconds)

	return b.String()
}

// metricsHandler serves GET /metrics.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(renderPrometheus(s.metrics.Snapshot(), s.cfg.Build, s.breakers.stats())))
}

// prometheusLabel escapes a label value.
func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "\\n")
	return value
}
