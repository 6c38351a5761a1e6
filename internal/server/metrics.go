package server

import (
	"sort"
	"sync"
	"time"
)

const maxDurationSamples = 1000

// Metrics holds application metrics
type Metrics struct {
	mu sync.RWMutex

	started time.Time

	// Submission metrics
	submissionsTotal        int64
	submissionBytesTotal    int64
	validationFailuresTotal int64
	submissionErrorsTotal   int64
	transcriptFailuresTotal int64
	sinkFailuresTotal       int64
	submitDurations         []float64

	// Download metrics
	downloadsTotal      int64
	downloadBytesTotal  int64
	downloadErrorsTotal int64

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
}

// NewMetrics returns zeroed counters with the uptime clock started.
func NewMetrics() *Metrics {
	return &Metrics{started: time.Now()}
}

// RecordSubmission records a stored submission
func (m *Metrics) RecordSubmission(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissionsTotal++
	m.submissionBytesTotal += bytes
	m.submitDurations = append(m.submitDurations, float64(duration.Microseconds())/1000)
	if len(m.submitDurations) > maxDurationSamples {
		m.submitDurations = m.submitDurations[len(m.submitDurations)-maxDurationSamples:]
	}
}

// RecordValidationFailure records a submission rejected with a 4xx
func (m *Metrics) RecordValidationFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validationFailuresTotal++
}

// RecordSubmissionError records a submission that failed with a 5xx
func (m *Metrics) RecordSubmissionError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissionErrorsTotal++
}

// RecordTranscriptFailure records a transcript that could not be written
func (m *Metrics) RecordTranscriptFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcriptFailuresTotal++
}

// RecordSinkFailure records a failed index, mirror or publish call
func (m *Metrics) RecordSinkFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinkFailuresTotal++
}

// RecordDownload records a successful download
func (m *Metrics) RecordDownload(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadsTotal++
	m.downloadBytesTotal += bytes
}

// RecordDownloadError records a download error
func (m *Metrics) RecordDownloadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadErrorsTotal++
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p50, p95, p99 := percentiles(m.submitDurations)
	return MetricsSnapshot{
		SubmissionsTotal:        m.submissionsTotal,
		SubmissionBytesTotal:    m.submissionBytesTotal,
		ValidationFailuresTotal: m.validationFailuresTotal,
		SubmissionErrorsTotal:   m.submissionErrorsTotal,
		TranscriptFailuresTotal: m.transcriptFailuresTotal,
		SinkFailuresTotal:       m.sinkFailuresTotal,
		SubmitP50Ms:             p50,
		SubmitP95Ms:             p95,
		SubmitP99Ms:             p99,
		DownloadsTotal:          m.downloadsTotal,
		DownloadBytesTotal:      m.downloadBytesTotal,
		DownloadErrorsTotal:     m.downloadErrorsTotal,
		RequestsTotal:           m.requestsTotal,
		RequestErrors5xx:        m.requestErrors5xx,
		RequestErrors4xx:        m.requestErrors4xx,
		UptimeSeconds:           time.Since(m.started).Seconds(),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	// Submission metrics
	SubmissionsTotal        int64   `json:"submissions_total"`
	SubmissionBytesTotal    int64   `json:"submission_bytes_total"`
	ValidationFailuresTotal int64   `json:"validation_failures_total"`
	SubmissionErrorsTotal   int64   `json:"submission_errors_total"`
	TranscriptFailuresTotal int64   `json:"transcript_failures_total"`
	SinkFailuresTotal       int64   `json:"sink_failures_total"`
	SubmitP50Ms             float64 `json:"submit_p50_ms"`
	SubmitP95Ms             float64 `json:"submit_p95_ms"`
	SubmitP99Ms             float64 `json:"submit_p99_ms"`

	// Download metrics
	DownloadsTotal      int64 `json:"downloads_total"`
	DownloadBytesTotal  int64 `json:"download_bytes_total"`
	DownloadErrorsTotal int64 `json:"download_errors_total"`

	// System metrics
	RequestsTotal    int64   `json:"requests_total"`
	RequestErrors5xx int64   `json:"request_errors_5xx"`
	RequestErrors4xx int64   `json:"request_errors_4xx"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

func percentiles(samples []float64) (p50, p95, p99 float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	p50 = sorted[len(sorted)*50/100]
	p95 = sorted[len(sorted)*95/100]
	p99 = sorted[len(sorted)*99/100]
	return
}
