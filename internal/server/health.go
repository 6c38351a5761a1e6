package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"liveness-intake/internal/submission"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// Health represents the complete readiness response
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
	Details   interface{}     `json:"details,omitempty"`

	// critical components make the whole service unhealthy when down.
	critical bool
}

// healthHandler serves GET /health. It answers as long as the process runs.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "server_is_running",
		"timestamp": s.now().Format(submission.ISOLayout),
	})
}

// readyHandler serves GET /ready with per-component detail.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	health := s.checkHealth(r.Context())

	statusCode := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(health)
}

// checkHealth performs health checks on all configured components
func (s *Server) checkHealth(ctx context.Context) Health {
	health := Health{
		Timestamp:  s.now(),
		Version:    s.cfg.Build.Version,
		Components: make(map[string]ComponentHealth),
	}

	health.Components["storage"] = s.checkStorageHealth()

	if s.index != nil {
		health.Components["database"] = s.checkDatabaseHealth(ctx)
	}
	if s.mirror != nil {
		health.Components["minio"] = s.checkMinIOHealth(ctx)
	}

	health.Status = determineOverallHealth(health.Components)
	return health
}

// checkStorageHealth verifies the upload directory exists and accepts writes
func (s *Server) checkStorageHealth() ComponentHealth {
	start := time.Now()

	if err := s.store.Check(); err != nil {
		return ComponentHealth{
			Status:   ComponentStatusDown,
			Message:  "upload directory unavailable: " + err.Error(),
			critical: true,
		}
	}

	probe, err := os.CreateTemp(s.store.Dir(), ".ready-*")
	if err != nil {
		return ComponentHealth{
			Status:   ComponentStatusDown,
			Message:  "upload directory not writable: " + err.Error(),
			critical: true,
		}
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	return ComponentHealth{
		Status:    ComponentStatusUp,
		Message:   "storage healthy",
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
		Details:   map[string]string{"upload_dir": filepath.Clean(s.store.Dir())},
		critical:  true,
	}
}

// checkDatabaseHealth checks PostgreSQL connectivity
func (s *Server) checkDatabaseHealth(ctx context.Context) ComponentHealth {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.index.Ping(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "database ping failed: " + err.Error(),
		}
	}

	latency := time.Since(start).Milliseconds()
	status := ComponentStatusUp
	message := "database healthy"
	if latency > 1000 {
		status = ComponentStatusDegraded
		message = "database latency high"
	}

	return ComponentHealth{
		Status:    status,
		Message:   message,
		LatencyMs: float64(latency),
	}
}

// checkMinIOHealth checks MinIO/S3 connectivity
func (s *Server) checkMinIOHealth(ctx context.Context) ComponentHealth {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.mirror.BucketReady(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "minio check failed: " + err.Error(),
		}
	}

	latency := time.Since(start).Milliseconds()
	status := ComponentStatusUp
	message := "minio healthy"
	if latency > 2000 {
		status = ComponentStatusDegraded
		message = "minio latency high"
	}

	return ComponentHealth{
		Status:    status,
		Message:   message,
		LatencyMs: float64(latency),
		Details:   map[string]string{"bucket": s.mirror.Bucket()},
	}
}

// determineOverallHealth calculates overall health from component statuses.
// Only a critical component being down makes the service unhealthy; a down
// sink degrades it.
func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	var degraded bool

	for _, component := range components {
		switch component.Status {
		case ComponentStatusDown:
			if component.critical {
				return HealthStatusUnhealthy
			}
			degraded = true
		case ComponentStatusDegraded:
			degraded = true
		}
	}

	if degraded {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}
