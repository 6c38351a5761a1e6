package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"liveness-intake/internal/events"
	"liveness-intake/internal/storage"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string
	Commit  string
}

// Index records accepted submissions. *SubmissionIndex implements it.
type Index interface {
	Record(ctx context.Context, rec SubmissionRecord) (string, error)
	Recent(ctx context.Context, limit int) ([]SubmissionRecord, error)
	Ping(ctx context.Context) error
}

// Mirror copies artifacts to object storage. *ArtifactMirror implements it.
type Mirror interface {
	Put(ctx context.Context, receivedAt time.Time, name string, r io.Reader, size int64, contentType string) (string, error)
	BucketReady(ctx context.Context) error
	Bucket() string
}

type Config struct {
	Addr  string // e.g. ":8080"
	Build BuildInfo

	UploadDir      string
	SpoolDir       string // videos received before metadata; OS temp dir when empty
	MaxUploadBytes int64  // 0 means unlimited

	Logger    *Logger
	AccessLog *log.Logger
	Now       func() time.Time

	// Optional sinks, nil when not configured.
	Index       Index
	Mirror      Mirror
	Publisher   events.Publisher
	SinkTimeout time.Duration

	// A sink is skipped for BreakerCooldown after BreakerFailures
	// consecutive failures.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	// VerifyRatePerMinute caps POST /verify per client IP; 0 disables it.
	VerifyRatePerMinute int
}

type Server struct {
	cfg        Config
	store      *storage.Store
	metrics    *Metrics
	log        *Logger
	accessLog  *log.Logger
	now        func() time.Time
	index      Index
	mirror     Mirror
	publisher  events.Publisher
	breakers   sinkBreakers
	limiter    *rateLimiter
	handler    http.Handler
	httpServer *http.Server
}

func New(cfg Config) *Server {
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.Logger == nil {
		cfg.Logger = NewLogger(os.Stdout, LogLevelInfo, false)
	}
	if cfg.AccessLog == nil {
		cfg.AccessLog = log.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.Nop{}
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	s := &Server{
		cfg:       cfg,
		store:     storage.New(cfg.UploadDir, cfg.SpoolDir),
		metrics:   NewMetrics(),
		log:       cfg.Logger,
		accessLog: cfg.AccessLog,
		now:       cfg.Now,
		index:     cfg.Index,
		mirror:    cfg.Mirror,
		publisher: cfg.Publisher,
		breakers:  sinkBreakers{},
	}

	if cfg.Index != nil {
		s.breakers[sinkIndex] = NewCircuitBreaker(sinkIndex, cfg.BreakerFailures, cfg.BreakerCooldown, s.log)
	}
	if cfg.Mirror != nil {
		s.breakers[sinkMirror] = NewCircuitBreaker(sinkMirror, cfg.BreakerFailures, cfg.BreakerCooldown, s.log)
	}
	if _, ok := cfg.Publisher.(events.Nop); !ok {
		s.breakers[sinkEvents] = NewCircuitBreaker(sinkEvents, cfg.BreakerFailures, cfg.BreakerCooldown, s.log)
	}

	verify := s.verifyHandler
	if cfg.VerifyRatePerMinute > 0 {
		s.limiter = newRateLimiter(cfg.VerifyRatePerMinute, time.Minute)
		verify = s.limiter.middleware(verify)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /verify", verify)
	mux.HandleFunc("OPTIONS /verify", preflightHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.HandleFunc("GET /files", s.filesHandler)
	mux.HandleFunc("GET /download/{filename}", s.downloadHandler)
	mux.HandleFunc("GET /submissions", s.submissionsHandler)
	mux.HandleFunc("GET /metrics", s.metricsHandler)
	mux.HandleFunc("GET /{$}", s.indexHandler)

	// Wrap middleware: requestID -> logging -> cors -> security -> compression -> mux
	var handler http.Handler = mux
	handler = CompressionMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = corsMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics exposes the server's counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start ensures the upload directory exists and serves until Shutdown.
func (s *Server) Start() error {
	if err := s.store.Ensure(); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

// indexHandler serves GET / with the endpoint map.
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Liveness Verification Server",
		"endpoints": map[string]string{
			"verify":      "POST /verify - submit JSON data and liveness video",
			"health":      "GET /health - health check",
			"ready":       "GET /ready - readiness with component status",
			"files":       "GET /files - list stored files",
			"download":    "GET /download/<filename> - download a stored file",
			"submissions": "GET /submissions - recent indexed submissions",
			"metrics":     "GET /metrics - Prometheus metrics",
		},
	})
}

func preflightHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
