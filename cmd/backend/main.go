package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"liveness-intake/internal/events"
	"liveness-intake/internal/server"
)

// appConfig is everything main reads from the environment.
type appConfig struct {
	Addr           string
	UploadDir      string
	SpoolDir       string
	MaxUploadBytes int64
	VerifyRate     int
	SinkTimeout    time.Duration
	LogLevel       string
	LogFormat      string
	Build          server.BuildInfo

	DatabaseURL string
	Mirror      server.MirrorConfig

	KafkaBrokers []string
	KafkaTopic   string

	MQTTBrokerURL string
	MQTTTopic     string
	MQTTClientID  string

	WebhookURL    string
	WebhookSecret string
}

func loadConfig() appConfig {
	maxBytes, _ := strconv.ParseInt(getenvDefault("LVS_MAX_UPLOAD_BYTES", "0"), 10, 64)
	rate, _ := strconv.Atoi(getenvDefault("LVS_VERIFY_RATE_PER_MIN", "0"))
	sinkTimeout, _ := time.ParseDuration(getenvDefault("LVS_SINK_TIMEOUT", "10s"))
	return appConfig{
		Addr:           getenvDefault("LVS_ADDR", "0.0.0.0:8080"),
		UploadDir:      getenvDefault("LVS_UPLOAD_DIR", "uploads"),
		SpoolDir:       getenvDefault("LVS_SPOOL_DIR", ""),
		MaxUploadBytes: maxBytes,
		VerifyRate:     rate,
		SinkTimeout:    sinkTimeout,
		LogLevel:       getenvDefault("LVS_LOG_LEVEL", "info"),
		LogFormat:      getenvDefault("LVS_LOG_FORMAT", "text"),
		Build: server.BuildInfo{
			Version: getenvDefault("LVS_VERSION", "dev"),
			Commit:  getenvDefault("LVS_COMMIT", "unknown"),
		},
		DatabaseURL: getenvDefault("DATABASE_URL", ""),
		Mirror: server.MirrorConfig{
			Endpoint:  getenvDefault("LVS_S3_ENDPOINT", ""),
			AccessKey: getenvDefault("LVS_S3_ACCESS_KEY", ""),
			SecretKey: getenvDefault("LVS_S3_SECRET_KEY", ""),
			Bucket:    getenvDefault("LVS_BUCKET", ""),
		},
		KafkaBrokers:  splitList(getenvDefault("LVS_KAFKA_BROKERS", "")),
		KafkaTopic:    getenvDefault("LVS_KAFKA_TOPIC", ""),
		MQTTBrokerURL: getenvDefault("LVS_MQTT_BROKER_URL", ""),
		MQTTTopic:     getenvDefault("LVS_MQTT_TOPIC", ""),
		MQTTClientID:  getenvDefault("LVS_MQTT_CLIENT_ID", "liveness-intake"),
		WebhookURL:    getenvDefault("LVS_WEBHOOK_URL", ""),
		WebhookSecret: getenvDefault("LVS_WEBHOOK_SECRET", ""),
	}
}

func main() {
	if err := server.ValidateConfiguration(); err != nil {
		log.Printf("service=backend msg=%q\n%s", "invalid_configuration", err)
		os.Exit(1)
	}
	cfg := loadConfig()

	logger := server.NewLogger(os.Stderr, server.ParseLogLevel(cfg.LogLevel), cfg.LogFormat == "json")

	srvCfg := server.Config{
		Addr:                cfg.Addr,
		Build:               cfg.Build,
		UploadDir:           cfg.UploadDir,
		SpoolDir:            cfg.SpoolDir,
		MaxUploadBytes:      cfg.MaxUploadBytes,
		Logger:              logger,
		SinkTimeout:         cfg.SinkTimeout,
		VerifyRatePerMinute: cfg.VerifyRate,
	}

	// Sinks are optional; a missing variable leaves the sink off.
	if cfg.DatabaseURL != "" {
		log.Printf("service=backend msg=%q", "opening_submission_index")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.SinkTimeout)
		index, err := server.OpenSubmissionIndex(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "db_init_failed", err)
			os.Exit(1)
		}
		defer func() { _ = index.Close() }()
		log.Printf("service=backend msg=%q", "migrations_complete")
		srvCfg.Index = index
	}

	if cfg.Mirror.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		mirror, err := server.NewArtifactMirror(ctx, cfg.Mirror)
		cancel()
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "minio_init_failed", err)
			os.Exit(1)
		}
		srvCfg.Mirror = mirror
	}

	publisher, err := buildPublisher(cfg)
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "events_init_failed", err)
		os.Exit(1)
	}
	defer func() { _ = publisher.Close() }()
	srvCfg.Publisher = publisher

	srv := server.New(srvCfg)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=backend msg=%q addr=%s version=%s commit=%s",
			"starting", cfg.Addr, cfg.Build.Version, cfg.Build.Commit)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("service=backend msg=%q signal=%s", "shutting_down", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("service=backend msg=%q err=%v", "shutdown_error", err)
			os.Exit(1)
		}
		log.Printf("service=backend msg=%q", "shutdown_complete")
	case err := <-errCh:
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "server_error", err)
			os.Exit(1)
		}
	}
}

// buildPublisher returns every configured broker behind one Publisher,
// or events.Nop when none is set.
func buildPublisher(cfg appConfig) (events.Publisher, error) {
	var pubs events.Multi

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		pubs = append(pubs, events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic))
	}

	if cfg.MQTTBrokerURL != "" && cfg.MQTTTopic != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		p, err := events.NewMQTTPublisher(ctx, events.MQTTOptions{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topic:     cfg.MQTTTopic,
		})
		if err != nil {
			_ = pubs.Close()
			return nil, err
		}
		pubs = append(pubs, p)
	}

	if cfg.WebhookURL != "" {
		pubs = append(pubs, events.NewWebhookPublisher(events.WebhookOptions{
			URL:    cfg.WebhookURL,
			Secret: cfg.WebhookSecret,
		}))
	}

	switch len(pubs) {
	case 0:
		return events.Nop{}, nil
	case 1:
		return pubs[0], nil
	}
	return pubs, nil
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
