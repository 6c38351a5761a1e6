package main

import (
	"reflect"
	"testing"
	"time"

	"liveness-intake/internal/events"
)

func TestGetenvDefault(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		def      string
		envValue string
		want     string
	}{
		{
			name:     "env var set",
			key:      "TEST_VAR_SET",
			def:      "default",
			envValue: "custom",
			want:     "custom",
		},
		{
			name:     "env var empty",
			key:      "TEST_VAR_EMPTY",
			def:      "default",
			envValue: "",
			want:     "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.envValue)

			got := getenvDefault(tt.key, tt.def)
			if got != tt.want {
				t.Errorf("getenvDefault(%q, %q) = %q, want %q", tt.key, tt.def, got, tt.want)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a:1", []string{"a:1"}},
		{" a:1 , ,b:2,", []string{"a:1", "b:2"}},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{
		"LVS_ADDR", "LVS_UPLOAD_DIR", "LVS_MAX_UPLOAD_BYTES", "LVS_KAFKA_BROKERS",
		"LVS_S3_ENDPOINT", "LVS_MQTT_CLIENT_ID", "DATABASE_URL",
		"LVS_VERIFY_RATE_PER_MIN", "LVS_SINK_TIMEOUT",
	} {
		t.Setenv(k, "")
	}

	cfg := loadConfig()
	if cfg.Addr != "0.0.0.0:8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.UploadDir != "uploads" {
		t.Errorf("UploadDir = %q", cfg.UploadDir)
	}
	if cfg.MaxUploadBytes != 0 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if cfg.Mirror.Enabled() || cfg.DatabaseURL != "" || cfg.KafkaBrokers != nil {
		t.Errorf("sinks should be off by default: %+v", cfg)
	}
	if cfg.VerifyRate != 0 || cfg.SinkTimeout != 10*time.Second {
		t.Errorf("VerifyRate = %d, SinkTimeout = %s", cfg.VerifyRate, cfg.SinkTimeout)
	}
	if cfg.MQTTClientID != "liveness-intake" {
		t.Errorf("MQTTClientID = %q", cfg.MQTTClientID)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("LVS_ADDR", ":9090")
	t.Setenv("LVS_MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("LVS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LVS_KAFKA_TOPIC", "verifications")

	cfg := loadConfig()
	if cfg.Addr != ":9090" || cfg.MaxUploadBytes != 1<<20 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.KafkaBrokers, []string{"k1:9092", "k2:9092"}) {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
}

func TestBuildPublisher(t *testing.T) {
	p, err := buildPublisher(appConfig{})
	if err != nil {
		t.Fatalf("buildPublisher: %v", err)
	}
	if _, ok := p.(events.Nop); !ok {
		t.Errorf("expected Nop publisher, got %T", p)
	}

	p, err = buildPublisher(appConfig{KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "t"})
	if err != nil {
		t.Fatalf("buildPublisher: %v", err)
	}
	defer p.Close()
	if _, ok := p.(*events.KafkaPublisher); !ok {
		t.Errorf("expected Kafka publisher, got %T", p)
	}

	p, err = buildPublisher(appConfig{
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "t",
		WebhookURL:   "http://localhost:1/hook",
	})
	if err != nil {
		t.Fatalf("buildPublisher: %v", err)
	}
	defer p.Close()
	if m, ok := p.(events.Multi); !ok || len(m) != 2 {
		t.Errorf("expected two publishers behind Multi, got %T", p)
	}
}
