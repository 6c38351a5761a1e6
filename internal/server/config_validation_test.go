package server

import (
	"strings"
	"testing"
)

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr []string
	}{
		{name: "defaults", env: nil},
		{name: "full valid", env: map[string]string{
			"LVS_ADDR":             "0.0.0.0:8080",
			"LVS_MAX_UPLOAD_BYTES": "104857600",
			"LVS_LOG_FORMAT":       "json",
			"LVS_LOG_LEVEL":        "debug",
			"LVS_SINK_TIMEOUT":     "5s",
			"DATABASE_URL":         "postgres://u:p@db:5432/lvs?sslmode=disable",
			"LVS_S3_ENDPOINT":      "http://minio:9000",
			"LVS_S3_ACCESS_KEY":    "minio",
			"LVS_S3_SECRET_KEY":    "minio123",
			"LVS_BUCKET":           "liveness",
			"LVS_KAFKA_BROKERS":    "kafka-1:9092, kafka-2:9092",
			"LVS_KAFKA_TOPIC":      "verifications",
			"LVS_MQTT_BROKER_URL":  "tcp://mqtt:1883",
			"LVS_MQTT_TOPIC":       "liveness/verifications",
			"LVS_WEBHOOK_URL":      "https://hooks.example.com/lvs",
		}},
		{name: "bad addr", env: map[string]string{"LVS_ADDR": "8080"}, wantErr: []string{"LVS_ADDR"}},
		{name: "port out of range", env: map[string]string{"LVS_ADDR": ":70000"}, wantErr: []string{"LVS_ADDR"}},
		{name: "negative upload limit", env: map[string]string{"LVS_MAX_UPLOAD_BYTES": "-1"}, wantErr: []string{"LVS_MAX_UPLOAD_BYTES"}},
		{name: "bad rate", env: map[string]string{"LVS_VERIFY_RATE_PER_MIN": "ten"}, wantErr: []string{"LVS_VERIFY_RATE_PER_MIN"}},
		{name: "bad sink timeout", env: map[string]string{"LVS_SINK_TIMEOUT": "10"}, wantErr: []string{"LVS_SINK_TIMEOUT"}},
		{name: "unknown log level", env: map[string]string{"LVS_LOG_LEVEL": "trace"}, wantErr: []string{"LVS_LOG_LEVEL"}},
		{name: "mysql url", env: map[string]string{"DATABASE_URL": "mysql://x"}, wantErr: []string{"DATABASE_URL"}},
		{name: "partial s3", env: map[string]string{"LVS_S3_ENDPOINT": "minio:9000"}, wantErr: []string{"LVS_S3_ACCESS_KEY", "LVS_S3_SECRET_KEY", "LVS_BUCKET"}},
		{name: "kafka without topic", env: map[string]string{"LVS_KAFKA_BROKERS": "kafka:9092"}, wantErr: []string{"LVS_KAFKA_TOPIC"}},
		{name: "kafka bad broker", env: map[string]string{"LVS_KAFKA_BROKERS": "kafka", "LVS_KAFKA_TOPIC": "t"}, wantErr: []string{"LVS_KAFKA_BROKERS"}},
		{name: "mqtt bad scheme", env: map[string]string{"LVS_MQTT_BROKER_URL": "http://mqtt:1883", "LVS_MQTT_TOPIC": "t"}, wantErr: []string{"LVS_MQTT_BROKER_URL"}},
		{name: "webhook bad scheme", env: map[string]string{"LVS_WEBHOOK_URL": "ftp://hooks.local/x"}, wantErr: []string{"LVS_WEBHOOK_URL"}},
		{name: "webhook secret without url", env: map[string]string{"LVS_WEBHOOK_SECRET": "s"}, wantErr: []string{"LVS_WEBHOOK_URL"}},
		{name: "mqtt wildcard topic", env: map[string]string{"LVS_MQTT_BROKER_URL": "tcp://mqtt:1883", "LVS_MQTT_TOPIC": "a/#"}, wantErr: []string{"LVS_MQTT_TOPIC"}},
	}

	keys := []string{
		"LVS_ADDR", "LVS_UPLOAD_DIR", "LVS_MAX_UPLOAD_BYTES", "LVS_LOG_FORMAT", "LVS_LOG_LEVEL",
		"LVS_VERIFY_RATE_PER_MIN", "LVS_SINK_TIMEOUT",
		"DATABASE_URL", "LVS_S3_ENDPOINT", "LVS_S3_ACCESS_KEY", "LVS_S3_SECRET_KEY", "LVS_BUCKET",
		"LVS_KAFKA_BROKERS", "LVS_KAFKA_TOPIC", "LVS_MQTT_BROKER_URL", "LVS_MQTT_TOPIC",
		"LVS_WEBHOOK_URL", "LVS_WEBHOOK_SECRET",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range keys {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			err := ValidateConfiguration()
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			for _, field := range tt.wantErr {
				if !strings.Contains(err.Error(), field) {
					t.Errorf("error does not mention %s: %v", field, err)
				}
			}
		})
	}
}

func TestConfigValidator_ErrorString(t *testing.T) {
	v := NewConfigValidator()
	v.AddError("A", "first")
	v.AddError("B", "second")

	if !v.HasErrors() || len(v.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(v.Errors()))
	}
	s := v.ErrorString()
	if !strings.Contains(s, "2 error(s)") || !strings.Contains(s, "1. config validation failed for A: first") {
		t.Errorf("unexpected error string:\n%s", s)
	}
}
