package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogLevelWarn, false)

	l.Debug("debug line", nil)
	l.Info("info line", nil)
	l.Warn("warn line", map[string]interface{}{"b": 2, "a": 1})

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("lines below warn were written:\n%s", out)
	}
	if !strings.Contains(out, "[warn]") || !strings.Contains(out, "warn line a=1 b=2") {
		t.Errorf("unexpected warn line: %q", out)
	}
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogLevelDebug, true)

	l.Error("save failed", map[string]interface{}{"rid": "r-1", "name": "x.txt"}, errors.New("disk full"))

	var entry LogEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not one JSON object: %v\n%s", err, buf.String())
	}
	if entry.Level != LogLevelError || entry.Message != "save failed" || entry.Error != "disk full" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.RequestID != "r-1" {
		t.Errorf("request id = %q", entry.RequestID)
	}
	if entry.Fields["name"] != "x.txt" {
		t.Errorf("fields = %v", entry.Fields)
	}
	if _, ok := entry.Fields["rid"]; ok {
		t.Error("rid should be lifted out of fields")
	}
	if !strings.HasPrefix(entry.Caller, "jsonlog_test.go:") {
		t.Errorf("caller = %q", entry.Caller)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":        LogLevelInfo,
		"debug":   LogLevelDebug,
		"WARN":    LogLevelWarn,
		" error ": LogLevelError,
		"verbose": LogLevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		xff, xri, remote, want string
	}{
		{"10.0.0.1, 10.0.0.2", "", "1.1.1.1:5000", "10.0.0.1"},
		{"", "10.0.0.9", "1.1.1.1:5000", "10.0.0.9"},
		{"", "", "1.1.1.1:5000", "1.1.1.1"},
		{"", "", "[::1]:5000", "::1"},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = c.remote
		if c.xff != "" {
			req.Header.Set("X-Forwarded-For", c.xff)
		}
		if c.xri != "" {
			req.Header.Set("X-Real-IP", c.xri)
		}
		if got := clientIP(req); got != c.want {
			t.Errorf("clientIP(xff=%q xri=%q remote=%q) = %q, want %q", c.xff, c.xri, c.remote, got, c.want)
		}
	}
}
