package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestLoggerRecordsStatusAndSize(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("not here"))
	}))

	req := httptest.NewRequest("GET", "/s/sometoken", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var entry struct {
		Level  string `json:"level"`
		Path   string `json:"path"`
		Status int    `json:"status"`
		Bytes  int    `json:"bytes"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry.Level != "WARN" {
		t.Errorf("level = %q, want WARN for 4xx", entry.Level)
	}
	if entry.Path != "/s/sometoken" {
		t.Errorf("path = %q", entry.Path)
	}
	if entry.Status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", entry.Status)
	}
	if entry.Bytes != len("not here") {
		t.Errorf("bytes = %d, want %d", entry.Bytes, len("not here"))
	}
}

func TestRequestLoggerDefaultsOKStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	// Handler writes a body without an explicit WriteHeader.
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var entry struct {
		Level  string `json:"level"`
		Status int    `json:"status"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry.Level != "INFO" || entry.Status != http.StatusOK {
		t.Errorf("level/status = %q/%d, want INFO/200", entry.Level, entry.Status)
	}
}
