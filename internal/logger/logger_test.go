package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf))
	l.Info("hello", "key", "value")
	l.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "key=value") {
		t.Errorf("text output missing message or attribute: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug messages should be filtered by default")
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf), WithJSON(true), WithPretty(true))
	l.Info("structured", "count", 42)

	var parsed map[string]any
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output should be JSON: %v (%q)", err, buf.String())
	}
	if parsed["msg"] != "structured" {
		t.Errorf("msg = %v; want structured", parsed["msg"])
	}
	if parsed["count"] != float64(42) {
		t.Errorf("count = %v; want 42", parsed["count"])
	}
}

func TestWithSource(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf), WithJSON(true), WithSource(true)).Info("located")

	var parsed map[string]any
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output should be JSON: %v (%q)", err, buf.String())
	}
	src, ok := parsed[slog.SourceKey].(map[string]any)
	if !ok {
		t.Fatalf("record should carry a source field, got %q", buf.String())
	}
	if file, _ := src["file"].(string); !strings.HasSuffix(file, "logger_test.go") {
		t.Errorf("source file = %v; want logger_test.go", src["file"])
	}

	buf.Reset()
	New(WithWriter(&buf), WithJSON(true)).Info("plain")
	if strings.Contains(buf.String(), `"source"`) {
		t.Error("source should be omitted by default")
	}
}

func TestNewPretty(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf), WithPretty(true), WithDebug(true))
	l.Debug("pretty output", "images", 3)

	out := buf.String()
	if !strings.Contains(out, "pretty output") || !strings.Contains(out, "images") {
		t.Errorf("pretty output missing content: %q", out)
	}
}

func TestWithLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf), WithLevel(slog.LevelWarn))
	l.Info("quiet")
	l.Warn("loud")

	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Errorf("level filter not applied: %q", buf.String())
	}
}

func TestWithWriters(t *testing.T) {
	var a, b bytes.Buffer
	New(WithWriters(&a, &b)).Info("both")
	if !strings.Contains(a.String(), "both") || !strings.Contains(b.String(), "both") {
		t.Error("every writer should receive the message")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
		wantErr  bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseLevel(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v; wantErr %v", tc.input, err, tc.wantErr)
			}
			if got != tc.expected {
				t.Errorf("ParseLevel(%q) = %v; want %v", tc.input, got, tc.expected)
			}
		})
	}
}

func TestFromFormat(t *testing.T) {
	for _, format := range []string{"", "text", "json", "Pretty"} {
		if _, err := FromFormat(format); err != nil {
			t.Errorf("FromFormat(%q) failed: %v", format, err)
		}
	}
	if _, err := FromFormat("xml"); err == nil {
		t.Error("FromFormat(xml) should fail")
	}
}
