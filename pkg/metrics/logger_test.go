package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func decodeJSONLine(t *testing.T, b []byte) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(b), &entry); err != nil {
		t.Fatalf("failed to parse JSON log line %q: %v", b, err)
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", LevelDebug},
		{"debug", LevelDebug},
		{" info ", LevelInfo},
		{"WARNING", LevelWarn},
		{"error", LevelError},
		{"off", LevelSilent},
		{"none", LevelSilent},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}

	for _, l := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelSilent} {
		if got := ParseLevel(l.String()); got != l {
			t.Errorf("ParseLevel(%q) = %v", l.String(), got)
		}
	}
}

func TestLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := TestLogger(&buf)

	logger.Info("entry committed", Fields{"index": 3, "kem_mode": "hybrid-lattice"})

	output := buf.String()
	for _, want := range []string{"level=info", `msg="entry committed"`, "index=3", "kem_mode=hybrid-lattice"} {
		if !strings.Contains(output, want) {
			t.Errorf("output %q missing %q", output, want)
		}
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := ProductionLogger(&buf)

	logger.Warn("chain verification failed", Fields{"index": 7})

	entry := decodeJSONLine(t, buf.Bytes())
	if entry["level"] != "warning" {
		t.Errorf("level = %v, want warning", entry["level"])
	}
	if entry["msg"] != "chain verification failed" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["index"] != float64(7) {
		t.Errorf("index = %v, want 7", entry["index"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected time field")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithLevel(LevelWarn))

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	for msg, want := range map[string]bool{
		"debug message": false,
		"info message":  false,
		"warn message":  true,
		"error message": true,
	} {
		if strings.Contains(output, msg) != want {
			t.Errorf("%q present = %v, want %v", msg, !want, want)
		}
	}
}

func TestLoggerSilentLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithLevel(LevelSilent))

	logger.Error("error")
	if buf.Len() > 0 {
		t.Errorf("expected no output with silent level, got %q", buf.String())
	}
	if logger.Enabled(LevelError) {
		t.Error("silent logger reports error level enabled")
	}
}

func TestLoggerWithAndNamed(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(
		WithOutput(&buf),
		WithFormat(FormatJSON),
		WithFields(Fields{"ledger": "abc"}),
		WithName("pqledger"),
	)

	child := logger.Named("ledger").With(Fields{"epoch": 2})
	child.Info("kem migrated", Fields{"mode": "quantum-safe-hqc"})

	entry := decodeJSONLine(t, buf.Bytes())
	if entry["logger"] != "pqledger.ledger" {
		t.Errorf("logger = %v", entry["logger"])
	}
	if entry["ledger"] != "abc" || entry["epoch"] != float64(2) || entry["mode"] != "quantum-safe-hqc" {
		t.Errorf("fields not merged: %v", entry)
	}
}

func TestDerivedLoggerLevelIsIndependent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(WithOutput(&buf), WithLevel(LevelError))
	child := parent.With(Fields{"k": "v"})

	child.SetLevel(LevelInfo)
	parent.Info("parent info")
	child.Info("child info")

	output := buf.String()
	if strings.Contains(output, "parent info") {
		t.Error("parent level changed by child")
	}
	if !strings.Contains(output, "child info") {
		t.Error("child did not log after SetLevel")
	}
}

func TestLoggerTextFieldOrder(t *testing.T) {
	var buf bytes.Buffer
	logger := TestLogger(&buf)

	logger.Info("test", Fields{"zebra": "1", "apple": "2", "mango": "3"})

	output := buf.String()
	apple := strings.Index(output, "apple=")
	mango := strings.Index(output, "mango=")
	zebra := strings.Index(output, "zebra=")
	if apple < 0 || apple > mango || mango > zebra {
		t.Errorf("fields should be sorted alphabetically: %q", output)
	}
}

func TestNullLogger(t *testing.T) {
	logger := NullLogger()
	logger.Debug("test")
	logger.Error("test")
	if logger.Enabled(LevelError) {
		t.Error("null logger should be disabled")
	}
}

func TestGlobalLogger(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)

	var buf bytes.Buffer
	SetLogger(TestLogger(&buf))
	Info("global test")

	if !strings.Contains(buf.String(), "global test") {
		t.Error("expected message from global logger")
	}
}
