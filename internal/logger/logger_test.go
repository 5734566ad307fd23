package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"NORMAL", zerolog.InfoLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"EXTRA", zerolog.TraceLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{" Error ", zerolog.ErrorLevel, false},
		{"chatty", zerolog.NoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "info", JSON: true, Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug().Msg("hidden")
	log.Info().Str("dashboard", "Ops").Msg("dashboard created")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["dashboard"] != "Ops" || entry["message"] != "dashboard created" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "DEBUG", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug().Msg("step done")
	if !strings.Contains(buf.String(), "step done") {
		t.Errorf("console output missing message: %q", buf.String())
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("console output to a buffer should not be colored: %q", buf.String())
	}
}
