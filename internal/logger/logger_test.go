package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "", want: zerolog.InfoLevel},
		{in: "debug", want: zerolog.DebugLevel},
		{in: "ERROR", want: zerolog.ErrorLevel},
		{in: "warn", want: zerolog.WarnLevel},
		{in: "nonsense", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewWritesServiceField(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", ServiceName: "identity-service", Output: &buf})

	log.Component("registration").Info().Str("user_id", "u-1").Msg("User registered")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["service"] != "identity-service" {
		t.Errorf("service = %v, want identity-service", entry["service"])
	}
	if entry["component"] != "registration" {
		t.Errorf("component = %v, want registration", entry["component"])
	}
	if entry["message"] != "User registered" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "error", ServiceName: "identity-service", Output: &buf})

	log.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Errorf("info line written at error level: %s", buf.String())
	}
}
