package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		env   string
		level string
		want  zerolog.Level
	}{
		{"production", "", zerolog.InfoLevel},
		{"development", "", zerolog.DebugLevel},
		{"production", "warn", zerolog.WarnLevel},
		{"production", "nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		l := newWithWriter(&bytes.Buffer{}, tt.env, tt.level)
		if got := l.GetLevel(); got != tt.want {
			t.Errorf("New(%q, %q) level = %v, want %v", tt.env, tt.level, got, tt.want)
		}
	}
}

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, "production", "")
	l.Info().Str("op", "donate").Msg("donation recorded")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if line["service"] != "crowdfund" || line["op"] != "donate" || line["message"] != "donation recorded" {
		t.Fatalf("unexpected line: %v", line)
	}
}
