package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestApplyLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		applyLevel(tt.in)
		if got := zerolog.GlobalLevel(); got != tt.want {
			t.Errorf("applyLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOutputsWritesFileQuietly(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	applyLevel("info")

	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger := zerolog.New(outputs(&console, path))
	logger.Info().Str("film", "movie/x-1").Msg("Loaded")

	if console.Len() != 0 {
		t.Errorf("info level should not write to console, got %q", console.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "Loaded") || !strings.Contains(string(data), "film=movie/x-1") {
		t.Errorf("log file = %q", data)
	}
}

func TestOutputsDebugEchoesConsole(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	applyLevel("debug")

	var console bytes.Buffer
	logger := zerolog.New(outputs(&console, filepath.Join(t.TempDir(), "app.log")))
	logger.Debug().Msg("polling")

	if !strings.Contains(console.String(), "polling") {
		t.Errorf("console = %q, want debug line", console.String())
	}
}

func TestOutputsWithoutFile(t *testing.T) {
	var console bytes.Buffer
	logger := zerolog.New(outputs(&console, ""))
	logger.Warn().Msg("no file")
	if !strings.Contains(console.String(), "no file") {
		t.Errorf("console = %q", console.String())
	}
}
