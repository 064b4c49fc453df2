package cmd

import (
	"log/slog"
	"testing"
)

func TestGetLoggerLevel(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			root := NewRootCmd()
			if err := root.PersistentFlags().Set("loglevel", tt.value); err != nil {
				t.Fatalf("setting flag: %v", err)
			}
			got, err := GetLoggerLevel(root)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("GetLoggerLevel(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetLoggerLevel_DefaultIsWarn(t *testing.T) {
	root := NewRootCmd()
	got, err := GetLoggerLevel(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != slog.LevelWarn {
		t.Errorf("default level = %v, want warn", got)
	}
}

func TestGetBaseLogger_RejectsUnknownFormat(t *testing.T) {
	root := NewRootCmd()
	if err := root.PersistentFlags().Set("logformat", "yaml"); err != nil {
		t.Fatalf("setting flag: %v", err)
	}
	if _, err := GetBaseLogger(root); err == nil {
		t.Error("expected error for unknown log format")
	}
}

func TestGetBaseLogger_TextAndJSON(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		t.Run(format, func(t *testing.T) {
			root := NewRootCmd()
			if err := root.PersistentFlags().Set("logformat", format); err != nil {
				t.Fatalf("setting flag: %v", err)
			}
			logger, err := GetBaseLogger(root)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if logger == nil {
				t.Error("expected a logger")
			}
		})
	}
}
