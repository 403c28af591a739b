package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level       string
		development bool
		enabled     zapcore.Level
		disabled    zapcore.Level
		wantErr     bool
	}{
		{level: "info", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
		{level: "debug", development: true, enabled: zapcore.DebugLevel, disabled: zapcore.DebugLevel - 1},
		{level: "warn", enabled: zapcore.ErrorLevel, disabled: zapcore.InfoLevel},
		{level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(tt.level, tt.development)
			if tt.wantErr {
				if err == nil {
					t.Error("New() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if !logger.Core().Enabled(tt.enabled) {
				t.Errorf("level %v disabled, want enabled", tt.enabled)
			}
			if logger.Core().Enabled(tt.disabled) {
				t.Errorf("level %v enabled, want disabled", tt.disabled)
			}
		})
	}
}
