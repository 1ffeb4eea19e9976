package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/server"
)

func TestNewLoggerLevel(t *testing.T) {
	cases := []struct {
		name  string
		level string
		env   string
		want  zerolog.Level
	}{
		{"debug", "debug", "production", zerolog.DebugLevel},
		{"warn development", "warn", "development", zerolog.WarnLevel},
		{"unknown", "bogus", "production", zerolog.InfoLevel},
		{"empty", "", "production", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger := newLogger(server.Config{LogLevel: tc.level, Env: tc.env})
			require.Equal(t, tc.want, logger.GetLevel())
		})
	}
}
