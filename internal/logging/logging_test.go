package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	logger, err := New("debug", "development")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New("warn", "production")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = New("chatty", "production")
	assert.Error(t, err)
}

func TestSanitizeConnectionString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "url credentials",
			in:   "postgres://synapse:s3cret@db:5432/projects?sslmode=disable",
			want: "postgres://[REDACTED]@[REDACTED]/projects?sslmode=disable",
		},
		{
			name: "keyword password",
			in:   "host=db user=synapse password=s3cret dbname=projects",
			want: "host=db user=synapse password=[REDACTED] dbname=projects",
		},
		{
			name: "redis password only",
			in:   "redis://:s3cret@cache:6379/0",
			want: "redis://[REDACTED]@cache:6379/0",
		},
		{
			name: "sqlite path untouched",
			in:   "file:projects.db?_pragma=busy_timeout(5000)",
			want: "file:projects.db?_pragma=busy_timeout(5000)",
		},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeConnectionString(tt.in))
		})
	}
}

func TestSanitizeError(t *testing.T) {
	assert.Equal(t, "", SanitizeError(nil))
	err := errors.New("dial postgres://u:p@h:5432/db: connection refused")
	assert.NotContains(t, SanitizeError(err), "u:p")
}
