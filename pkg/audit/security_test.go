package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
)

// setupTestLogger creates a test logger with an observer to capture log entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func TestLogInjectionAttempt(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	details := InjectionDetails{
		Operation:   "query",
		Param:       "1",
		ParamValue:  "'; DROP TABLE customer--",
		Fingerprint: "s&1c",
	}

	tests := []struct {
		name     string
		ctx      context.Context
		wantMode string
	}{
		{
			name:     "with session",
			ctx:      database.SetSession(context.Background(), &database.Session{Mode: database.ReadWrite}),
			wantMode: "write",
		},
		{
			name:     "without session",
			ctx:      context.Background(),
			wantMode: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorded.TakeAll()

			auditor.LogInjectionAttempt(tt.ctx, details)

			logs := recorded.All()
			require.Len(t, logs, 1)
			entry := logs[0]
			assert.Equal(t, zapcore.ErrorLevel, entry.Level)
			assert.Equal(t, "security_audit", entry.LoggerName)
			assert.Equal(t, "SQL injection attempt detected", entry.Message)

			fields := entry.ContextMap()
			assert.Equal(t, "query", fields["operation"])
			assert.Equal(t, "s&1c", fields["fingerprint"])
			assert.Equal(t, tt.wantMode, fields["session_mode"])
			assert.Equal(t, "critical", fields["severity"])

			var event SecurityEvent
			require.NoError(t, json.Unmarshal([]byte(fields["event_json"].(string)), &event))
			assert.Equal(t, EventSQLInjectionAttempt, event.EventType)
			assert.Equal(t, fields["event_id"], event.ID.String())
			assert.Equal(t, tt.wantMode, event.Mode)
		})
	}
}

func TestNewSecurityAuditor_NilLogger(t *testing.T) {
	auditor := NewSecurityAuditor(nil)
	assert.NotPanics(t, func() {
		auditor.LogInjectionAttempt(context.Background(), InjectionDetails{Operation: "execute"})
	})
}
