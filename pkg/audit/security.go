// Package audit logs security-relevant events in a structured form that log
// pipelines can filter on.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a caller parameter.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
)

// SecurityEvent is one auditable event.
type SecurityEvent struct {
	ID        uuid.UUID         `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	Mode      string            `json:"session_mode,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// InjectionDetails describes a rejected parameter.
type InjectionDetails struct {
	Operation   string `json:"operation"`
	Target      string `json:"target,omitempty"` // type name or backend
	Param       string `json:"param"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"`
}

// SecurityAuditor writes security events under the "security_audit" logger name.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates an auditor. A nil logger discards events.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records a parameter rejected as SQL injection at ERROR
// level with critical severity. The session mode is taken from ctx when present.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, details InjectionDetails) {
	event := SecurityEvent{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		EventType: EventSQLInjectionAttempt,
		Details:   details,
		Severity:  "critical",
	}
	if s, ok := database.GetSession(ctx); ok {
		event.Mode = s.Mode.String()
	}

	// Marshaling known types cannot fail.
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("event_id", event.ID.String()),
		zap.String("operation", details.Operation),
		zap.String("target", details.Target),
		zap.String("param", details.Param),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("session_mode", event.Mode),
		zap.String("severity", event.Severity),
	)
}
