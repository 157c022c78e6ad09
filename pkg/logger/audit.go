package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
}

// AuditLogger emits structured audit records on the application logger.
// Every record carries audit_type so downstream pipelines can route them.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogAuthAttempt logs authentication attempts
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	attrs = appendNonEmpty(attrs, "user_id", event.UserID)
	attrs = appendNonEmpty(attrs, "ip_address", event.IPAddress)
	attrs = appendNonEmpty(attrs, "user_agent", event.UserAgent)
	attrs = appendNonEmpty(attrs, "failure_reason", event.FailureReason)

	al.emit(event.Success, attrs)
}

// LogRedemption logs claim token redemption outcomes
func (al *AuditLogger) LogRedemption(userID, ipAddress string, success bool, reason string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "redemption"),
		slog.String("event_type", "token_redemption"),
		slog.Bool("success", success),
		slog.String("user_id", userID),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	attrs = appendNonEmpty(attrs, "ip_address", ipAddress)
	attrs = appendNonEmpty(attrs, "reason", reason)

	al.emit(success, attrs)
}

// LogAccountAction logs general account actions
func (al *AuditLogger) LogAccountAction(eventType, userID, ipAddress string, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "account"),
		slog.String("event_type", eventType),
		slog.String("user_id", userID),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	attrs = appendNonEmpty(attrs, "ip_address", ipAddress)
	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.emit(true, attrs)
}

// emit writes the record at Info for successes and Warn for failures, so
// failed attempts stand out without a separate log stream.
func (al *AuditLogger) emit(success bool, attrs []slog.Attr) {
	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

func appendNonEmpty(attrs []slog.Attr, key, value string) []slog.Attr {
	if value == "" {
		return attrs
	}
	return append(attrs, slog.String(key, value))
}
