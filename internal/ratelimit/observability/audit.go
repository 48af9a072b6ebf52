// Package observability provides audit logging helpers for the ratelimit module.
package observability

import (
	"context"
	"log/slog"
	"time"

	"pastebin/internal/platform/middleware"
)

// AuditEvent is the record handed to an AuditPublisher.
type AuditEvent struct {
	Action    string    `json:"action"`
	Subject   string    `json:"subject"`
	RequestID string    `json:"requestId,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Decision  string    `json:"decision"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditPublisher ships audit events somewhere durable.
type AuditPublisher interface {
	Emit(ctx context.Context, event AuditEvent) error
}

// LogAudit logs a security-relevant event and forwards it to the publisher
// when one is configured. Publisher failures are logged, never returned.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event string, attrList ...any) {
	requestID := middleware.GetRequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	args := append(attrList, "log_type", "audit")
	if logger != nil {
		logger.InfoContext(ctx, event, args...)
	}

	if publisher == nil {
		return
	}

	subject := extractString(attrList, "identifier")
	if subject == "" {
		subject = extractString(attrList, "ip")
	}
	decision := extractString(attrList, "decision")
	if decision == "" {
		decision = "denied"
	}

	if err := publisher.Emit(ctx, AuditEvent{
		Action:    event,
		Subject:   subject,
		RequestID: requestID,
		Reason:    extractString(attrList, "reason"),
		Decision:  decision,
		Timestamp: time.Now(),
	}); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event, "error", err)
	}
}

// extractString finds the string value following key in a slog-style
// key/value list.
func extractString(kv []any, key string) string {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok && k == key {
			switch v := kv[i+1].(type) {
			case string:
				return v
			case interface{ String() string }:
				return v.String()
			}
		}
	}
	return ""
}
