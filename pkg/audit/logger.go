package audit

import (
	"context"
	"time"

	"github.com/platinummonkey/guidepost/pkg/observability"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Close flushes and releases resources
	Close() error
}

// NewEvent builds an event stamped with the request id from ctx
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *AuditEvent {
	return &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: observability.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}
}

// Record logs an event and reports failures to the structured log only.
// Audit writes never fail the business operation that triggered them.
func Record(ctx context.Context, logger Logger, event *AuditEvent) {
	if logger == nil {
		return
	}
	if err := logger.Log(ctx, event); err != nil {
		observability.FromContext(ctx).WithError(err).
			WithField("event_type", string(event.EventType)).
			Warn("failed to write audit event")
	}
}

// NoOpLogger discards events
type NoOpLogger struct{}

func (NoOpLogger) Log(context.Context, *AuditEvent) error { return nil }
func (NoOpLogger) Close() error                           { return nil }

// LogLogger writes audit events to the structured application log
type LogLogger struct {
	logger *observability.Logger
}

// NewLogLogger creates a logger that emits one log line per event
func NewLogLogger(logger *observability.Logger) *LogLogger {
	return &LogLogger{logger: logger}
}

// Log writes the event as structured fields
func (l *LogLogger) Log(_ context.Context, event *AuditEvent) error {
	fields := map[string]interface{}{
		"audit_event": string(event.EventType),
		"status":      string(event.Status),
	}
	if event.ResellerID != "" {
		fields["reseller_id"] = event.ResellerID
	}
	if event.ResourceID != "" {
		fields["resource_type"] = string(event.ResourceType)
		fields["resource_id"] = event.ResourceID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}
	l.logger.WithFields(fields).Info(event.Message)
	return nil
}

// Close is a no-op
func (l *LogLogger) Close() error { return nil }
