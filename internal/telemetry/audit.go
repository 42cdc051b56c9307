package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"eduhub-chat/internal/observability"
)

type AuditEmitter struct {
	publisher   observability.Publisher
	routingKey  string
	service     string
	environment string
	log         *zap.Logger
	now         func() time.Time
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string            `json:"level"`
	Action string            `json:"action"`
	Text   string            `json:"text"`
	Attrs  map[string]string `json:"attrs,omitempty"`
}

// AuditEvent is one user-visible action worth recording.
type AuditEvent struct {
	Level     string
	Action    string
	Text      string
	RequestID string
	UserID    *string
	Attrs     map[string]string
}

func NewAuditEmitter(publisher observability.Publisher, routingKey, service, environment string, log *zap.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         log.Named("audit"),
		now:         time.Now,
	}
}

// Emit publishes ev. Failures are logged and otherwise ignored.
func (e *AuditEmitter) Emit(ctx context.Context, ev AuditEvent) {
	if e == nil || e.publisher == nil {
		return
	}

	e.log.Debug("audit emit",
		zap.String("action", ev.Action),
		zap.String("request_id", ev.RequestID),
		zap.Stringp("user_id", ev.UserID))
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     ev.RequestID,
		UserID:        ev.UserID,
		Payload: AuditPayload{
			Level:  ev.Level,
			Action: ev.Action,
			Text:   ev.Text,
			Attrs:  ev.Attrs,
		},
	}

	headers := observability.BuildHeaders(ev.RequestID, observability.TraceIDFromContext(ctx))
	if err := e.publisher.Publish(ctx, e.routingKey, envelope, headers); err != nil {
		observability.IncAMQPPublishError()
		e.log.Warn("audit publish failed", zap.String("action", ev.Action), zap.Error(err))
	}
}
