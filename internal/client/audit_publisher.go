// Package client holds outbound collaborators: the NATS audit event
// publisher consumed by the platform audit and notification services.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// AuditPublisher publishes approval transition events to NATS.
//
// Subject convention: hr.approvals.<event_type>
// Event types: workflow_submitted, step_approved, workflow_approved,
//              workflow_rejected, escalation_created, escalation_advanced,
//              escalation_approved, escalation_rejected
//
// All publish operations are non-fatal: errors are logged but never
// propagated, so downstream outages never interrupt approval operations.
type AuditPublisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// TransitionEvent is the JSON schema published to NATS.
type TransitionEvent struct {
	EventType  string         `json:"event_type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// NewAuditPublisher connects to NATS. An empty URL returns a disabled
// publisher so local development works without a broker.
func NewAuditPublisher(url, serviceName string, log zerolog.Logger) (*AuditPublisher, error) {
	if url == "" {
		log.Info().Msg("NATS URL not configured; audit event publishing disabled")
		return &AuditPublisher{log: log}, nil
	}

	nc, err := nats.Connect(url,
		nats.Name(serviceName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &AuditPublisher{nc: nc, log: log}, nil
}

// Publish emits one transition event. Subject: hr.approvals.<eventType>
func (p *AuditPublisher) Publish(ctx context.Context, eventType string, fields map[string]any) {
	if p.nc == nil {
		return
	}

	event := &TransitionEvent{
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Fields:     fields,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("audit events: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("hr.approvals.%s", eventType)
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Msg("audit events: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Msg("audit events: event published")
}

// Close drains the connection.
func (p *AuditPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
