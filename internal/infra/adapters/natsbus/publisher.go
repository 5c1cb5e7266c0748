// Package natsbus forwards threat and integrity events to NATS as JSON.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/aura-radar/internal/application/events"
	"github.com/ahrav/aura-radar/internal/domain/integrity"
	"github.com/ahrav/aura-radar/internal/domain/threat"
	"github.com/ahrav/aura-radar/pkg/common/logger"
)

// DefaultPrefix is the subject prefix when none is configured.
const DefaultPrefix = "aura.radar"

var _ events.Sink = (*Publisher)(nil)

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher implements events.Sink on top of a NATS connection. nats.go
// buffers publishes, so forwarding never blocks on the network.
type Publisher struct {
	conn   Conn
	prefix string

	logger *logger.Logger
	tracer trace.Tracer
}

// NewPublisher creates a sink publishing under prefix.
func NewPublisher(conn Conn, prefix string, log *logger.Logger, tracer trace.Tracer) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Publisher{
		conn:   conn,
		prefix: prefix,
		logger: log.With("component", "natsbus"),
		tracer: tracer,
	}
}

// Connect dials url with reconnects enabled and logs connection state changes.
func Connect(ctx context.Context, url string, log *logger.Logger) (*nats.Conn, error) {
	log = log.With("component", "natsbus")
	nc, err := nats.Connect(url,
		nats.Name("aura-radar"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn(ctx, "nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info(ctx, "nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, errors.Join(threat.ErrTransientIO, err))
	}
	return nc, nil
}

// Name returns "nats".
func (p *Publisher) Name() string { return "nats" }

// ThreatSubject is the subject threat events are published on.
func (p *Publisher) ThreatSubject() string { return p.prefix + "." + events.ThreatQueue }

// IntegritySubject is the subject drift events are published on.
func (p *Publisher) IntegritySubject() string { return p.prefix + "." + events.IntegrityQueue }

// ForwardThreat publishes ev as JSON.
func (p *Publisher) ForwardThreat(ctx context.Context, ev threat.Event) error {
	return p.publish(ctx, p.ThreatSubject(), ev.ID, ev)
}

// ForwardIntegrity publishes ev as JSON.
func (p *Publisher) ForwardIntegrity(ctx context.Context, ev *integrity.Event) error {
	if ev == nil {
		return nil
	}
	return p.publish(ctx, p.IntegritySubject(), ev.ID, ev)
}

func (p *Publisher) publish(ctx context.Context, subject, id string, v any) error {
	_, span := p.tracer.Start(ctx, "natsbus.Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", subject),
			attribute.String("event.id", id),
		))
	defer span.End()

	data, err := json.Marshal(v)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal failed")
		return fmt.Errorf("marshal event %s: %w", id, err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return fmt.Errorf("publish %s: %w", subject, errors.Join(threat.ErrTransientIO, err))
	}
	return nil
}
