package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/logging"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSPublisher publishes events as JSON to NATS core subjects.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger *logging.Logger
	owned  bool
}

// Connect dials url and returns a publisher that owns the connection.
func Connect(url, prefix string, logger *logging.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("mcp-server-qdrant"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn(context.Background(), "nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info(context.Background(), "nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	p := NewNATSPublisher(nc, prefix, logger)
	p.owned = true
	logger.Info(context.Background(), "connected to nats", zap.String("url", url), zap.String("prefix", p.prefix))
	return p, nil
}

// NewNATSPublisher wraps an existing connection. The caller keeps ownership of nc.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *logging.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = "memory"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}
}

// Subject returns the subject an event for collection and eventType is sent on.
func (p *NATSPublisher) Subject(collection, eventType string) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, subjectToken(collection), eventType)
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	event = enrich(ctx, event)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := p.Subject(event.Collection, event.Type)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}

	p.logger.Trace(ctx, "published memory event", zap.String("subject", subject))
	return nil
}

// Close flushes pending events and closes the connection if the publisher owns it.
func (p *NATSPublisher) Close() error {
	if !p.owned {
		return nil
	}
	if err := p.nc.FlushTimeout(2 * time.Second); err != nil {
		p.logger.Warn(context.Background(), "flushing nats events", zap.Error(err))
	}
	p.nc.Close()
	return nil
}
