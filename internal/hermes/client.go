package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher sends an event payload to a subject.
type Publisher interface {
	Publish(subject string, data any) error
}

// Nop discards every event. It stands in when no NATS server is configured.
type Nop struct{}

func (Nop) Publish(string, any) error { return nil }

// drainTimeout bounds how long Close waits for buffered publishes.
const drainTimeout = 5 * time.Second

// Client publishes banorte events and subscribes to retrain requests.
type Client struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewClient connects to url. The connection keeps retrying in the
// background when the server is not up yet, so publishes made before the
// first connect are buffered rather than lost.
func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := []nats.Option{
		nats.Name("banorte"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DrainTimeout(drainTimeout),
		nats.ConnectHandler(func(nc *nats.Conn) {
			logger.Info("nats connected", "server", nc.ConnectedUrlRedacted())
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("nats async error", "subject", subject, "error", err)
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Client{nc: nc, logger: logger}, nil
}

// Publish JSON-encodes data onto subject.
func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subject, err)
	}
	if err := c.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	c.logger.Debug("event published", "subject", subject, "bytes", len(payload))
	return nil
}

// Subscribe calls handler for every message on subject until Close.
func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	if _, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	}); err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// Flush waits until the server has acknowledged everything published so far.
func (c *Client) Flush(ctx context.Context) error {
	return c.nc.FlushWithContext(ctx)
}

// Connected reports whether the connection is currently up.
func (c *Client) Connected() bool {
	return c.nc.IsConnected()
}

// Close drains subscriptions and buffered publishes, then closes the
// connection. A connection that never came up is closed directly.
func (c *Client) Close() {
	if !c.nc.IsConnected() {
		c.nc.Close()
		return
	}
	if err := c.nc.Drain(); err != nil {
		c.logger.Warn("nats drain failed", "error", err)
		c.nc.Close()
	}
}
