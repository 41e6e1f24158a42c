// Package bus wraps the NATS connection that carries cues between server
// instances. Cues are transient, so this rides plain core NATS pub/sub —
// no stream, no durability.
package bus

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/faatca/cue/internal/cue"
)

// Publisher is the publish side consumed by the cue endpoints.
type Publisher interface {
	Publish(ctx context.Context, data []byte) error
}

// Subscriber is the receive side consumed by the dispatcher. Subscribe
// returns a Subscription positioned at the tail of the cues subject.
type Subscriber interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription yields raw cue payloads until the context is cancelled or
// the connection fails.
type Subscription interface {
	Next(ctx context.Context) ([]byte, error)
	Unsubscribe() error
}

// Client is the NATS-backed Publisher and Subscriber.
type Client struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// New connects to NATS. The connection retries indefinitely so a broker
// restart does not take the server down with it.
func New(url string, logger *zap.Logger) (*Client, error) {
	nc, err := nats.Connect(url, nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	logger.Info("NATS connected", zap.String("url", url))
	return &Client{conn: nc, logger: logger}, nil
}

// Publish hands a cue payload to the broker. A nil error means the broker
// accepted it, not that any listener received it.
func (c *Client) Publish(ctx context.Context, data []byte) error {
	if err := c.conn.Publish(cue.Subject, data); err != nil {
		return fmt.Errorf("publish cue: %w", err)
	}
	return nil
}

// Subscribe opens a synchronous subscription on the cues subject.
func (c *Client) Subscribe(ctx context.Context) (Subscription, error) {
	sub, err := c.conn.SubscribeSync(cue.Subject)
	if err != nil {
		return nil, fmt.Errorf("subscribe cues: %w", err)
	}
	return &natsSubscription{sub: sub}, nil
}

// Close drains the connection so in-flight publishes flush before teardown.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Next(ctx context.Context) ([]byte, error) {
	msg, err := s.sub.NextMsgWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return msg.Data, nil
}

func (s *natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}
