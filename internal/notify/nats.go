package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL     string
	Token   string
	Subject string

	// Connection options
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Subject:       "coach.notifications.email",
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// deliveryRequest is the message the email service consumes.
type deliveryRequest struct {
	MessageID string    `json:"message_id"`
	Recipient string    `json:"recipient"`
	Kind      Kind      `json:"kind"`
	Data      Data      `json:"data"`
	QueuedAt  time.Time `json:"queued_at"`
}

// publisher is the part of *nats.Conn the notifier needs.
type publisher interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// NATSNotifier publishes delivery requests to a NATS subject. The message id
// doubles as the Nats-Msg-Id header so a JetStream stream can drop duplicates.
type NATSNotifier struct {
	conn    publisher
	closer  func()
	subject string
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// NewNATSNotifier connects to NATS.
func NewNATSNotifier(cfg NATSConfig, logger zerolog.Logger) (*NATSNotifier, error) {
	opts := []nats.Option{
		nats.Name("coach-scheduling"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	logger = logger.With().Str("component", "nats_notifier").Logger()
	opts = append(opts,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	logger.Info().Str("url", cfg.URL).Str("subject", cfg.Subject).Msg("NATS notifier connected")

	n := newNATSNotifier(conn, cfg.Subject, logger)
	n.closer = conn.Close
	if cfg.Timeout > 0 {
		n.timeout = cfg.Timeout
	}
	return n, nil
}

func newNATSNotifier(conn publisher, subject string, logger zerolog.Logger) *NATSNotifier {
	return &NATSNotifier{
		conn:    conn,
		closer:  func() {},
		subject: subject,
		timeout: 5 * time.Second,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Send publishes the request and waits for the server to acknowledge the
// flush, so a returned id means the broker has the message.
func (n *NATSNotifier) Send(ctx context.Context, recipient string, kind Kind, data Data) (string, error) {
	id := uuid.NewString()
	body, err := json.Marshal(deliveryRequest{
		MessageID: id,
		Recipient: recipient,
		Kind:      kind,
		Data:      data,
		QueuedAt:  n.now(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal delivery request: %w", err)
	}

	msg := nats.NewMsg(n.subject)
	msg.Data = body
	msg.Header.Set(nats.MsgIdHdr, id)

	if err := n.conn.PublishMsg(msg); err != nil {
		return "", fmt.Errorf("publish notification: %w", err)
	}
	// FlushWithContext refuses a context without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return "", fmt.Errorf("flush notification: %w", err)
	}
	n.logger.Debug().Str("message_id", id).Str("kind", string(kind)).Msg("notification published")
	return id, nil
}

// Close closes the underlying connection.
func (n *NATSNotifier) Close() {
	n.closer()
}
