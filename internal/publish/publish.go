// Package publish streams realtime gaze updates to NATS.
package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fakeyudi/gazetrace/internal/dispatch"
	"github.com/fakeyudi/gazetrace/internal/logging"
	"github.com/fakeyudi/gazetrace/internal/protocol"
)

// DefaultSubject carries gaze updates.
const DefaultSubject = "gazetrace.gaze"

// StatusSuffix is appended to the subject for tracker status events.
const StatusSuffix = ".status"

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Flush() error
	Close()
}

// Publisher sends updates on a subject.
type Publisher struct {
	conn    Conn
	subject string
	logger  *slog.Logger
}

// Connect dials url with reconnect handling.
func Connect(url, token, subject string, logger *slog.Logger) (*Publisher, error) {
	logger = logging.OrDiscard(logger).With("component", "publish")
	opts := []nats.Option{
		nats.Name("gazetrace"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return New(nc, subject, logger), nil
}

// New wraps an existing connection.
func New(conn Conn, subject string, logger *slog.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject, logger: logging.OrDiscard(logger)}
}

func (p *Publisher) Subject() string { return p.subject }

// Publish sends v as JSON on subject.
func (p *Publisher) Publish(subject string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return p.conn.Publish(subject, payload)
}

// Listener publishes each update; failures are logged and swallowed.
func (p *Publisher) Listener() dispatch.Listener {
	return func(u dispatch.Update) {
		if err := p.Publish(p.subject, u); err != nil {
			p.logger.Warn("publish failed", "seq", u.Seq, "error", err)
		}
	}
}

// statusMessage is the payload for tracker status and error events.
type statusMessage struct {
	Kind      string `json:"kind"`
	Status    string `json:"status,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
	Message   string `json:"message,omitempty"`
}

// StatusListener publishes tracker status and error events on
// subject + StatusSuffix.
func (p *Publisher) StatusListener() dispatch.StatusListener {
	return func(ev protocol.Event) {
		msg := statusMessage{Kind: ev.Kind.String(), Status: ev.Status, ErrorType: ev.ErrorType, Message: ev.Message}
		if err := p.Publish(p.subject+StatusSuffix, msg); err != nil {
			p.logger.Warn("publish failed", "kind", msg.Kind, "error", err)
		}
	}
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() {
	if err := p.conn.Flush(); err != nil {
		p.logger.Debug("nats flush", "error", err)
	}
	p.conn.Close()
}
