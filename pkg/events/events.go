package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/passwordless-api/pkg/logger"
	"github.com/nats-io/nats.go"
)

// Subjects published by the auth flows.
const (
	SubjectTokenIssued   = "auth.token_issued"
	SubjectSignIn        = "auth.signin"
	SubjectAliasVerified = "auth.alias_verified"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type TokenIssuedEvent struct {
	UserID    int64  `json:"user_id"`
	AliasType string `json:"alias_type"`
	Purpose   string `json:"purpose"`
}

type SignInEvent struct {
	UserID int64 `json:"user_id"`
}

type AliasVerifiedEvent struct {
	UserID    int64  `json:"user_id"`
	AliasType string `json:"alias_type"`
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// NoopBus discards events. Used in development when NATS is not running.
type NoopBus struct{}

func (NoopBus) Publish(context.Context, string, interface{}) error      { return nil }
func (NoopBus) Subscribe(string, func(msg *Message)) error              { return nil }
func (NoopBus) QueueSubscribe(string, string, func(msg *Message)) error { return nil }
func (NoopBus) Close() error                                            { return nil }
