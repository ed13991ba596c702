package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

const DefaultPublishSubject = "feed.article-deliveries"

// Publisher publishes delivery messages as JSON on a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

var _ Deliverer = (*Publisher)(nil)

func NewPublisher(conn *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultPublishSubject
	}
	return &Publisher{conn: conn, subject: subject}
}

func (p *Publisher) Deliver(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode delivery message: %w", err)
	}

	header := nats.Header{}
	header.Set("Feed", msg.Feed)
	header.Set("Delivery", msg.Delivery)

	if err := p.conn.PublishMsg(&nats.Msg{Subject: p.subject, Data: data, Header: header}); err != nil {
		return fmt.Errorf("failed to publish delivery message: %w", err)
	}
	return nil
}
