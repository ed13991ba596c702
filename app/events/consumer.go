package events

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/lysyi3m/feed-relay/app/metrics"
)

// FeedTrigger is what feed events act on.
type FeedTrigger interface {
	TriggerFeed(feedName string) error
	ClearFeed(feedName string) error
}

type ConsumerOptions struct {
	DeliverArticlesSubject string
	FeedDeletedSubject     string
	QueueGroup             string
}

// Consumer turns NATS feed events into scheduler tasks.
type Consumer struct {
	conn    *nats.Conn
	trigger FeedTrigger
	opts    ConsumerOptions
	subs    []*nats.Subscription
	now     func() time.Time
}

func NewConsumer(conn *nats.Conn, trigger FeedTrigger, opts ConsumerOptions) *Consumer {
	if opts.DeliverArticlesSubject == "" {
		opts.DeliverArticlesSubject = DefaultDeliverArticlesSubject
	}
	if opts.FeedDeletedSubject == "" {
		opts.FeedDeletedSubject = DefaultFeedDeletedSubject
	}
	if opts.QueueGroup == "" {
		opts.QueueGroup = DefaultQueueGroup
	}

	return &Consumer{conn: conn, trigger: trigger, opts: opts, now: time.Now}
}

// Connect dials NATS with reconnects enabled forever.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("NATS connection lost", "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

func (c *Consumer) Start() error {
	handlers := map[string]func(*FeedEvent) error{
		c.opts.DeliverArticlesSubject: c.handleDeliverArticles,
		c.opts.FeedDeletedSubject:     c.handleFeedDeleted,
	}

	for subject, handle := range handlers {
		sub, err := c.conn.QueueSubscribe(subject, c.opts.QueueGroup, func(msg *nats.Msg) {
			c.Handle(msg.Subject, msg.Data, handle)
		})
		if err != nil {
			c.Stop()
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		c.subs = append(c.subs, sub)
		slog.Info("Feed event consumer started", "subject", subject, "queue", c.opts.QueueGroup)
	}
	return nil
}

func (c *Consumer) Stop() {
	for _, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			slog.Warn("Failed to drain subscription", "subject", sub.Subject, "error", err)
		}
	}
	c.subs = nil
}

// Handle decodes one message and passes it to handle, counting the outcome.
func (c *Consumer) Handle(subject string, data []byte, handle func(*FeedEvent) error) {
	event, err := ParseFeedEvent(data)
	if err != nil {
		slog.Error("Failed to parse feed event", "subject", subject, "error", err)
		metrics.NatsMessagesReceived.WithLabelValues(subject, "invalid").Inc()
		return
	}

	if event.Debug {
		slog.Info("Received debug feed event", "subject", subject, "feed", event.Data.Feed.ID, "age", event.Age(c.now()))
	}

	if err := handle(event); err != nil {
		slog.Warn("Failed to handle feed event", "subject", subject, "feed", event.Data.Feed.ID, "error", err)
		metrics.NatsMessagesReceived.WithLabelValues(subject, "error").Inc()
		return
	}
	metrics.NatsMessagesReceived.WithLabelValues(subject, "ok").Inc()
}

func (c *Consumer) handleDeliverArticles(event *FeedEvent) error {
	return c.trigger.TriggerFeed(event.Data.Feed.ID)
}

func (c *Consumer) handleFeedDeleted(event *FeedEvent) error {
	return c.trigger.ClearFeed(event.Data.Feed.ID)
}
