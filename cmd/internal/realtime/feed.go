package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	v1 "github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/shared/contracts/realtime/v1"
)

const topicPrefix = "supreme.changes."

// Change is one row-level change published by the stores' owners.
type Change struct {
	ID        string          `json:"id"`
	Table     string          `json:"table"`
	Type      string          `json:"type"`
	Record    json.RawMessage `json:"record,omitempty"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
	At        time.Time       `json:"at"`
}

// ChangePublisher is the write side of the feed, used by the chat and leads services.
type ChangePublisher interface {
	PublishChange(ctx context.Context, c Change) error
}

// NewInsert builds an INSERT change for record.
func NewInsert(table string, record any, at time.Time) (Change, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return Change{}, err
	}
	return Change{Table: table, Type: v1.EventInsert, Record: raw, At: at}, nil
}

// NewDelete builds a DELETE change carrying the removed row.
func NewDelete(table string, old any, at time.Time) (Change, error) {
	raw, err := json.Marshal(old)
	if err != nil {
		return Change{}, err
	}
	return Change{Table: table, Type: v1.EventDelete, OldRecord: raw, At: at}, nil
}

// Feed moves change events from writers to every gateway instance.
//
// The in-process variant is a watermill gochannel; the Redis variant publishes to one
// stream per table and reads it through a per-instance consumer group created at the
// stream tail, so every instance sees every change once and nobody replays history.
type Feed struct {
	log    *slog.Logger
	pub    message.Publisher
	sub    message.Subscriber
	closes []func() error
}

// NewMemoryFeed builds a single-process feed.
func NewMemoryFeed(log *slog.Logger) *Feed {
	if log == nil {
		log = slog.Default()
	}
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, watermill.NewSlogLogger(log))
	return &Feed{log: log, pub: ch, sub: ch, closes: []func() error{ch.Close}}
}

// RedisFeedConfig configures NewRedisFeed.
type RedisFeedConfig struct {
	// Group is this instance's consumer group. Each instance needs its own.
	Group  string
	Tables []string
}

// NewRedisFeed builds a feed over Redis Streams.
func NewRedisFeed(ctx context.Context, log *slog.Logger, rdb redis.UniversalClient, cfg RedisFeedConfig) (*Feed, error) {
	if log == nil {
		log = slog.Default()
	}
	if rdb == nil {
		return nil, errors.New("realtime: nil redis client")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		return nil, errors.New("realtime: redis feed requires a consumer group")
	}

	for _, table := range cfg.Tables {
		if err := ensureGroupAtTail(ctx, rdb, Topic(table), group); err != nil {
			return nil, fmt.Errorf("realtime: create consumer group for %s: %w", table, err)
		}
	}

	marshaler := rstream.DefaultMarshallerUnmarshaller{}
	logger := watermill.NewSlogLogger(log)

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     rdb,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		return nil, err
	}
	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        rdb,
		Unmarshaller:  marshaler,
		ConsumerGroup: group,
		Consumer:      group + "-0",
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, err
	}

	return &Feed{log: log, pub: pub, sub: sub, closes: []func() error{sub.Close, pub.Close}}, nil
}

// ensureGroupAtTail creates the consumer group at "$" so a new instance does not replay
// the whole stream.
func ensureGroupAtTail(ctx context.Context, rdb redis.UniversalClient, stream, group string) error {
	err := rdb.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil && strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// Topic returns the feed topic for table.
func Topic(table string) string { return topicPrefix + table }

// PublishChange publishes c on its table topic. A missing ID is generated.
func (f *Feed) PublishChange(ctx context.Context, c Change) error {
	if c.Table == "" {
		return errors.New("realtime: change without table")
	}
	if c.ID == "" {
		c.ID = NewEnvelopeID(c.At)
	}
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}

	msg := message.NewMessage(c.ID, payload)
	msg.SetContext(ctx)
	if err := f.pub.Publish(Topic(c.Table), msg); err != nil {
		return fmt.Errorf("realtime: publish %s: %w", c.Table, err)
	}
	return nil
}

// Consumer delivers the changes of a set of subscribed topics.
type Consumer struct {
	feed   *Feed
	tables []string
	msgs   map[string]<-chan *message.Message
}

// Subscribe subscribes to the topics of tables before returning, so a change published
// after Subscribe is never missed by the in-process feed. Delivery starts with Run.
func (f *Feed) Subscribe(ctx context.Context, tables []string) (*Consumer, error) {
	c := &Consumer{feed: f, tables: tables, msgs: make(map[string]<-chan *message.Message, len(tables))}
	for _, table := range tables {
		msgs, err := f.sub.Subscribe(ctx, Topic(table))
		if err != nil {
			return nil, fmt.Errorf("realtime: subscribe %s: %w", table, err)
		}
		c.msgs[table] = msgs
	}
	return c, nil
}

// Run calls deliver for each change until the subscription context ends.
func (c *Consumer) Run(deliver func(Change)) error {
	f := c.feed
	var g errgroup.Group
	for table, msgs := range c.msgs {
		g.Go(func() error {
			for msg := range msgs {
				var ch Change
				if err := json.Unmarshal(msg.Payload, &ch); err != nil {
					// Poison message: ack so it is not redelivered forever.
					f.log.Error("realtime.feed.decode.fail", "err", err, "table", table, "msg_id", msg.UUID)
					msg.Ack()
					continue
				}
				deliver(ch)
				msg.Ack()
			}
			return nil
		})
	}

	f.log.Info("realtime.feed.start", "tables", c.tables)
	err := g.Wait()
	f.log.Info("realtime.feed.stop")
	return err
}

// Run subscribes to tables and consumes them until ctx ends.
func (f *Feed) Run(ctx context.Context, tables []string, deliver func(Change)) error {
	c, err := f.Subscribe(ctx, tables)
	if err != nil {
		return err
	}
	return c.Run(deliver)
}

// Close releases the publisher and subscriber.
func (f *Feed) Close() error {
	var errs []error
	for _, c := range f.closes {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
