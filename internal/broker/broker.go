// Package broker carries pipeline stage handoffs over Kafka.
package broker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Producer publishes JSON payloads to pipeline topics.
type Producer struct {
	client *kgo.Client
}

// NewProducer creates a producer connected to the given brokers.
func NewProducer(brokers []string) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, eris.Wrap(err, "broker: create producer")
	}
	return &Producer{client: client}, nil
}

// Publish marshals payload as JSON and produces it synchronously. Key keeps
// all messages for one release on one partition, preserving their order.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrapf(err, "broker: marshal payload for %s", topic)
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return eris.Wrapf(err, "broker: produce to %s", topic)
	}

	zap.L().Debug("message produced",
		zap.String("topic", topic),
		zap.String("key", key),
	)
	return nil
}

// Close flushes and closes the producer.
func (p *Producer) Close() {
	p.client.Close()
}

// Consumer polls pipeline topics and routes records through a Router.
type Consumer struct {
	client *kgo.Client
	router *Router
}

// NewConsumer creates a consumer group member subscribed to the router's
// registered topics.
func NewConsumer(brokers []string, groupID string, router *Router) (*Consumer, error) {
	topics := router.Topics()
	if len(topics) == 0 {
		return nil, eris.New("broker: router has no registered topics")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "broker: create consumer")
	}
	return &Consumer{client: client, router: router}, nil
}

// Run polls until the context is canceled. Handler outcomes are logged and
// offsets committed either way; pipeline failures surface through the run
// state, not through redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			zap.L().Error("fetch error",
				zap.String("topic", topic),
				zap.Int32("partition", partition),
				zap.Error(err),
			)
		})

		fetches.EachRecord(func(record *kgo.Record) {
			msg := &Message{
				Topic:     record.Topic,
				Key:       record.Key,
				Value:     record.Value,
				Partition: record.Partition,
				Offset:    record.Offset,
			}
			if err := c.router.Handle(ctx, msg); err != nil {
				zap.L().Error("handler failed",
					zap.String("topic", msg.Topic),
					zap.ByteString("key", msg.Key),
					zap.Error(err),
				)
			}
		})

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			zap.L().Error("commit failed", zap.Error(err))
		}
	}
}

// Close leaves the group and closes the client.
func (c *Consumer) Close() {
	c.client.Close()
}

// EnsureTopics creates the given topics if they do not already exist.
func EnsureTopics(ctx context.Context, brokers []string, topics ...string) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return eris.Wrap(err, "broker: create admin client")
	}
	defer client.Close()

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, topics...)
	if err != nil {
		return eris.Wrap(err, "broker: create topics")
	}
	for _, result := range resp.Sorted() {
		if result.Err != nil && !errors.Is(result.Err, kerr.TopicAlreadyExists) {
			return eris.Wrapf(result.Err, "broker: create topic %s", result.Topic)
		}
	}
	return nil
}
