// Package kafka wraps a franz-go client for publishing audit entries.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

var ErrNoBrokers = errors.New("kafka: no seed brokers configured")

// Producer publishes records synchronously so callers can mark them delivered.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
}

type Option func(*producerOptions)

type producerOptions struct {
	logger       *slog.Logger
	clientID     string
	produceRetry time.Duration
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *producerOptions) {
		o.logger = logger
	}
}

func WithClientID(id string) Option {
	return func(o *producerOptions) {
		o.clientID = id
	}
}

func NewProducer(brokers []string, opts ...Option) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	o := producerOptions{
		logger:       slog.Default(),
		clientID:     "unionvote",
		produceRetry: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(o.clientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordDeliveryTimeout(o.produceRetry),
		kgo.ProducerBatchCompression(kgo.SnappyCompression(), kgo.NoCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Producer{client: client, logger: o.logger}, nil
}

// Publish blocks until the broker acknowledges the record.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// EnsureTopics creates any missing topics. Existing topics are left alone.
func (p *Producer) EnsureTopics(ctx context.Context, partitions int32, replicationFactor int16, topics ...string) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, t := range resp.Sorted() {
		if t.Err == nil {
			p.logger.Info("kafka topic created", "topic", t.Topic)
			continue
		}
		if errors.Is(t.Err, kerr.TopicAlreadyExists) {
			continue
		}
		return fmt.Errorf("create topic %s: %w", t.Topic, t.Err)
	}
	return nil
}

// Ping checks that at least one broker is reachable.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Producer) Close() {
	p.client.Close()
}
