// Package kafka owns the broker client used by the notification publisher.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/config"
)

// Client wraps the franz-go client with topic bootstrap helpers.
type Client struct {
	*kgo.Client
}

// New creates a Kafka client from the provided configuration.
// Returns nil if no brokers are configured (notifications fall back to logging).
func New(cfg config.KafkaConfig) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Client{Client: client}, nil
}

// EnsureTopic creates the topic if it does not exist yet. An already-existing
// topic is not an error.
func (c *Client) EnsureTopic(ctx context.Context, topic string) error {
	adm := kadm.NewClient(c.Client)
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %q: %w", topic, err)
	}
	for _, res := range resp.Sorted() {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %q: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// Health verifies broker connectivity.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx)
}
