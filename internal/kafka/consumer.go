package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	wm_kafka "github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
)

type Config struct {
	ClusterConfig   *sarama.Config
	BrokerAddresses []string
	Topic           string
	GroupID         string
	// PublishTimeout caps broker timeouts and retries for publishers. Zero keeps the watermill defaults.
	PublishTimeout time.Duration
}

// Consumer reads forwarded records back from a topic.
type Consumer struct {
	subscriber *wm_kafka.Subscriber
	topic      string
}

func NewConsumer(cfg *Config) (*Consumer, error) {
	saramaSubscriberConfig := wm_kafka.DefaultSaramaSubscriberConfig()
	if cfg.ClusterConfig != nil {
		saramaSubscriberConfig.Version = cfg.ClusterConfig.Version
		saramaSubscriberConfig.Consumer.Offsets.Initial = cfg.ClusterConfig.Consumer.Offsets.Initial
	}

	subscriber, err := wm_kafka.NewSubscriber(
		wm_kafka.SubscriberConfig{
			Brokers:               cfg.BrokerAddresses,
			Unmarshaler:           wm_kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaSubscriberConfig,
			ConsumerGroup:         cfg.GroupID,
		},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka subscriber: %w", err)
	}

	return &Consumer{
		subscriber: subscriber,
		topic:      cfg.Topic,
	}, nil
}

// Start subscribes to the topic and hands the message channel to process in a new goroutine.
func (c *Consumer) Start(ctx context.Context, process func(messages <-chan *message.Message)) error {
	messages, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("could not subscribe to topic %s: %w", c.topic, err)
	}

	go process(messages)
	return nil
}

func (c *Consumer) Close() error {
	return c.subscriber.Close()
}
