package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	wm_kafka "github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// partitionKeyMetadata names the message metadata used as the Kafka record key.
const partitionKeyMetadata = "partition_key"

// Publisher writes payloads to a single topic.
type Publisher struct {
	publisher message.Publisher
	topic     string
}

func NewPublisher(cfg *Config) (*Publisher, error) {
	publisher, err := wm_kafka.NewPublisher(
		wm_kafka.PublisherConfig{
			Brokers: cfg.BrokerAddresses,
			Marshaler: wm_kafka.NewWithPartitioningMarshaler(func(_ string, msg *message.Message) (string, error) {
				return msg.Metadata.Get(partitionKeyMetadata), nil
			}),
			OverwriteSaramaConfig: publisherSaramaConfig(cfg),
		},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	return &Publisher{
		publisher: publisher,
		topic:     cfg.Topic,
	}, nil
}

// publisherSaramaConfig bounds a single publish by cfg.PublishTimeout when it is set.
func publisherSaramaConfig(cfg *Config) *sarama.Config {
	saramaPublisherConfig := wm_kafka.DefaultSaramaSyncPublisherConfig()
	if cfg.ClusterConfig != nil {
		saramaPublisherConfig.Version = cfg.ClusterConfig.Version
	}
	if cfg.PublishTimeout > 0 {
		saramaPublisherConfig.Net.DialTimeout = cfg.PublishTimeout
		saramaPublisherConfig.Net.ReadTimeout = cfg.PublishTimeout
		saramaPublisherConfig.Net.WriteTimeout = cfg.PublishTimeout
		saramaPublisherConfig.Producer.Timeout = cfg.PublishTimeout
		saramaPublisherConfig.Producer.Retry.Max = 1
		saramaPublisherConfig.Metadata.Retry.Max = 1
	}
	return saramaPublisherConfig
}

// Publish sends payload keyed by key, so records sharing a key keep their order.
// It returns when ctx is done even if the broker has not answered yet.
func (p *Publisher) Publish(ctx context.Context, key string, payload []byte) error {
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(partitionKeyMetadata, key)
	msg.SetContext(ctx)

	published := make(chan error, 1)
	go func() {
		published <- p.publisher.Publish(p.topic, msg)
	}()

	select {
	case err := <-published:
		if err != nil {
			return fmt.Errorf("failed to publish to topic %s: %w", p.topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("gave up publishing to topic %s: %w", p.topic, ctx.Err())
	}
}

func (p *Publisher) Close() error {
	return p.publisher.Close()
}
