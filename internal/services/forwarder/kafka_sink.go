package forwarder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DIMO-Network/cloudevent"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/models"
	"github.com/google/uuid"
)

const (
	// ForwardEventType is the cloud event type of forwarded records.
	ForwardEventType = "wa.ocr.forward"
	// ForwardDataVersion is the data version of forwarded records.
	ForwardDataVersion = "forward-record/v1.0"
)

// Publisher writes a keyed payload to a message broker.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// KafkaSink publishes records wrapped in a cloud event.
type KafkaSink struct {
	publisher Publisher
	source    string
	now       func() time.Time
}

// NewKafkaSink creates a new KafkaSink. source identifies this service in the event header.
func NewKafkaSink(publisher Publisher, source string) *KafkaSink {
	return &KafkaSink{
		publisher: publisher,
		source:    source,
		now:       time.Now,
	}
}

func (s *KafkaSink) Name() string {
	return "kafka"
}

// Send publishes record keyed by sender so one sender's records stay ordered.
func (s *KafkaSink) Send(ctx context.Context, record models.ForwardRecord) error {
	event := cloudevent.CloudEvent[models.ForwardRecord]{
		CloudEventHeader: cloudevent.CloudEventHeader{
			ID:              uuid.New().String(),
			Source:          s.source,
			Subject:         record.SenderID,
			Time:            s.now().UTC(),
			DataContentType: "application/json",
			DataVersion:     ForwardDataVersion,
			Type:            ForwardEventType,
			SpecVersion:     "1.0",
		},
		Data: record,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal forward event: %w", err)
	}
	return s.publisher.Publish(ctx, record.SenderID, payload)
}
