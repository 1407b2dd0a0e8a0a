package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
)

type pubsubPublisher struct {
	topic *pubsub.Topic
}

// NewPubSubPublisher creates a publisher on an existing Pub/Sub topic.
// Ordering keys are the order ID, so the topic must allow message ordering.
func NewPubSubPublisher(topic *pubsub.Topic) (Publisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub publisher: topic is required")
	}
	topic.EnableMessageOrdering = true
	return &pubsubPublisher{topic: topic}, nil
}

func (p *pubsubPublisher) Publish(ctx context.Context, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		OrderingKey: event.OrderID,
		Attributes: map[string]string{
			"eventId":     event.ID,
			"eventType":   event.Type,
			"orderNumber": event.OrderNumber,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		p.topic.ResumePublish(event.OrderID)
		return fmt.Errorf("failed to publish order event: %w", err)
	}
	return nil
}

func (p *pubsubPublisher) Close() error {
	p.topic.Stop()
	return nil
}
