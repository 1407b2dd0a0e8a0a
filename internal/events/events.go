// Package events publishes order lifecycle events to downstream consumers.
package events

import (
	"context"
	"time"

	"order-lifecycle/internal/model"

	"github.com/oklog/ulid/v2"
)

// Event types emitted by the lifecycle manager.
const (
	TypeStatusChanged   = "order.status_changed"
	TypeReturnRequested = "order.return_requested"
	TypeReturnResolved  = "order.return_resolved"
	TypeRefunded        = "order.refunded"
	TypeEdited          = "order.edited"
)

// OrderEvent is the payload published after an order mutation is persisted.
type OrderEvent struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	OrderID        string            `json:"orderId"`
	OrderNumber    string            `json:"orderNumber"`
	PreviousStatus model.OrderStatus `json:"previousStatus,omitempty"`
	CurrentStatus  model.OrderStatus `json:"currentStatus"`
	OccurredAt     time.Time         `json:"occurredAt"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Publisher delivers order events.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// NewOrderEvent builds an event for order with a fresh sortable ID.
func NewOrderEvent(eventType string, order *model.Order, previous model.OrderStatus, at time.Time) OrderEvent {
	return OrderEvent{
		ID:             ulid.Make().String(),
		Type:           eventType,
		OrderID:        order.ID.String(),
		OrderNumber:    order.OrderNumber,
		PreviousStatus: previous,
		CurrentStatus:  order.Status,
		OccurredAt:     at.UTC(),
	}
}

type nopPublisher struct{}

// NewNopPublisher returns a publisher that discards events.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, OrderEvent) error { return nil }

func (nopPublisher) Close() error { return nil }
