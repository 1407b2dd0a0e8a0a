package model

import "slices"

// OrderStatus is a state of the order fulfilment state machine.
type OrderStatus string

const (
	StatusPending         OrderStatus = "pending"
	StatusConfirmed       OrderStatus = "confirmed"
	StatusProcessing      OrderStatus = "processing"
	StatusPacked          OrderStatus = "packed"
	StatusShipped         OrderStatus = "shipped"
	StatusOutForDelivery  OrderStatus = "out_for_delivery"
	StatusDelivered       OrderStatus = "delivered"
	StatusCancelled       OrderStatus = "cancelled"
	StatusReturnRequested OrderStatus = "return_requested"
	StatusReturned        OrderStatus = "returned"
	StatusRefunded        OrderStatus = "refunded"
)

var allStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusPacked,
	StatusShipped,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
	StatusReturnRequested,
	StatusReturned,
	StatusRefunded,
}

// orderTransitions lists, for every state, the states it may move to.
var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:         {StatusConfirmed, StatusProcessing, StatusCancelled},
	StatusConfirmed:       {StatusProcessing, StatusPacked, StatusShipped, StatusCancelled},
	StatusProcessing:      {StatusPacked, StatusShipped, StatusCancelled},
	StatusPacked:          {StatusShipped, StatusCancelled},
	StatusShipped:         {StatusOutForDelivery, StatusDelivered},
	StatusOutForDelivery:  {StatusDelivered},
	StatusDelivered:       {StatusReturnRequested, StatusReturned},
	StatusReturnRequested: {StatusReturned, StatusDelivered},
	StatusReturned:        {StatusRefunded},
	StatusCancelled:       {StatusRefunded},
}

// cancellationBlocked holds the states reached after physical shipment.
var cancellationBlocked = []OrderStatus{
	StatusShipped,
	StatusOutForDelivery,
	StatusDelivered,
}

// editableStatuses holds the states in which the shipping address may change.
var editableStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
}

// ParseOrderStatus converts a raw token into a known status.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	status := OrderStatus(raw)
	return status, status.IsValid()
}

// IsValid reports whether s is a known state token.
func (s OrderStatus) IsValid() bool {
	return slices.Contains(allStatuses, s)
}

// CanTransition reports whether the transition table allows from -> to.
func CanTransition(from, to OrderStatus) bool {
	return slices.Contains(orderTransitions[from], to)
}

// AllowedTransitions returns a copy of the states reachable from s.
func AllowedTransitions(s OrderStatus) []OrderStatus {
	return slices.Clone(orderTransitions[s])
}

// CanCancel reports whether an order in status s may still be cancelled.
func CanCancel(s OrderStatus) bool {
	return !slices.Contains(cancellationBlocked, s)
}

// CanEdit reports whether an order in status s may still be edited.
func CanEdit(s OrderStatus) bool {
	return slices.Contains(editableStatuses, s)
}
