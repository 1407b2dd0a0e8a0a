package service

import (
	"context"
	"time"

	"order-lifecycle/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductService defines read access to products and their stock.
type ProductService interface {
	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)
}

// OrderService owns the order status state machine and its side effects.
// Every returned error is a *model.DomainError.
type OrderService interface {
	// GetByID retrieves an order document.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// UpdateOrderStatus moves an order to status, applying the status-specific side effects.
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string, opts StatusOptions) (*model.Order, error)

	// CancelOrder cancels an order that has not shipped yet.
	CancelOrder(ctx context.Context, id uuid.UUID, reason string, cancelledBy model.CancelledBy) (*model.Order, error)

	// RequestReturn opens a return request on a delivered order inside the return window.
	RequestReturn(ctx context.Context, id uuid.UUID, data model.ReturnData) (*model.Order, error)

	// ProcessReturnRequest approves or rejects an open return request.
	ProcessReturnRequest(ctx context.Context, id uuid.UUID, action model.ReturnAction, opts model.ReturnDecisionRequest) (*model.Order, error)

	// ProcessRefund records a refund of amount against the order.
	ProcessRefund(ctx context.Context, id uuid.UUID, amount decimal.Decimal, reason string) (*model.Order, error)

	// EditOrder changes the shipping address while the order is still editable.
	EditOrder(ctx context.Context, id uuid.UUID, req model.EditRequest) (*model.Order, error)

	// AddNote appends a free-text note.
	AddNote(ctx context.Context, id uuid.UUID, text, addedBy string) (*model.Order, error)
}

// StatusOptions carries the status-dependent inputs of a status update.
type StatusOptions struct {
	TrackingID        string
	Carrier           string
	EstimatedDelivery *time.Time
	Reason            string
	CancelledBy       model.CancelledBy
	Description       string
	Actor             string
}

// Options tunes the order service.
type Options struct {
	// StrictTransitions rejects transitions missing from the transition table
	// instead of logging and applying them.
	StrictTransitions bool
	ReturnWindowDays  int
	Clock             func() time.Time
}

// DefaultReturnWindowDays applies when Options.ReturnWindowDays is not set.
const DefaultReturnWindowDays = 7
