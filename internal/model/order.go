package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how the customer pays for an order.
type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodUPI    PaymentMethod = "upi"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
)

// PaymentStatus tracks the settlement state of an order payment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// CancelledBy identifies the party that cancelled an order.
type CancelledBy string

const (
	CancelledByCustomer CancelledBy = "customer"
	CancelledBySeller   CancelledBy = "seller"
	CancelledByAdmin    CancelledBy = "admin"
)

// ReturnStatus tracks the resolution of a return request.
type ReturnStatus string

const (
	ReturnStatusRequested ReturnStatus = "requested"
	ReturnStatusApproved  ReturnStatus = "approved"
	ReturnStatusRejected  ReturnStatus = "rejected"
	ReturnStatusRefunded  ReturnStatus = "refunded"
)

// ReturnAction is the decision taken on a pending return request.
type ReturnAction string

const (
	ReturnActionApprove ReturnAction = "approved"
	ReturnActionReject  ReturnAction = "rejected"
)

// Party is a contactable customer or seller attached to an order.
type Party struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Order is the order document. It is always read and written as a whole.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	Status          OrderStatus     `json:"status"`
	Customer        *Party          `json:"customer,omitempty"`
	Items           []OrderItem     `json:"items"`
	Pricing         Pricing         `json:"pricing"`
	ShippingAddress Address         `json:"shippingAddress"`
	Payment         Payment         `json:"payment"`
	Shipping        Shipping        `json:"shipping"`
	Cancellation    *Cancellation   `json:"cancellation,omitempty"`
	ReturnRequest   *ReturnRequest  `json:"returnRequest,omitempty"`
	Timeline        []TimelineEntry `json:"timeline"`
	Notes           []Note          `json:"notes"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// OrderItem represents a line item in an order.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Seller    Party           `json:"seller"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Pricing is frozen when the order is placed.
type Pricing struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Address is a postal address with contact details.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
}

// Payment holds the payment method and settlement state.
type Payment struct {
	Method        PaymentMethod `json:"method"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transactionId,omitempty"`
	RefundID      string        `json:"refundId,omitempty"`
}

// Shipping is filled in incrementally as the order moves through fulfilment.
type Shipping struct {
	TrackingID        string     `json:"trackingId,omitempty"`
	Carrier           string     `json:"carrier,omitempty"`
	ShippedAt         *time.Time `json:"shippedAt,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
	DeliveredAt       *time.Time `json:"deliveredAt,omitempty"`
}

// Cancellation is present only on cancelled orders.
type Cancellation struct {
	Reason      string      `json:"reason"`
	CancelledBy CancelledBy `json:"cancelledBy"`
	CancelledAt time.Time   `json:"cancelledAt"`
}

// ReturnRequest is present only when a return was initiated or a refund issued.
type ReturnRequest struct {
	Reason       string           `json:"reason,omitempty"`
	Title        string           `json:"title,omitempty"`
	Description  string           `json:"description,omitempty"`
	Images       []string         `json:"images,omitempty"`
	Status       ReturnStatus     `json:"status"`
	RequestedAt  *time.Time       `json:"requestedAt,omitempty"`
	ResolvedAt   *time.Time       `json:"resolvedAt,omitempty"`
	RefundAmount *decimal.Decimal `json:"refundAmount,omitempty"`
}

// TimelineEntry is one record in the append-only order audit log.
type TimelineEntry struct {
	Status      OrderStatus `json:"status"`
	Description string      `json:"description"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Note is a free-text remark attached to an order.
type Note struct {
	Text      string    `json:"text"`
	AddedBy   string    `json:"addedBy"`
	Timestamp time.Time `json:"timestamp"`
}

// AppendTimeline records a timeline entry. Entries are never removed or reordered.
func (o *Order) AppendTimeline(status OrderStatus, description string, at time.Time) {
	o.Timeline = append(o.Timeline, TimelineEntry{
		Status:      status,
		Description: description,
		Timestamp:   at,
	})
}

// AddNote appends a note to the order.
func (o *Order) AddNote(text, addedBy string, at time.Time) {
	o.Notes = append(o.Notes, Note{Text: text, AddedBy: addedBy, Timestamp: at})
}

// Sellers returns the distinct sellers on the order in first-seen order.
func (o *Order) Sellers() []Party {
	seen := make(map[string]struct{}, len(o.Items))
	sellers := make([]Party, 0, len(o.Items))
	for _, item := range o.Items {
		if item.Seller.ID == "" {
			continue
		}
		if _, ok := seen[item.Seller.ID]; ok {
			continue
		}
		seen[item.Seller.ID] = struct{}{}
		sellers = append(sellers, item.Seller)
	}
	return sellers
}

// IsRefundable reports whether the payment can be returned through the payment gateway.
func (p Payment) IsRefundable() bool {
	return p.Status == PaymentStatusPaid && p.Method != PaymentMethodCOD
}

// ToMinorUnits converts a currency amount with two decimals into minor units.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).IntPart()
}

// StatusRequest is the payload for a status update.
type StatusRequest struct {
	Status            string     `json:"status"`
	TrackingID        string     `json:"trackingId,omitempty"`
	Carrier           string     `json:"carrier,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
	Reason            string     `json:"reason,omitempty"`
	CancelledBy       string     `json:"cancelledBy,omitempty"`
	Description       string     `json:"description,omitempty"`
}

// CancelRequest is the payload for cancelling an order.
type CancelRequest struct {
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelledBy,omitempty"`
}

// ReturnData is the payload for requesting a return.
type ReturnData struct {
	Reason      string   `json:"reason"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// ReturnDecisionRequest carries the options for approving or rejecting a return.
type ReturnDecisionRequest struct {
	PickupDate string `json:"pickupDate,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// RefundRequest is the payload for an explicit refund.
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason,omitempty"`
}

// EditRequest is the payload for editing an order before processing starts.
type EditRequest struct {
	ShippingAddress *Address `json:"shippingAddress,omitempty"`
	EditedBy        string   `json:"editedBy,omitempty"`
}

// NoteRequest is the payload for attaching a note.
type NoteRequest struct {
	Text    string `json:"text"`
	AddedBy string `json:"addedBy"`
}

// OrderResponse is the uniform envelope returned by the order API.
type OrderResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Order   *Order `json:"order,omitempty"`
}
