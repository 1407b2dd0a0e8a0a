package handler

import (
	"net/http"

	"order-lifecycle/internal/model"
	"order-lifecycle/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OrderHandler handles order lifecycle HTTP requests.
type OrderHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// GetByID handles GET /api/orders/{id}.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, nil, func(o orderCall) (*model.Order, error) {
		return h.service.GetByID(o.r.Context(), o.id)
	})
}

// UpdateStatus handles POST /api/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req model.StatusRequest
	h.handle(w, r, &req, func(o orderCall) (*model.Order, error) {
		if req.Status == "" {
			return nil, model.NewDomainError(model.ErrCodeInvalidRequest, "status is required")
		}
		cancelledBy, err := parseCancelledBy(req.CancelledBy)
		if err != nil {
			return nil, err
		}
		return h.service.UpdateOrderStatus(o.r.Context(), o.id, req.Status, service.StatusOptions{
			TrackingID:        req.TrackingID,
			Carrier:           req.Carrier,
			EstimatedDelivery: req.EstimatedDelivery,
			Reason:            req.Reason,
			CancelledBy:       cancelledBy,
			Description:       req.Description,
			Actor:             r.Header.Get("X-Actor"),
		})
	})
}

// Cancel handles POST /api/orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req model.CancelRequest
	h.handle(w, r, &req, func(o orderCall) (*model.Order, error) {
		cancelledBy, err := parseCancelledBy(req.CancelledBy)
		if err != nil {
			return nil, err
		}
		return h.service.CancelOrder(o.r.Context(), o.id, req.Reason, cancelledBy)
	})
}

// RequestReturn handles POST /api/orders/{id}/return.
func (h *OrderHandler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	var req model.ReturnData
	h.handle(w, r, &req, func(o orderCall) (*model.Order, error) {
		return h.service.RequestReturn(o.r.Context(), o.id, req)
	})
}

// ProcessReturn handles POST /api/orders/{id}/return/{action}.
func (h *OrderHandler) ProcessReturn(w http.ResponseWriter, r *http.Request) {
	var req model.ReturnDecisionRequest
	h.handle(w, r, &req, func(o orderCall) (*model.Order, error) {
		action, ok := parseReturnAction(r.PathValue("action"))
		if !ok {
			return nil, model.Errorf(model.ErrCodeInvalidRequest, "unknown return action %q", r.PathValue("action"))
		}
		return h.service.ProcessReturnRequest(o.r.Context(), o.id, action, req)
	})
}

// Refund handles POST /api/orders/{id}/refund.
func (h *OrderHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req model.RefundRequest
	h.handle(w, r, &req, func(o orderCall) (*model.Order, error) {
		return h.service.ProcessRefund(o.r.Context(), o.id, req.Amount, req.Reason)
	})
}

// Edit handles PATCH /api/orders/{id}.
func (h *OrderHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req model.EditRequest
	h.handle(w, r, &req, func(o orderCall) (*model.Order, error) {
		return h.service.EditOrder(o.r.Context(), o.id, req)
	})
}

// AddNote handles POST /api/orders/{id}/notes.
func (h *OrderHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req model.NoteRequest
	h.handle(w, r, &req, func(o orderCall) (*model.Order, error) {
		return h.service.AddNote(o.r.Context(), o.id, req.Text, req.AddedBy)
	})
}

type orderCall struct {
	r  *http.Request
	id uuid.UUID
}

// handle parses the order ID and optional body, runs call and writes the envelope.
func (h *OrderHandler) handle(w http.ResponseWriter, r *http.Request, body any, call func(orderCall) (*model.Order, error)) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidRequest, "invalid order ID format", h.logger)
		return
	}

	if body != nil {
		if err := decodeBody(r, body); err != nil {
			writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
			return
		}
	}

	order, err := call(orderCall{r: r, id: id})
	if err != nil {
		writeServiceError(w, err, h.logger.With().Str("order_id", id.String()).Logger())
		return
	}

	writeJSON(w, http.StatusOK, model.OrderResponse{Success: true, Order: order})
}

func parseCancelledBy(raw string) (model.CancelledBy, error) {
	switch by := model.CancelledBy(raw); by {
	case "", model.CancelledByCustomer, model.CancelledBySeller, model.CancelledByAdmin:
		return by, nil
	default:
		return "", model.Errorf(model.ErrCodeInvalidRequest, "unknown cancelledBy %q", raw)
	}
}

func parseReturnAction(raw string) (model.ReturnAction, bool) {
	switch raw {
	case "approve", string(model.ReturnActionApprove):
		return model.ReturnActionApprove, true
	case "reject", string(model.ReturnActionReject):
		return model.ReturnActionReject, true
	default:
		return "", false
	}
}
