package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"order-lifecycle/internal/events"
	"order-lifecycle/internal/metrics"
	"order-lifecycle/internal/model"
	"order-lifecycle/internal/notify"
	"order-lifecycle/internal/payment"
	"order-lifecycle/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultRejectReason = "Return request does not meet policy"
	defaultEditor       = "customer"
)

// orderService implements OrderService.
//
// Orders are loaded, mutated in memory and written back as a whole document.
// There is no version check between load and save, so two concurrent updates
// of the same order resolve as last-write-wins.
type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	payments    payment.Gateway
	publisher   events.Publisher
	notifier    notify.Notifier
	opts        Options
	logger      zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	payments payment.Gateway,
	publisher events.Publisher,
	notifier notify.Notifier,
	opts Options,
	logger zerolog.Logger,
) OrderService {
	if opts.ReturnWindowDays <= 0 {
		opts.ReturnWindowDays = DefaultReturnWindowDays
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		payments:    payments,
		publisher:   publisher,
		notifier:    notifier,
		opts:        opts,
		logger:      logger.With().Str("service", "order").Logger(),
	}
}

// GetByID retrieves an order document.
func (s *orderService) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return s.load(ctx, id)
}

// UpdateOrderStatus moves an order to status.
func (s *orderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, raw string, opts StatusOptions) (*model.Order, error) {
	status, ok := model.ParseOrderStatus(raw)
	if !ok {
		s.logger.Warn().Str("order_id", id.String()).Str("status", raw).Msg("unknown order status")
		return nil, model.Errorf(model.ErrCodeInvalidTransition, "Unknown order status %q", raw)
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, status, opts)
}

// CancelOrder cancels an order that has not shipped yet.
func (s *orderService) CancelOrder(ctx context.Context, id uuid.UUID, reason string, cancelledBy model.CancelledBy) (*model.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !model.CanCancel(order.Status) {
		s.logger.Warn().
			Str("order_id", id.String()).
			Str("status", string(order.Status)).
			Msg("cancellation refused after shipment")
		return nil, model.ErrCannotCancel
	}

	if cancelledBy == "" {
		cancelledBy = model.CancelledByCustomer
	}
	description := fmt.Sprintf("Order cancelled by %s", cancelledBy)
	if reason != "" {
		description += ": " + reason
	}

	return s.transition(ctx, order, model.StatusCancelled, StatusOptions{
		Reason:      reason,
		CancelledBy: cancelledBy,
		Description: description,
		Actor:       string(cancelledBy),
	})
}

// transition applies a status change to a loaded order, persists it and runs
// the post-commit effects. Side effects never fail the transition.
func (s *orderService) transition(ctx context.Context, order *model.Order, status model.OrderStatus, opts StatusOptions) (*model.Order, error) {
	previous := order.Status
	logger := s.logger.With().
		Str("order_id", order.ID.String()).
		Str("from", string(previous)).
		Str("to", string(status)).
		Logger()

	if !model.CanTransition(previous, status) {
		rejected := s.opts.StrictTransitions
		metrics.IllegalTransitionsTotal.WithLabelValues(string(previous), string(status), strconv.FormatBool(rejected)).Inc()
		if rejected {
			allowed := model.AllowedTransitions(previous)
			logger.Warn().Strs("allowed", statusStrings(allowed)).Msg("transition rejected")
			return nil, model.Errorf(model.ErrCodeInvalidTransition, "Cannot move order from %s to %s (allowed: %s)",
				previous, status, joinStatuses(allowed))
		}
		logger.Warn().Msg("transition outside the transition table applied")
	}

	now := s.now()
	order.Status = status

	description := opts.Description
	if description == "" {
		description = fmt.Sprintf("Order status updated to %s", status)
	}
	order.AppendTimeline(status, description, now)

	switch status {
	case model.StatusShipped:
		order.Shipping.TrackingID = opts.TrackingID
		order.Shipping.Carrier = opts.Carrier
		order.Shipping.EstimatedDelivery = opts.EstimatedDelivery
		order.Shipping.ShippedAt = &now
	case model.StatusDelivered:
		order.Shipping.DeliveredAt = &now
	case model.StatusCancelled:
		cancelledBy := opts.CancelledBy
		if cancelledBy == "" {
			cancelledBy = model.CancelledByCustomer
		}
		order.Cancellation = &model.Cancellation{
			Reason:      opts.Reason,
			CancelledBy: cancelledBy,
			CancelledAt: now,
		}
		s.restockInventory(ctx, order)
		if order.Payment.IsRefundable() {
			s.refund(ctx, order, order.Pricing.Total)
		}
	case model.StatusRefunded:
		order.Payment.Status = model.PaymentStatusRefunded
	}

	if err := s.save(ctx, order, now); err != nil {
		return nil, err
	}

	metrics.StatusTransitionsTotal.WithLabelValues(string(previous), string(status)).Inc()
	logger.Info().Str("actor", opts.Actor).Msg("order status updated")

	s.publish(ctx, events.TypeStatusChanged, order, previous, now, opts.Actor)
	s.report(order, s.notifier.OrderStatusChanged(ctx, order, status))

	return order, nil
}

// RequestReturn opens a return request on a delivered order inside the return window.
func (s *orderService) RequestReturn(ctx context.Context, id uuid.UUID, data model.ReturnData) (*model.Order, error) {
	if strings.TrimSpace(data.Reason) == "" {
		return nil, model.NewDomainError(model.ErrCodeInvalidRequest, "Return reason is required")
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.Status != model.StatusDelivered {
		s.logger.Warn().
			Str("order_id", id.String()).
			Str("status", string(order.Status)).
			Msg("return requested on an undelivered order")
		return nil, model.ErrNotDelivered
	}

	now := s.now()
	if deliveredAt := order.Shipping.DeliveredAt; deliveredAt != nil {
		days := int(now.Sub(*deliveredAt).Hours() / 24)
		if days > s.opts.ReturnWindowDays {
			s.logger.Info().
				Str("order_id", id.String()).
				Int("days_since_delivery", days).
				Int("window_days", s.opts.ReturnWindowDays).
				Msg("return window expired")
			return nil, &model.DomainError{
				Code:    model.ErrCodeWindowExpired,
				Message: fmt.Sprintf("Return window of %d days has expired", s.opts.ReturnWindowDays),
				Err:     model.ErrReturnWindowExpired,
			}
		}
	}

	order.ReturnRequest = &model.ReturnRequest{
		Reason:      data.Reason,
		Title:       data.Title,
		Description: data.Description,
		Images:      data.Images,
		Status:      model.ReturnStatusRequested,
		RequestedAt: &now,
	}
	order.AppendTimeline(model.StatusReturnRequested, fmt.Sprintf("Return requested: %s", data.Reason), now)

	if err := s.save(ctx, order, now); err != nil {
		return nil, err
	}

	s.logger.Info().Str("order_id", id.String()).Str("reason", data.Reason).Msg("return requested")

	s.publish(ctx, events.TypeReturnRequested, order, order.Status, now, "")
	s.report(order, s.notifier.ReturnRequested(ctx, order))

	return order, nil
}

// ProcessReturnRequest approves or rejects an open return request.
// Rejections are recorded on the timeline but nobody is notified.
func (s *orderService) ProcessReturnRequest(ctx context.Context, id uuid.UUID, action model.ReturnAction, opts model.ReturnDecisionRequest) (*model.Order, error) {
	if action != model.ReturnActionApprove && action != model.ReturnActionReject {
		return nil, model.Errorf(model.ErrCodeInvalidRequest, "Unknown return action %q", action)
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	rr := order.ReturnRequest
	if rr == nil {
		return nil, model.ErrReturnRequestNotFound
	}

	now := s.now()
	previous := order.Status
	rr.ResolvedAt = &now

	if action == model.ReturnActionReject {
		reason := opts.Reason
		if reason == "" {
			reason = defaultRejectReason
		}
		rr.Status = model.ReturnStatusRejected
		order.AppendTimeline(order.Status, fmt.Sprintf("Return request rejected: %s", reason), now)

		if err := s.save(ctx, order, now); err != nil {
			return nil, err
		}

		s.logger.Info().Str("order_id", id.String()).Str("reason", reason).Msg("return request rejected")
		s.publish(ctx, events.TypeReturnResolved, order, previous, now, "")
		return order, nil
	}

	rr.Status = model.ReturnStatusApproved
	order.Status = model.StatusReturned

	pickup := opts.PickupDate
	if pickup == "" {
		pickup = notify.DefaultPickupETA
	}
	order.AppendTimeline(model.StatusReturned, fmt.Sprintf("Return approved, pickup %s", pickup), now)
	s.restockInventory(ctx, order)

	if err := s.save(ctx, order, now); err != nil {
		return nil, err
	}

	metrics.StatusTransitionsTotal.WithLabelValues(string(previous), string(model.StatusReturned)).Inc()
	s.logger.Info().Str("order_id", id.String()).Str("pickup_date", pickup).Msg("return request approved")

	s.publish(ctx, events.TypeReturnResolved, order, previous, now, "")
	s.report(order, s.notifier.ReturnApproved(ctx, order, opts.PickupDate))

	return order, nil
}

// ProcessRefund records a refund of amount against the order.
// Cash-on-delivery orders are returned unchanged.
func (s *orderService) ProcessRefund(ctx context.Context, id uuid.UUID, amount decimal.Decimal, reason string) (*model.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.Payment.Method == model.PaymentMethodCOD {
		s.logger.Info().Str("order_id", id.String()).Msg("cash on delivery order, nothing to refund")
		return order, nil
	}

	if !amount.IsPositive() {
		return nil, model.Errorf(model.ErrCodeInvalidRequest, "Refund amount must be positive, got %s", amount.StringFixed(2))
	}

	now := s.now()
	if order.Payment.IsRefundable() {
		s.refund(ctx, order, amount)
	}

	if order.ReturnRequest == nil {
		order.ReturnRequest = &model.ReturnRequest{}
	}
	order.ReturnRequest.Status = model.ReturnStatusRefunded
	order.ReturnRequest.RefundAmount = &amount
	order.Payment.Status = model.PaymentStatusRefunded

	description := fmt.Sprintf("Refund of %s processed", amount.StringFixed(2))
	if reason != "" {
		description += ": " + reason
	}
	order.AppendTimeline(order.Status, description, now)

	if err := s.save(ctx, order, now); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", id.String()).
		Str("amount", amount.StringFixed(2)).
		Msg("refund processed")

	s.publish(ctx, events.TypeRefunded, order, order.Status, now, "")
	s.report(order, s.notifier.RefundProcessed(ctx, order, amount))

	return order, nil
}

// EditOrder changes the shipping address while the order is still editable.
func (s *orderService) EditOrder(ctx context.Context, id uuid.UUID, req model.EditRequest) (*model.Order, error) {
	if req.ShippingAddress == nil {
		return nil, model.NewDomainError(model.ErrCodeInvalidRequest, "Nothing to edit")
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !model.CanEdit(order.Status) {
		s.logger.Warn().
			Str("order_id", id.String()).
			Str("status", string(order.Status)).
			Msg("edit refused")
		return nil, model.ErrCannotEdit
	}

	editedBy := req.EditedBy
	if editedBy == "" {
		editedBy = defaultEditor
	}

	now := s.now()
	order.ShippingAddress = *req.ShippingAddress
	order.AddNote("Shipping address updated", editedBy, now)

	if err := s.save(ctx, order, now); err != nil {
		return nil, err
	}

	s.logger.Info().Str("order_id", id.String()).Str("edited_by", editedBy).Msg("order edited")
	s.publish(ctx, events.TypeEdited, order, order.Status, now, editedBy)

	return order, nil
}

// AddNote appends a free-text note.
func (s *orderService) AddNote(ctx context.Context, id uuid.UUID, text, addedBy string) (*model.Order, error) {
	if strings.TrimSpace(text) == "" {
		return nil, model.NewDomainError(model.ErrCodeInvalidRequest, "Note text is required")
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order.AddNote(text, addedBy, now)

	if err := s.save(ctx, order, now); err != nil {
		return nil, err
	}
	return order, nil
}

// restockInventory adds every line item's quantity back to its product.
// Missing products and storage failures are logged and skipped.
func (s *orderService) restockInventory(ctx context.Context, order *model.Order) {
	for _, item := range order.Items {
		logger := s.logger.With().
			Str("order_id", order.ID.String()).
			Str("product_id", item.ProductID).
			Logger()

		product, err := s.productRepo.GetByID(ctx, item.ProductID)
		if err != nil {
			logger.Error().Err(err).Msg("failed to load product for restock")
			continue
		}
		if product == nil {
			logger.Debug().Msg("product no longer exists, restock skipped")
			continue
		}

		product.Inventory.Stock += item.Quantity
		product.UpdatedAt = s.now()
		if err := s.productRepo.Save(ctx, product); err != nil {
			logger.Error().Err(err).Msg("failed to save restocked product")
			continue
		}

		metrics.RestockedUnitsTotal.Add(float64(item.Quantity))
		logger.Debug().Int("quantity", item.Quantity).Int("stock", product.Inventory.Stock).Msg("product restocked")
	}
}

// refund calls the payment gateway once and records the outcome on the order.
// A failed refund is logged and leaves the payment status untouched.
func (s *orderService) refund(ctx context.Context, order *model.Order, amount decimal.Decimal) {
	res := s.payments.Refund(ctx, order.Payment.TransactionID, model.ToMinorUnits(amount))
	if !res.Success {
		metrics.RefundsTotal.WithLabelValues("failed").Inc()
		s.logger.Error().
			Str("order_id", order.ID.String()).
			Str("code", model.ErrCodeExternalChannelFailure).
			Str("transaction_id", order.Payment.TransactionID).
			Str("error", res.Error).
			Msg("refund failed")
		return
	}

	metrics.RefundsTotal.WithLabelValues("succeeded").Inc()
	order.Payment.Status = model.PaymentStatusRefunded
	order.Payment.RefundID = res.ProviderRefundID
	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("refund_id", res.ProviderRefundID).
		Str("amount", amount.StringFixed(2)).
		Msg("refund issued")
}

func (s *orderService) load(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, model.Internal("Failed to load order", err)
	}
	if order == nil {
		s.logger.Debug().Str("order_id", id.String()).Msg("order not found")
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) save(ctx context.Context, order *model.Order, now time.Time) error {
	order.UpdatedAt = now
	if err := s.orderRepo.Save(ctx, order); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to save order")
		return model.Internal("Failed to save order", err)
	}
	return nil
}

func (s *orderService) publish(ctx context.Context, eventType string, order *model.Order, previous model.OrderStatus, at time.Time, actor string) {
	event := events.NewOrderEvent(eventType, order, previous, at)
	if actor != "" {
		event.Metadata = map[string]string{"actor": actor}
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		metrics.EventPublishFailuresTotal.Inc()
		s.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Str("event_type", eventType).
			Msg("failed to publish order event")
	}
}

// report logs and counts the failed channels of a notification.
func (s *orderService) report(order *model.Order, report notify.Report) {
	for _, failed := range report.Failed() {
		metrics.NotificationFailuresTotal.WithLabelValues(string(failed.Channel)).Inc()
		s.logger.Warn().
			Str("order_id", order.ID.String()).
			Str("code", model.ErrCodeExternalChannelFailure).
			Str("kind", report.Kind).
			Str("channel", string(failed.Channel)).
			Str("recipient", failed.Recipient).
			Str("error", failed.Err).
			Msg("notification delivery failed")
	}
}

func (s *orderService) now() time.Time {
	return s.opts.Clock().UTC()
}

func statusStrings(statuses []model.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

func joinStatuses(statuses []model.OrderStatus) string {
	if len(statuses) == 0 {
		return "none"
	}
	return strings.Join(statusStrings(statuses), ", ")
}
