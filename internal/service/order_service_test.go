package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"order-lifecycle/internal/events"
	"order-lifecycle/internal/model"
	"order-lifecycle/internal/notify"
	"order-lifecycle/internal/payment"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) Save(ctx context.Context, order *model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

// MockPaymentGateway is a mock implementation of payment.Gateway.
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) Refund(ctx context.Context, transactionID string, amountMinor int64) payment.RefundResult {
	args := m.Called(ctx, transactionID, amountMinor)
	return args.Get(0).(payment.RefundResult)
}

// MockPublisher is a mock implementation of events.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.OrderEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

// MockNotifier is a mock implementation of notify.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) OrderStatusChanged(ctx context.Context, order *model.Order, status model.OrderStatus) notify.Report {
	return m.Called(ctx, order, status).Get(0).(notify.Report)
}

func (m *MockNotifier) ReturnRequested(ctx context.Context, order *model.Order) notify.Report {
	return m.Called(ctx, order).Get(0).(notify.Report)
}

func (m *MockNotifier) ReturnApproved(ctx context.Context, order *model.Order, pickupDate string) notify.Report {
	return m.Called(ctx, order, pickupDate).Get(0).(notify.Report)
}

func (m *MockNotifier) RefundProcessed(ctx context.Context, order *model.Order, amount decimal.Decimal) notify.Report {
	return m.Called(ctx, order, amount).Get(0).(notify.Report)
}

var testNow = time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)

type testDeps struct {
	orders    *MockOrderRepository
	products  *MockProductRepository
	payments  *MockPaymentGateway
	publisher *MockPublisher
	notifier  *MockNotifier
}

func newTestService(t *testing.T, opts Options) (OrderService, *testDeps) {
	t.Helper()
	deps := &testDeps{
		orders:    new(MockOrderRepository),
		products:  new(MockProductRepository),
		payments:  new(MockPaymentGateway),
		publisher: new(MockPublisher),
		notifier:  new(MockNotifier),
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return testNow }
	}
	svc := NewOrderService(deps.orders, deps.products, deps.payments, deps.publisher, deps.notifier, opts, zerolog.Nop())
	return svc, deps
}

func newOrder(status model.OrderStatus) *model.Order {
	created := testNow.Add(-72 * time.Hour)
	return &model.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-1001",
		Status:      status,
		Customer:    &model.Party{ID: "C1", Name: "Asha", Phone: "9876543210", Email: "asha@example.com"},
		Items: []model.OrderItem{
			{ProductID: "P1", Seller: model.Party{ID: "S1"}, Name: "Kurta", Price: decimal.RequireFromString("899.50"), Quantity: 2},
			{ProductID: "P2", Seller: model.Party{ID: "S2"}, Name: "Lamp", Price: decimal.NewFromInt(90), Quantity: 1},
		},
		Pricing: model.Pricing{Total: decimal.RequireFromString("1889.00")},
		Payment: model.Payment{
			Method:        model.PaymentMethodOnline,
			Status:        model.PaymentStatusPaid,
			TransactionID: "pi_123",
		},
		Timeline:  []model.TimelineEntry{{Status: status, Description: "Order placed", Timestamp: created}},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func (d *testDeps) expectLoad(order *model.Order) {
	d.orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)
}

func (d *testDeps) expectSave() {
	d.orders.On("Save", mock.Anything, mock.AnythingOfType("*model.Order")).Return(nil)
}

func (d *testDeps) expectPublish() {
	d.publisher.On("Publish", mock.Anything, mock.AnythingOfType("events.OrderEvent")).Return(nil)
}

func (d *testDeps) expectProducts(products ...*model.Product) {
	for _, p := range products {
		d.products.On("GetByID", mock.Anything, p.ID).Return(p, nil)
	}
	d.products.On("Save", mock.Anything, mock.AnythingOfType("*model.Product")).Return(nil)
}

func TestOrderService_UpdateOrderStatus_Shipped(t *testing.T) {
	svc, deps := newTestService(t, Options{})
	order := newOrder(model.StatusConfirmed)
	eta := testNow.Add(72 * time.Hour)

	deps.expectLoad(order)
	deps.expectSave()
	deps.expectPublish()
	deps.notifier.On("OrderStatusChanged", mock.Anything, order, model.StatusShipped).Return(notify.Report{Kind: notify.KindShipped})

	result, err := svc.UpdateOrderStatus(context.Background(), order.ID, "shipped", StatusOptions{
		TrackingID:        "TRK1",
		Carrier:           "DHL",
		EstimatedDelivery: &eta,
	})

	require.NoError(t, err)
	assert.Equal(t, model.StatusShipped, result.Status)
	assert.Equal(t, "TRK1", result.Shipping.TrackingID)
	assert.Equal(t, "DHL", result.Shipping.Carrier)
	require.NotNil(t, result.Shipping.ShippedAt)
	assert.Equal(t, testNow, *result.Shipping.ShippedAt)
	assert.Equal(t, &eta, result.Shipping.EstimatedDelivery)
	require.Len(t, result.Timeline, 2)
	assert.Equal(t, model.TimelineEntry{Status: model.StatusShipped, Description: "Order status updated to shipped", Timestamp: testNow}, result.Timeline[1])
	assert.Equal(t, testNow, result.UpdatedAt)

	deps.orders.AssertNumberOfCalls(t, "Save", 1)
	deps.payments.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
	deps.notifier.AssertExpectations(t)
}

func TestOrderService_UpdateOrderStatus_SideEffects(t *testing.T) {
	tests := []struct {
		name   string
		from   model.OrderStatus
		to     model.OrderStatus
		opts   StatusOptions
		verify func(t *testing.T, order *model.Order)
	}{
		{
			name: "delivered stamps deliveredAt",
			from: model.StatusOutForDelivery,
			to:   model.StatusDelivered,
			verify: func(t *testing.T, order *model.Order) {
				require.NotNil(t, order.Shipping.DeliveredAt)
				assert.Equal(t, testNow, *order.Shipping.DeliveredAt)
			},
		},
		{
			name: "refunded marks payment refunded without calling the gateway",
			from: model.StatusReturned,
			to:   model.StatusRefunded,
			verify: func(t *testing.T, order *model.Order) {
				assert.Equal(t, model.PaymentStatusRefunded, order.Payment.Status)
			},
		},
		{
			name: "description override",
			from: model.StatusConfirmed,
			to:   model.StatusProcessing,
			opts: StatusOptions{Description: "Picked by warehouse"},
			verify: func(t *testing.T, order *model.Order) {
				assert.Equal(t, "Picked by warehouse", order.Timeline[len(order.Timeline)-1].Description)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newTestService(t, Options{})
			order := newOrder(tt.from)

			deps.expectLoad(order)
			deps.expectSave()
			deps.expectPublish()
			deps.notifier.On("OrderStatusChanged", mock.Anything, order, tt.to).Return(notify.Report{})

			result, err := svc.UpdateOrderStatus(context.Background(), order.ID, string(tt.to), tt.opts)

			require.NoError(t, err)
			assert.Equal(t, tt.to, result.Status)
			assert.Len(t, result.Timeline, 2)
			tt.verify(t, result)
			deps.payments.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestOrderService_UpdateOrderStatus_Errors(t *testing.T) {
	tests := []struct {
		name         string
		status       string
		setupMocks   func(d *testDeps, id uuid.UUID)
		expectedCode string
	}{
		{
			name:         "unknown status token",
			status:       "teleported",
			setupMocks:   func(d *testDeps, id uuid.UUID) {},
			expectedCode: model.ErrCodeInvalidTransition,
		},
		{
			name:   "order not found",
			status: "shipped",
			setupMocks: func(d *testDeps, id uuid.UUID) {
				d.orders.On("GetByID", mock.Anything, id).Return(nil, nil)
			},
			expectedCode: model.ErrCodeNotFound,
		},
		{
			name:   "storage failure",
			status: "shipped",
			setupMocks: func(d *testDeps, id uuid.UUID) {
				d.orders.On("GetByID", mock.Anything, id).Return(nil, errors.New("connection refused"))
			},
			expectedCode: model.ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newTestService(t, Options{})
			id := uuid.New()
			tt.setupMocks(deps, id)

			result, err := svc.UpdateOrderStatus(context.Background(), id, tt.status, StatusOptions{})

			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, tt.expectedCode, model.ErrorCode(err))
			deps.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestOrderService_UpdateOrderStatus_SaveFailure(t *testing.T) {
	svc, deps := newTestService(t, Options{})
	order := newOrder(model.StatusConfirmed)

	deps.expectLoad(order)
	deps.orders.On("Save", mock.Anything, order).Return(errors.New("disk full"))

	result, err := svc.UpdateOrderStatus(context.Background(), order.ID, "processing", StatusOptions{})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, model.ErrCodeInternalError, model.ErrorCode(err))
	deps.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	deps.notifier.AssertNotCalled(t, "OrderStatusChanged", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_UpdateOrderStatus_LenientDuplicateAppendsTimeline(t *testing.T) {
	svc, deps := newTestService(t, Options{})
	order := newOrder(model.StatusShipped)

	deps.expectLoad(order)
	deps.expectSave()
	deps.expectPublish()
	deps.notifier.On("OrderStatusChanged", mock.Anything, order, model.StatusShipped).Return(notify.Report{})

	for range 2 {
		_, err := svc.UpdateOrderStatus(context.Background(), order.ID, "shipped", StatusOptions{TrackingID: "TRK1"})
		require.NoError(t, err)
	}

	assert.Len(t, order.Timeline, 3)
	assert.Equal(t, model.StatusShipped, order.Timeline[1].Status)
	assert.Equal(t, model.StatusShipped, order.Timeline[2].Status)
	deps.orders.AssertNumberOfCalls(t, "Save", 2)
}

func TestOrderService_UpdateOrderStatus_StrictRejectsBackwardMove(t *testing.T) {
	svc, deps := newTestService(t, Options{StrictTransitions: true})
	order := newOrder(model.StatusDelivered)
	before := *order
	before.Timeline = append([]model.TimelineEntry(nil), order.Timeline...)

	deps.expectLoad(order)

	result, err := svc.UpdateOrderStatus(context.Background(), order.ID, "processing", StatusOptions{})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, model.ErrKindInvalidTransition)
	assert.Equal(t, "Cannot move order from delivered to processing (allowed: return_requested, returned)", err.Error())
	assert.Equal(t, before, *order)
	deps.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestOrderService_UpdateOrderStatus_NotificationFailureIsNonFatal(t *testing.T) {
	svc, deps := newTestService(t, Options{})
	order := newOrder(model.StatusPacked)

	var saved model.OrderStatus
	deps.expectLoad(order)
	deps.orders.On("Save", mock.Anything, order).Run(func(args mock.Arguments) {
		saved = args.Get(1).(*model.Order).Status
	}).Return(nil)
	deps.expectPublish()
	deps.notifier.On("OrderStatusChanged", mock.Anything, order, model.StatusShipped).Return(notify.Report{
		Kind: notify.KindShipped,
		Results: []notify.ChannelResult{
			{Channel: notify.ChannelWhatsApp, Recipient: "9876543210", Success: true},
			{Channel: notify.ChannelEmail, Recipient: "asha@example.com", Success: false, Err: "i/o timeout"},
		},
	})

	result, err := svc.UpdateOrderStatus(context.Background(), order.ID, "shipped", StatusOptions{TrackingID: "TRK1", Carrier: "DHL"})

	require.NoError(t, err)
	assert.Equal(t, model.StatusShipped, result.Status)
	assert.Equal(t, model.StatusShipped, saved)
}

func TestOrderService_UpdateOrderStatus_PublishFailureIsNonFatal(t *testing.T) {
	svc, deps := newTestService(t, Options{})
	order := newOrder(model.StatusConfirmed)

	deps.expectLoad(order)
	deps.expectSave()
	deps.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e events.OrderEvent) bool {
		return e.Type == events.TypeStatusChanged &&
			e.PreviousStatus == model.StatusConfirmed &&
			e.CurrentStatus == model.StatusProcessing &&
			e.OrderID == order.ID.String()
	})).Return(errors.New("broker unavailable"))
	deps.notifier.On("OrderStatusChanged", mock.Anything, order, model.StatusProcessing).Return(notify.Report{})

	result, err := svc.UpdateOrderStatus(context.Background(), order.ID, "processing", StatusOptions{})

	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, result.Status)
	deps.publisher.AssertExpectations(t)
	deps.notifier.AssertExpectations(t)
}

func TestOrderService_CancelOrder_PaidOnline(t *testing.T) {
	svc, deps := newTestService(t, Options{})
	order := newOrder(model.StatusPending)
	p1 := &model.Product{ID: "P1", Inventory: model.Inventory{Stock: 5}}
	p2 := &model.Product{ID: "P2", Inventory: model.Inventory{Stock: 0}}

	deps.expectLoad(order)
	deps.expectProducts(p1, p2)
	deps.expectSave()
	deps.expectPublish()
	deps.payments.On("Refund", mock.Anything, "pi_123", int64(188900)).
		Return(payment.RefundResult{Success: true, ProviderRefundID: "re_1"}).Once()
	deps.notifier.On("OrderStatusChanged", mock.Anything, order, model.StatusCancelled).Return(notify.Report{})

	result, err := svc.CancelOrder(context.Background(), order.ID, "customer changed mind", "")

	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, result.Status)
	require.NotNil(t, result.Cancellation)
	assert.Equal(t, "customer changed mind", result.Cancellation.Reason)
	assert.Equal(t, model.CancelledByCustomer, result.Cancellation.CancelledBy)
	assert.Equal(t, testNow, result.Cancellation.CancelledAt)
	assert.Equal(t, 7, p1.Inventory.Stock)
	assert.Equal(t, 1, p2.Inventory.Stock)
	assert.Equal(t, model.PaymentStatusRefunded, result.Payment.Status)
	assert.Equal(t, "re_1", result.Payment.RefundID)
	require.Len(t, result.Timeline, 2)
	assert.Equal(t, "Order cancelled by customer: customer changed mind", result.Timeline[1].Description)
	deps.payments.AssertExpectations(t)
}

func TestOrderService_CancelOrder_RefundEligibility(t *testing.T) {
	tests := []struct {
		name    string
		payment model.Payment
	}{
		{name: "cash on delivery", payment: model.Payment{Method: model.PaymentMethodCOD, Status: model.PaymentStatusPaid}},
		{name: "unpaid", payment: model.Payment{Method: model.PaymentMethodCard, Status: model.PaymentStatusPending}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newTestService(t, Options{})
			order := newOrder(model.StatusConfirmed)
			order.Payment = tt.payment

			deps.expectLoad(order)
			deps.expectProducts(&model.Product{ID: "P1"}, &model.Product{ID: "P2"})
			deps.expectSave()
			deps.expectPublish()
			deps.notifier.On("OrderStatusChanged", mock.Anything, order, model.StatusCancelled).Return(notify.Report{})

			result, err := svc.CancelOrder(context.Background(), order.ID, "duplicate order", model.CancelledByAdmin)

			require.NoError(t, err)
			assert.Equal(t, tt.payment.Status, result.Payment.Status)
			assert.Equal(t, model.CancelledByAdmin, result.Cancellation.CancelledBy)
			deps.payments.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestOrderService_CancelOrder_RefundFailureIsNonFatal(t *testing.T) {
	svc, deps := newTestService(t, Options{})
	order := newOrder(model.StatusProcessing)

	deps.expectLoad(order)
	deps.expectProducts(&model.Product{ID: "P1"}, &model.Product{ID: "P2"})
	deps.expectSave()
	deps.expectPublish()
	deps.payments.On("Refund", mock.Anything, "pi_123", int64(188900)).
		Return(payment.RefundResult{Success: false, Error: "card_declined"}).Once()
	deps.notifier.On("OrderStatusChanged", mock.Anything, order, model.StatusCancelled).Return(notify.Report{})

	result, err := svc.CancelOrder(context.Background(), order.ID, "out of stock", model.CancelledBySeller)

	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, result.Status)
	assert.Equal(t, model.PaymentStatusPaid, result.Payment.Status)
	assert.Empty(t, result.Payment.RefundID)
}

func TestOrderService_CancelOrder_Guard(t *testing.T) {
	for _, status := range []model.OrderStatus{model.StatusShipped, model.StatusOutForDelivery, model.StatusDelivered} {
		t.Run(string(status), func(t *testing.T) {
			svc, deps := newTestService(t, Options{})
			order := newOrder(status)
			deps.expectLoad(order)

			result, err := svc.CancelOrder(context.Background(), order.ID, "too late", "")

			assert.Nil(t, result)
			assert.ErrorIs(t, err, model.ErrCannotCancel)
			assert.Equal(t, model.ErrCodeInvalidTransition, model.ErrorCode(err))
			deps.products.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
			deps.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

// Cancelling twice restocks twice; the second cancel is not guarded.
func TestOrderService_CancelOrder_TwiceDoubleRestocks(t *testing.T) {
	svc, deps := newTestService(t, Options{})
	order := newOrder(model.StatusPending)
	order.Payment = model.Payment{Method: model.PaymentMethodCOD, Status: model.PaymentStatusPending}
	p1 := &model.Product{ID: "P1", Inventory: model.Inventory{Stock: 0}}

	deps.expectLoad(order)
	deps.products.On("GetByID", mock.Anything, "P1").Return(p1, nil)
	deps.products.On("GetByID", mock.Anything, "P2").Return(nil, nil)
	deps.products.On("Save", mock.Anything, p1).Return(nil)
	deps.expectSave()
	deps.expectPublish()
	deps.notifier.On("OrderStatusChanged", mock.Anything, order, model.StatusCancelled).Return(notify.Report{})

	_, err := svc.CancelOrder(context.Background(), order.ID, "first", "")
	require.NoError(t, err)
	_, err = svc.CancelOrder(context.Background(), order.ID, "second", "")
	require.NoError(t, err)

	assert.Equal(t, 4, p1.Inventory.Stock)
	assert.Len(t, order.Timeline, 3)
	deps.products.AssertNumberOfCalls(t, "Save", 2)
}

func TestOrderService_CancelOrder_StrictRejectsRepeat(t *testing.T) {
	svc, deps := newTestService(t, Options{StrictTransitions: true})
	order := newOrder(model.StatusCancelled)
	deps.expectLoad(order)

	_, err := svc.CancelOrder(context.Background(), order.ID, "again", "")

	assert.ErrorIs(t, err, model.ErrKindInvalidTransition)
	deps.products.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestOrderService_RequestReturn_Window(t *testing.T) {
	tests := []struct {
		name          string
		deliveredAgo  time.Duration
		windowDays    int
		expectedError error
	}{
		{name: "three days", deliveredAgo: 3 * 24 * time.Hour},
		{name: "exactly seven days", deliveredAgo: 7 * 24 * time.Hour},
		{name: "seven and a half days", deliveredAgo: 7*24*time.Hour + 12*time.Hour},
		{name: "eight days", deliveredAgo: 8 * 24 * time.Hour, expectedError: model.ErrKindWindowExpired},
		{name: "custom window", deliveredAgo: 10 * 24 * time.Hour, windowDays: 14},
		{name: "custom window expired", deliveredAgo: 3 * 24 * time.Hour, windowDays: 2, expectedError: model.ErrKindWindowExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newTestService(t, Options{ReturnWindowDays: tt.windowDays})
			order := newOrder(model.StatusDelivered)
			deliveredAt := testNow.Add(-tt.deliveredAgo)
			order.Shipping.DeliveredAt = &deliveredAt

			deps.expectLoad(order)
			deps.expectSave()
			deps.expectPublish()
			deps.notifier.On("ReturnRequested", mock.Anything, order).Return(notify.Report{})

			result, err := svc.RequestReturn(context.Background(), order.ID, model.ReturnData{Reason: "defective", Title: "Broken item"})

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.ErrorIs(t, err, model.ErrReturnWindowExpired)
				assert.Equal(t, model.ErrCodeWindowExpired, model.ErrorCode(err))
				assert.Contains(t, err.Error(), "Return window of")
				assert.Nil(t, result)
				assert.Nil(t, order.ReturnRequest)
				deps.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, result.ReturnRequest)
			assert.Equal(t, model.ReturnStatusRequested, result.ReturnRequest.Status)
		})
	}
}

func TestOrderService_RequestReturn_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        model.OrderStatus
		data          model.ReturnData
		expectedError error
	}{
		{name: "not delivered", status: model.StatusShipped, data: model.ReturnData{Reason: "defective"}, expectedError: model.ErrNotDelivered},
		{name: "already returned", status: model.StatusReturned, data: model.ReturnData{Reason: "defective"}, expectedError: model.ErrKindInvalidState},
		{name: "missing reason", status: model.StatusDelivered, data: model.ReturnData{Title: "x"}, expectedError: model.ErrKindInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newTestService(t, Options{})
			order := newOrder(tt.status)
			deps.expectLoad(order)

			_, err := svc.RequestReturn(context.Background(), order.ID, tt.data)

			assert.ErrorIs(t, err, tt.expectedError)
			deps.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestOrderService_ReturnAndApprove(t *testing.T) {
	svc, deps := newTestService(t, Options{})
	order := newOrder(model.StatusDelivered)
	deliveredAt := testNow.Add(-3 * 24 * time.Hour)
	order.Shipping.DeliveredAt = &deliveredAt
	p1 := &model.Product{ID: "P1", Inventory: model.Inventory{Stock: 1}}
	p2 := &model.Product{ID: "P2", Inventory: model.Inventory{Stock: 1}}

	deps.expectLoad(order)
	deps.expectProducts(p1, p2)
	deps.expectSave()
	deps.expectPublish()
	deps.notifier.On("ReturnRequested", mock.Anything, order).Return(notify.Report{}).Once()
	deps.notifier.On("ReturnApproved", mock.Anything, order, "2024-01-10").Return(notify.Report{}).Once()

	result, err := svc.RequestReturn(context.Background(), order.ID, model.ReturnData{
		Reason: "defective",
		Title:  "Broken item",
		Images: []string{"https://cdn.example.com/1.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, result.Status)
	assert.Equal(t, model.ReturnStatusRequested, result.ReturnRequest.Status)
	assert.Equal(t, "Broken item", result.ReturnRequest.Title)
	assert.Equal(t, testNow, *result.ReturnRequest.RequestedAt)
	assert.Equal(t, model.StatusReturnRequested, result.Timeline[len(result.Timeline)-1].Status)

	result, err = svc.ProcessReturnRequest(context.Background(), order.ID, model.ReturnActionApprove, model.ReturnDecisionRequest{PickupDate: "2024-01-10"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusReturned, result.Status)
	assert.Equal(t, model.ReturnStatusApproved, result.ReturnRequest.Status)
	assert.Equal(t, testNow, *result.ReturnRequest.ResolvedAt)
	assert.Equal(t, 3, p1.Inventory.Stock)
	assert.Equal(t, 2, p2.Inventory.Stock)
	assert.Len(t, result.Timeline, 3)
	deps.notifier.AssertExpectations(t)
}

func TestOrderService_ProcessReturnRequest_RejectDoesNotNotify(t *testing.T) {
	tests := []struct {
		name                string
		reason              string
		expectedDescription string
	}{
		{name: "with reason", reason: "Item used", expectedDescription: "Return request rejected: Item used"},
		{name: "default reason", expectedDescription: "Return request rejected: Return request does not meet policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newTestService(t, Options{})
			order := newOrder(model.StatusDelivered)
			order.ReturnRequest = &model.ReturnRequest{Reason: "defective", Status: model.ReturnStatusRequested}

			deps.expectLoad(order)
			deps.expectSave()
			deps.expectPublish()

			result, err := svc.ProcessReturnRequest(context.Background(), order.ID, model.ReturnActionReject, model.ReturnDecisionRequest{Reason: tt.reason})

			require.NoError(t, err)
			assert.Equal(t, model.StatusDelivered, result.Status)
			assert.Equal(t, model.ReturnStatusRejected, result.ReturnRequest.Status)
			last := result.Timeline[len(result.Timeline)-1]
			assert.Equal(t, model.StatusDelivered, last.Status)
			assert.Equal(t, tt.expectedDescription, last.Description)
			deps.notifier.AssertNotCalled(t, "ReturnApproved", mock.Anything, mock.Anything, mock.Anything)
			deps.products.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
		})
	}
}

func TestOrderService_ProcessReturnRequest_Errors(t *testing.T) {
	svc, deps := newTestService(t, Options{})
	order := newOrder(model.StatusDelivered)
	deps.expectLoad(order)

	_, err := svc.ProcessReturnRequest(context.Background(), order.ID, model.ReturnActionApprove, model.ReturnDecisionRequest{})
	assert.ErrorIs(t, err, model.ErrReturnRequestNotFound)

	_, err = svc.ProcessReturnRequest(context.Background(), order.ID, model.ReturnAction("escalated"), model.ReturnDecisionRequest{})
	assert.ErrorIs(t, err, model.ErrKindInvalidRequest)
}

func TestOrderService_ProcessRefund(t *testing.T) {
	svc, deps := newTestService(t, Options{})
	order := newOrder(model.StatusReturned)
	amount := decimal.RequireFromString("899.50")

	deps.expectLoad(order)
	deps.expectSave()
	deps.expectPublish()
	deps.payments.On("Refund", mock.Anything, "pi_123", int64(89950)).
		Return(payment.RefundResult{Success: true, ProviderRefundID: "re_9"}).Once()
	deps.notifier.On("RefundProcessed", mock.Anything, order, amount).Return(notify.Report{})

	result, err := svc.ProcessRefund(context.Background(), order.ID, amount, "damaged in transit")

	require.NoError(t, err)
	assert.Equal(t, model.StatusReturned, result.Status)
	require.NotNil(t, result.ReturnRequest)
	assert.Equal(t, model.ReturnStatusRefunded, result.ReturnRequest.Status)
	assert.True(t, amount.Equal(*result.ReturnRequest.RefundAmount))
	assert.Equal(t, model.PaymentStatusRefunded, result.Payment.Status)
	assert.Equal(t, "re_9", result.Payment.RefundID)
	assert.Equal(t, "Refund of 899.50 processed: damaged in transit", result.Timeline[len(result.Timeline)-1].Description)
	deps.payments.AssertExpectations(t)
	deps.notifier.AssertExpectations(t)
}

func TestOrderService_ProcessRefund_CashOnDeliveryIsNoop(t *testing.T) {
	svc, deps := newTestService(t, Options{})
	order := newOrder(model.StatusReturned)
	order.Payment = model.Payment{Method: model.PaymentMethodCOD, Status: model.PaymentStatusPaid}
	deps.expectLoad(order)

	result, err := svc.ProcessRefund(context.Background(), order.ID, decimal.NewFromInt(100), "")

	require.NoError(t, err)
	assert.Same(t, order, result)
	assert.Nil(t, result.ReturnRequest)
	assert.Equal(t, model.PaymentStatusPaid, result.Payment.Status)
	deps.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	deps.payments.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
	deps.notifier.AssertNotCalled(t, "RefundProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_ProcessRefund_InvalidAmount(t *testing.T) {
	svc, deps := newTestService(t, Options{})
	order := newOrder(model.StatusReturned)
	deps.expectLoad(order)

	_, err := svc.ProcessRefund(context.Background(), order.ID, decimal.Zero, "")

	assert.ErrorIs(t, err, model.ErrKindInvalidRequest)
	deps.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestOrderService_EditOrder(t *testing.T) {
	address := &model.Address{Name: "Asha", Line1: "12 MG Road", City: "Pune", PostalCode: "411001", Country: "IN"}

	tests := []struct {
		name          string
		status        model.OrderStatus
		req           model.EditRequest
		expectedError error
	}{
		{name: "pending", status: model.StatusPending, req: model.EditRequest{ShippingAddress: address, EditedBy: "support"}},
		{name: "confirmed", status: model.StatusConfirmed, req: model.EditRequest{ShippingAddress: address}},
		{name: "processing", status: model.StatusProcessing, req: model.EditRequest{ShippingAddress: address}, expectedError: model.ErrCannotEdit},
		{name: "empty edit", status: model.StatusPending, req: model.EditRequest{}, expectedError: model.ErrKindInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newTestService(t, Options{})
			order := newOrder(tt.status)

			deps.expectLoad(order)
			deps.expectSave()
			deps.expectPublish()

			result, err := svc.EditOrder(context.Background(), order.ID, tt.req)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				deps.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, *address, result.ShippingAddress)
			require.Len(t, result.Notes, 1)
			assert.Equal(t, "Shipping address updated", result.Notes[0].Text)
			assert.Len(t, result.Timeline, 1)
		})
	}
}

func TestOrderService_AddNote(t *testing.T) {
	svc, deps := newTestService(t, Options{})
	order := newOrder(model.StatusShipped)
	deps.expectLoad(order)
	deps.expectSave()

	result, err := svc.AddNote(context.Background(), order.ID, "Customer called about delivery slot", "support")

	require.NoError(t, err)
	require.Len(t, result.Notes, 1)
	assert.Equal(t, model.Note{Text: "Customer called about delivery slot", AddedBy: "support", Timestamp: testNow}, result.Notes[0])

	_, err = svc.AddNote(context.Background(), order.ID, "  ", "support")
	assert.ErrorIs(t, err, model.ErrKindInvalidRequest)
}
