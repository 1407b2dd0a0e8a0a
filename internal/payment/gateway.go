// Package payment issues refunds against the payment provider that captured an order.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// RefundResult is the outcome of a refund call. Refund never returns an error value.
type RefundResult struct {
	Success          bool
	ProviderRefundID string
	Error            string
}

// Gateway refunds captured payments. amountMinor is in the currency's minor units.
type Gateway interface {
	Refund(ctx context.Context, transactionID string, amountMinor int64) RefundResult
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeGateway struct {
	refunds stripeRefundAPI
	logger  zerolog.Logger
}

// NewStripeGateway creates a Stripe-backed refund gateway.
func NewStripeGateway(secretKey string, logger zerolog.Logger) (Gateway, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	sc := client.New(secretKey, nil)
	return newStripeGateway(sc.Refunds, logger), nil
}

func newStripeGateway(refunds stripeRefundAPI, logger zerolog.Logger) *stripeGateway {
	return &stripeGateway{
		refunds: refunds,
		logger:  logger.With().Str("component", "payment").Str("provider", "stripe").Logger(),
	}
}

func (g *stripeGateway) Refund(ctx context.Context, transactionID string, amountMinor int64) RefundResult {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return g.fail(transactionID, errors.New("transaction id is required"))
	}
	if amountMinor <= 0 {
		return g.fail(transactionID, fmt.Errorf("refund amount must be positive, got %d", amountMinor))
	}

	params := &stripe.RefundParams{
		Amount: stripe.Int64(amountMinor),
		Reason: stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if strings.HasPrefix(transactionID, "ch_") {
		params.Charge = stripe.String(transactionID)
	} else {
		params.PaymentIntent = stripe.String(transactionID)
	}
	params.Context = ctx
	params.SetIdempotencyKey(fmt.Sprintf("refund:%s:%d", transactionID, amountMinor))

	refund, err := g.refunds.New(params)
	if err != nil {
		return g.fail(transactionID, fmt.Errorf("stripe: create refund: %w", err))
	}

	g.logger.Info().
		Str("transaction_id", transactionID).
		Str("refund_id", refund.ID).
		Int64("amount_minor", amountMinor).
		Str("status", string(refund.Status)).
		Msg("refund created")

	return RefundResult{Success: true, ProviderRefundID: refund.ID}
}

func (g *stripeGateway) fail(transactionID string, err error) RefundResult {
	g.logger.Error().Err(err).Str("transaction_id", transactionID).Msg("refund failed")
	return RefundResult{Success: false, Error: err.Error()}
}

type logGateway struct {
	logger zerolog.Logger
}

// NewLogGateway returns a gateway that records the refund intent in the log and reports success.
func NewLogGateway(logger zerolog.Logger) Gateway {
	return &logGateway{logger: logger.With().Str("component", "payment").Str("provider", "log").Logger()}
}

func (g *logGateway) Refund(_ context.Context, transactionID string, amountMinor int64) RefundResult {
	id := "rf_log_" + uuid.NewString()
	g.logger.Info().
		Str("transaction_id", transactionID).
		Int64("amount_minor", amountMinor).
		Str("refund_id", id).
		Msg("refund initiated")
	return RefundResult{Success: true, ProviderRefundID: id}
}
