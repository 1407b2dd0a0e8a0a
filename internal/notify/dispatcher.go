// Package notify fans order lifecycle changes out to customer and seller channels.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"order-lifecycle/internal/emailtemplate"
	"order-lifecycle/internal/mail"
	"order-lifecycle/internal/messaging"
	"order-lifecycle/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Channel identifies a delivery channel.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

// Notification kinds, also the default provider template IDs.
const (
	KindProcessing     = "order_processing"
	KindPacked         = "order_packed"
	KindShipped        = "order_shipped"
	KindOutForDelivery = "order_out_for_delivery"
	KindDelivered      = "order_delivered"
	KindCancelled      = "order_cancelled"
	KindReturnRequest  = "return_requested"
	KindReturnSeller   = "return_request_seller"
	KindReturnApproved = "return_approved"
	KindRefund         = "refund_processed"
)

// DefaultPickupETA is used when a return is approved without a pickup date.
const DefaultPickupETA = "within 2-3 business days"

var statusKinds = map[model.OrderStatus]string{
	model.StatusProcessing:     KindProcessing,
	model.StatusPacked:         KindPacked,
	model.StatusShipped:        KindShipped,
	model.StatusOutForDelivery: KindOutForDelivery,
	model.StatusDelivered:      KindDelivered,
	model.StatusCancelled:      KindCancelled,
}

var emailTemplates = map[string]string{
	KindShipped:   emailtemplate.OrderShipped,
	KindDelivered: emailtemplate.OrderDelivered,
}

// ChannelResult is the outcome of one delivery attempt.
type ChannelResult struct {
	Channel   Channel
	Recipient string
	Success   bool
	Err       string
}

// Report collects the channel results of one notification.
type Report struct {
	Kind    string
	Skipped string
	Results []ChannelResult
}

// Failed returns the results that did not succeed.
func (r Report) Failed() []ChannelResult {
	var failed []ChannelResult
	for _, res := range r.Results {
		if !res.Success {
			failed = append(failed, res)
		}
	}
	return failed
}

// Notifier sends lifecycle notifications. Methods never fail; outcomes are reported.
type Notifier interface {
	OrderStatusChanged(ctx context.Context, order *model.Order, status model.OrderStatus) Report
	ReturnRequested(ctx context.Context, order *model.Order) Report
	ReturnApproved(ctx context.Context, order *model.Order, pickupDate string) Report
	RefundProcessed(ctx context.Context, order *model.Order, amount decimal.Decimal) Report
}

// Config holds dispatcher settings.
type Config struct {
	Templates        map[string]string
	BaseURL          string
	ReturnWindowDays int
	EmailRetries     int
}

// Dispatcher implements Notifier over a messaging gateway and a mail gateway.
type Dispatcher struct {
	messaging messaging.Gateway
	mail      mail.Gateway
	renderer  emailtemplate.Renderer
	cfg       Config
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(msg messaging.Gateway, mailer mail.Gateway, renderer emailtemplate.Renderer, cfg Config, logger zerolog.Logger) *Dispatcher {
	if cfg.EmailRetries <= 0 {
		cfg.EmailRetries = mail.DefaultRetries
	}
	return &Dispatcher{
		messaging: msg,
		mail:      mailer,
		renderer:  renderer,
		cfg:       cfg,
		logger:    logger.With().Str("component", "notify").Logger(),
	}
}

// send is one unit of fan-out work.
type send struct {
	channel   Channel
	recipient string
	do        func(ctx context.Context) (bool, string)
}

// OrderStatusChanged notifies the customer about a status with a configured template.
func (d *Dispatcher) OrderStatusChanged(ctx context.Context, order *model.Order, status model.OrderStatus) Report {
	kind, ok := statusKinds[status]
	if !ok {
		return Report{Skipped: fmt.Sprintf("no notification for status %s", status)}
	}
	customer, skip := d.customer(order, kind)
	if customer == nil {
		return skip
	}

	params := d.baseParams(order, customer.Name)
	switch status {
	case model.StatusShipped:
		params["tracking_id"] = order.Shipping.TrackingID
		params["carrier"] = order.Shipping.Carrier
		if eta := order.Shipping.EstimatedDelivery; eta != nil {
			params["estimated_delivery"] = eta.Format("02 Jan 2006")
		}
	case model.StatusCancelled:
		if order.Cancellation != nil {
			params["reason"] = order.Cancellation.Reason
		}
	}

	sends := []send{d.whatsApp(customer.Phone, kind, params)}
	if tmpl, ok := emailTemplates[kind]; ok {
		sends = append(sends, d.email(order, customer, kind, tmpl))
	}
	return d.dispatch(ctx, order, kind, sends)
}

// ReturnRequested notifies the customer and every distinct seller on the order.
func (d *Dispatcher) ReturnRequested(ctx context.Context, order *model.Order) Report {
	customer, skip := d.customer(order, KindReturnRequest)
	if customer == nil {
		return skip
	}

	reason := ""
	if order.ReturnRequest != nil {
		reason = order.ReturnRequest.Reason
	}

	params := d.baseParams(order, customer.Name)
	params["reason"] = reason
	sends := []send{d.whatsApp(customer.Phone, KindReturnRequest, params)}

	for _, seller := range order.Sellers() {
		sellerParams := d.baseParams(order, seller.Name)
		sellerParams["reason"] = reason
		sends = append(sends, d.whatsApp(seller.Phone, KindReturnSeller, sellerParams))
	}
	return d.dispatch(ctx, order, KindReturnRequest, sends)
}

// ReturnApproved tells the customer when the return pickup is scheduled.
func (d *Dispatcher) ReturnApproved(ctx context.Context, order *model.Order, pickupDate string) Report {
	customer, skip := d.customer(order, KindReturnApproved)
	if customer == nil {
		return skip
	}
	if pickupDate == "" {
		pickupDate = DefaultPickupETA
	}

	params := d.baseParams(order, customer.Name)
	params["pickup_date"] = pickupDate
	return d.dispatch(ctx, order, KindReturnApproved, []send{d.whatsApp(customer.Phone, KindReturnApproved, params)})
}

// RefundProcessed tells the customer how much was refunded.
func (d *Dispatcher) RefundProcessed(ctx context.Context, order *model.Order, amount decimal.Decimal) Report {
	customer, skip := d.customer(order, KindRefund)
	if customer == nil {
		return skip
	}

	params := d.baseParams(order, customer.Name)
	params["refund_amount"] = amount.StringFixed(2)
	return d.dispatch(ctx, order, KindRefund, []send{d.whatsApp(customer.Phone, KindRefund, params)})
}

// customer returns the attached customer, or a skipped report when none is attached.
func (d *Dispatcher) customer(order *model.Order, kind string) (*model.Party, Report) {
	if order.Customer == nil {
		d.logger.Debug().
			Str("order_id", order.ID.String()).
			Str("kind", kind).
			Msg("no customer attached, skipping notification")
		return nil, Report{Kind: kind, Skipped: "no customer attached"}
	}
	return order.Customer, Report{}
}

func (d *Dispatcher) baseParams(order *model.Order, name string) map[string]string {
	return map[string]string{
		"customer_name": name,
		"order_number":  order.OrderNumber,
	}
}

func (d *Dispatcher) templateID(kind string) string {
	if id := d.cfg.Templates[kind]; id != "" {
		return id
	}
	return kind
}

func (d *Dispatcher) whatsApp(phone, kind string, params map[string]string) send {
	return send{
		channel:   ChannelWhatsApp,
		recipient: phone,
		do: func(ctx context.Context) (bool, string) {
			res := d.messaging.SendWhatsApp(ctx, phone, d.templateID(kind), params)
			return res.Success, res.Error
		},
	}
}

func (d *Dispatcher) email(order *model.Order, customer *model.Party, kind, tmpl string) send {
	return send{
		channel:   ChannelEmail,
		recipient: customer.Email,
		do: func(ctx context.Context) (bool, string) {
			html, err := d.renderer.Render(tmpl, d.emailData(order, customer))
			if err != nil {
				return false, err.Error()
			}
			res := d.mail.Send(ctx, mail.Email{
				To:      customer.Email,
				Subject: emailSubject(kind, order.OrderNumber),
				HTML:    html,
			}, d.cfg.EmailRetries)
			return res.Success, res.Error
		},
	}
}

func (d *Dispatcher) emailData(order *model.Order, customer *model.Party) emailtemplate.Data {
	data := emailtemplate.Data{
		CustomerName:     customer.Name,
		OrderNumber:      order.OrderNumber,
		TrackingID:       order.Shipping.TrackingID,
		Carrier:          order.Shipping.Carrier,
		OrderURL:         d.orderURL(order),
		Total:            order.Pricing.Total.StringFixed(2),
		ReturnWindowDays: d.cfg.ReturnWindowDays,
		Items:            make([]emailtemplate.Item, 0, len(order.Items)),
	}
	if eta := order.Shipping.EstimatedDelivery; eta != nil {
		data.EstimatedDelivery = eta.Format("Mon, 02 Jan 2006")
	}
	for _, item := range order.Items {
		data.Items = append(data.Items, emailtemplate.Item{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price.StringFixed(2),
		})
	}
	return data
}

func (d *Dispatcher) orderURL(order *model.Order) string {
	u, err := url.JoinPath(d.cfg.BaseURL, "orders", order.ID.String())
	if err != nil {
		return ""
	}
	return u
}

func emailSubject(kind, orderNumber string) string {
	switch kind {
	case KindShipped:
		return fmt.Sprintf("Your order %s has shipped", orderNumber)
	case KindDelivered:
		return fmt.Sprintf("Your order %s has been delivered", orderNumber)
	default:
		return fmt.Sprintf("Update on your order %s", orderNumber)
	}
}

// dispatch runs every send concurrently. A failing or panicking send is
// recorded in its own result slot and never affects the others. Sends
// without a recipient are dropped.
func (d *Dispatcher) dispatch(ctx context.Context, order *model.Order, kind string, all []send) Report {
	started := time.Now()

	sends := make([]send, 0, len(all))
	for _, s := range all {
		if s.recipient == "" {
			d.logger.Debug().
				Str("order_id", order.ID.String()).
				Str("kind", kind).
				Str("channel", string(s.channel)).
				Msg("no recipient address, channel skipped")
			continue
		}
		sends = append(sends, s)
	}
	results := make([]ChannelResult, len(sends))

	var g errgroup.Group
	for i, s := range sends {
		g.Go(func() error {
			results[i] = d.run(ctx, s)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Kind: kind, Results: results}
	d.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("kind", kind).
		Int("sent", len(results)-len(report.Failed())).
		Int("failed", len(report.Failed())).
		Dur("elapsed", time.Since(started)).
		Msg("notification dispatched")
	return report
}

func (d *Dispatcher) run(ctx context.Context, s send) (result ChannelResult) {
	result = ChannelResult{Channel: s.channel, Recipient: s.recipient}
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Err = fmt.Sprintf("panic: %v", r)
		}
	}()
	result.Success, result.Err = s.do(ctx)
	return result
}
