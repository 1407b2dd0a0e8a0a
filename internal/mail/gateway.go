// Package mail sends transactional email with retry on transient transport failures.
package mail

import (
	"context"
	"errors"
	"io"
	"net"
	netmail "net/mail"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRetries is the number of send attempts when the caller passes zero.
const DefaultRetries = 3

const (
	baseBackoff = 1000 * time.Millisecond
	maxBackoff  = 10000 * time.Millisecond
)

// ErrTransient marks an error as retryable regardless of its concrete type.
var ErrTransient = errors.New("transient mail transport error")

// Email is an outbound message as handed to the gateway.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Message is a fully addressed message as handed to a transport.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// SendResult reports the outcome of a send. Send never returns an error value.
type SendResult struct {
	Success   bool
	MessageID string
	Error     string
}

// Transport delivers a single message. Reset re-establishes the underlying connection.
type Transport interface {
	Send(ctx context.Context, msg Message) (string, error)
	Reset() error
}

// Gateway sends email through a transport.
type Gateway interface {
	Send(ctx context.Context, email Email, retries int) SendResult
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type gateway struct {
	transport Transport
	from      string
	sleep     SleepFunc
	logger    zerolog.Logger
}

// Option configures a gateway.
type Option func(*gateway)

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(sleep SleepFunc) Option {
	return func(g *gateway) {
		g.sleep = sleep
	}
}

// NewGateway creates a mail gateway that sends as "fromName <fromAddress>".
func NewGateway(transport Transport, fromName, fromAddress string, logger zerolog.Logger, opts ...Option) Gateway {
	g := &gateway{
		transport: transport,
		from:      FormatFrom(fromName, fromAddress),
		sleep:     sleepContext,
		logger:    logger.With().Str("component", "mail").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *gateway) Send(ctx context.Context, email Email, retries int) SendResult {
	if retries <= 0 {
		retries = DefaultRetries
	}

	text := email.Text
	if text == "" {
		text = StripHTML(email.HTML)
	}

	msg := Message{
		From:    g.from,
		To:      email.To,
		Subject: email.Subject,
		HTML:    email.HTML,
		Text:    text,
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		id, err := g.transport.Send(ctx, msg)
		if err == nil {
			g.logger.Info().
				Str("to", email.To).
				Str("message_id", id).
				Int("attempt", attempt+1).
				Msg("email sent")
			return SendResult{Success: true, MessageID: id}
		}
		lastErr = err

		if !IsTransient(err) || attempt == retries-1 {
			break
		}

		delay := BackoffDelay(attempt)
		g.logger.Warn().
			Err(err).
			Str("to", email.To).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("transient mail error, retrying")

		if err := g.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
		if err := g.transport.Reset(); err != nil {
			g.logger.Warn().Err(err).Msg("failed to reset mail transport")
		}
	}

	g.logger.Error().Err(lastErr).Str("to", email.To).Msg("failed to send email")
	return SendResult{Success: false, Error: lastErr.Error()}
}

// BackoffDelay returns the wait before retry number attempt+1: 1s, 2s, 4s, ... capped at 10s.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 4 {
		return maxBackoff
	}
	return min(baseBackoff<<attempt, maxBackoff)
}

// IsTransient reports whether err belongs to the retryable connection/timeout class.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"connection reset", "connection refused", "i/o timeout", "broken pipe"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes anything that looks like a tag. Entities are left as-is.
func StripHTML(html string) string {
	return tagPattern.ReplaceAllString(html, "")
}

// FormatFrom builds an RFC 5322 From header value.
func FormatFrom(name, address string) string {
	if name == "" {
		return address
	}
	return (&netmail.Address{Name: name, Address: address}).String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
