// Package messaging sends WhatsApp template messages and SMS through an HTTP provider API.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultTimeout = 10 * time.Second

// SendResult is the outcome of a provider call. Sends never return an error value.
type SendResult struct {
	Success bool
	Data    json.RawMessage
	Error   string
}

// Gateway delivers WhatsApp and SMS messages.
type Gateway interface {
	SendWhatsApp(ctx context.Context, phone, templateID string, params map[string]string) SendResult
	SendSMS(ctx context.Context, phone, message string) SendResult
}

// Config configures the HTTP client.
type Config struct {
	BaseURL     string
	APIKey      string
	SenderID    string
	CountryCode string
	Timeout     time.Duration
}

type client struct {
	baseURL     string
	apiKey      string
	senderID    string
	countryCode string
	http        *http.Client
	logger      zerolog.Logger
}

// NewClient creates an HTTP-backed messaging gateway.
func NewClient(cfg Config, logger zerolog.Logger) Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	countryCode := cfg.CountryCode
	if countryCode == "" {
		countryCode = "91"
	}
	return &client{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      cfg.APIKey,
		senderID:    cfg.SenderID,
		countryCode: countryCode,
		http:        &http.Client{Timeout: timeout},
		logger:      logger.With().Str("component", "messaging").Logger(),
	}
}

type whatsAppRequest struct {
	To         string            `json:"to"`
	Sender     string            `json:"sender"`
	Template   string            `json:"template"`
	Parameters map[string]string `json:"parameters"`
}

type smsRequest struct {
	To      string `json:"to"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

func (c *client) SendWhatsApp(ctx context.Context, phone, templateID string, params map[string]string) SendResult {
	to, ok := NormalizePhone(phone, c.countryCode)
	if !ok {
		return c.fail("whatsapp", phone, fmt.Errorf("invalid phone number %q", phone))
	}
	return c.post(ctx, "whatsapp", to, whatsAppRequest{
		To:         to,
		Sender:     c.senderID,
		Template:   templateID,
		Parameters: params,
	})
}

func (c *client) SendSMS(ctx context.Context, phone, message string) SendResult {
	to, ok := NormalizePhone(phone, c.countryCode)
	if !ok {
		return c.fail("sms", phone, fmt.Errorf("invalid phone number %q", phone))
	}
	return c.post(ctx, "sms", to, smsRequest{
		To:      to,
		Sender:  c.senderID,
		Message: message,
	})
}

func (c *client) post(ctx context.Context, channel, to string, body any) SendResult {
	endpoint, err := url.JoinPath(c.baseURL, "messages", channel)
	if err != nil {
		return c.fail(channel, to, err)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return c.fail(channel, to, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return c.fail(channel, to, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(channel, to, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return c.fail(channel, to, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode >= 400 {
		return c.fail(channel, to, fmt.Errorf("provider status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	c.logger.Debug().Str("channel", channel).Str("to", to).Msg("message accepted")

	result := SendResult{Success: true}
	if json.Valid(data) {
		result.Data = data
	}
	return result
}

func (c *client) fail(channel, to string, err error) SendResult {
	c.logger.Error().Err(err).Str("channel", channel).Str("to", to).Msg("failed to send message")
	return SendResult{Success: false, Error: err.Error()}
}

// NormalizePhone keeps the digits of phone and prefixes the country code to bare national numbers.
func NormalizePhone(phone, countryCode string) (string, bool) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")
	if digits == "" {
		return "", false
	}
	if len(digits) == 10 {
		digits = countryCode + digits
	}
	return digits, true
}

type logGateway struct {
	logger zerolog.Logger
}

// NewLogGateway returns a gateway that only logs. Used when no provider is configured.
func NewLogGateway(logger zerolog.Logger) Gateway {
	return &logGateway{logger: logger.With().Str("component", "messaging").Str("transport", "log").Logger()}
}

func (g *logGateway) SendWhatsApp(_ context.Context, phone, templateID string, params map[string]string) SendResult {
	g.logger.Info().Str("to", phone).Str("template", templateID).Interface("parameters", params).Msg("whatsapp message suppressed")
	return SendResult{Success: true}
}

func (g *logGateway) SendSMS(_ context.Context, phone, message string) SendResult {
	g.logger.Info().Str("to", phone).Int("length", len(message)).Msg("sms suppressed")
	return SendResult{Success: true}
}
