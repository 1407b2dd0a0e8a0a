package mail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig holds the SMTP server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

type smtpTransport struct {
	cfg    SMTPConfig
	mu     sync.Mutex
	client *gomail.Client
}

// NewSMTPTransport creates a transport that delivers through an SMTP relay.
func NewSMTPTransport(cfg SMTPConfig) (Transport, error) {
	t := &smtpTransport{cfg: cfg}
	if err := t.Reset(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *smtpTransport) Send(ctx context.Context, msg Message) (string, error) {
	m := gomail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return "", fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return "", fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetMessageID()
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}

	t.mu.Lock()
	client := t.client
	t.mu.Unlock()

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return "", fmt.Errorf("failed to deliver message: %w", err)
	}

	var id string
	if ids := m.GetGenHeader(gomail.HeaderMessageID); len(ids) > 0 {
		id = ids[0]
	}
	return id, nil
}

// Reset builds a fresh client. DialAndSend closes its connection after each
// send, so the previous client holds nothing open.
func (t *smtpTransport) Reset() error {
	opts := []gomail.Option{
		gomail.WithPort(t.cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if t.cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(t.cfg.Timeout))
	}
	if t.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(t.cfg.Username),
			gomail.WithPassword(t.cfg.Password),
		)
	}

	client, err := gomail.NewClient(t.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()
	return nil
}

type logTransport struct {
	logger zerolog.Logger
}

// NewLogTransport returns a transport that only logs messages. Used when SMTP is disabled.
func NewLogTransport(logger zerolog.Logger) Transport {
	return &logTransport{logger: logger.With().Str("transport", "log").Logger()}
}

func (t *logTransport) Send(_ context.Context, msg Message) (string, error) {
	id := fmt.Sprintf("<%s@localhost>", uuid.NewString())
	t.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("message_id", id).
		Msg("email suppressed")
	return id, nil
}

func (t *logTransport) Reset() error {
	return nil
}
