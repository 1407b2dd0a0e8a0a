package emailtemplate

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Template names.
const (
	OrderShipped   = "order_shipped.html"
	OrderDelivered = "order_delivered.html"
)

// Names lists every template the renderer prepares.
var Names = []string{OrderShipped, OrderDelivered}

//go:embed templates/*.html
var defaults embed.FS

// Item is one order line shown in an email.
type Item struct {
	Name     string
	Quantity int
	Price    string
}

// Data is the view model passed to every template.
type Data struct {
	CustomerName      string
	OrderNumber       string
	TrackingID        string
	Carrier           string
	EstimatedDelivery string
	OrderURL          string
	Total             string
	ReturnWindowDays  int
	Items             []Item
}

// Renderer turns a template name and data into HTML.
type Renderer interface {
	Render(name string, data Data) (string, error)
}

type renderer struct {
	templates map[string]*template.Template
}

// NewRenderer loads every template in Names through loader, concurrently.
// Templates the loader cannot provide fall back to the embedded defaults;
// a template that exists but does not parse is an error.
func NewRenderer(ctx context.Context, loader Loader, logger zerolog.Logger) (Renderer, error) {
	logger = logger.With().Str("component", "template-renderer").Logger()

	var (
		mu        sync.Mutex
		templates = make(map[string]*template.Template, len(Names))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range Names {
		g.Go(func() error {
			src, source, err := loadSource(gctx, loader, name)
			if err != nil {
				return err
			}
			tmpl, err := template.New(name).Parse(string(src))
			if err != nil {
				return fmt.Errorf("failed to parse template %s from %s: %w", name, source, err)
			}
			logger.Info().Str("template", name).Str("source", source).Msg("template ready")

			mu.Lock()
			templates[name] = tmpl
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &renderer{templates: templates}, nil
}

func loadSource(ctx context.Context, loader Loader, name string) ([]byte, string, error) {
	if loader != nil {
		src, err := loader.Load(ctx, name)
		if err == nil {
			return src, "loader", nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
	}
	src, err := defaults.ReadFile("templates/" + name)
	if err != nil {
		return nil, "", fmt.Errorf("no default template %s: %w", name, err)
	}
	return src, "embedded", nil
}

func (r *renderer) Render(name string, data Data) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
