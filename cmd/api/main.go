package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-lifecycle/internal/config"
	"order-lifecycle/internal/database"
	"order-lifecycle/internal/emailtemplate"
	"order-lifecycle/internal/events"
	"order-lifecycle/internal/handler"
	"order-lifecycle/internal/mail"
	"order-lifecycle/internal/messaging"
	"order-lifecycle/internal/notify"
	"order-lifecycle/internal/payment"
	"order-lifecycle/internal/repository"
	"order-lifecycle/internal/router"
	"order-lifecycle/internal/service"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting order lifecycle API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize stores
	orderRepo, productRepo, closeStore, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Initialize email templates with S3 and local fallback
	renderer, err := newRenderer(ctx, cfg.Templates, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize email templates: %w", err)
	}

	// Initialize outbound gateways
	mailer, err := newMailGateway(cfg.Mail, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mail gateway: %w", err)
	}
	messenger := newMessagingGateway(cfg.Messaging, logger)

	payments, err := newPaymentGateway(cfg.Payment, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize payment gateway: %w", err)
	}

	publisher, closePublisher, err := newPublisher(ctx, cfg.Events, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize event publisher: %w", err)
	}
	defer closePublisher()

	dispatcher := notify.NewDispatcher(messenger, mailer, renderer, notify.Config{
		Templates:        cfg.Messaging.Templates,
		BaseURL:          cfg.Server.BaseURL,
		ReturnWindowDays: cfg.Orders.ReturnWindowDays,
		EmailRetries:     cfg.Mail.Retries,
	}, logger)

	// Initialize services
	productService := service.NewProductService(productRepo, logger)
	orderService := service.NewOrderService(orderRepo, productRepo, payments, publisher, dispatcher, service.Options{
		StrictTransitions: cfg.Orders.StrictTransitions,
		ReturnWindowDays:  cfg.Orders.ReturnWindowDays,
	}, logger)

	// Initialize HTTP handlers
	productHandler := handler.NewProductHandler(productService, logger)
	orderHandler := handler.NewOrderHandler(orderService, logger)

	// Initialize router
	mux := router.New(productHandler, orderHandler, cfg.Auth.APIKey, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// openStores connects the configured document store and returns its repositories.
func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.OrderRepository, repository.ProductRepository, func(), error) {
	switch cfg.Store.Driver {
	case "firestore":
		client, err := firestore.NewClient(ctx, cfg.Store.FirestoreProjectID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize firestore: %w", err)
		}
		logger.Info().Str("project_id", cfg.Store.FirestoreProjectID).Msg("using firestore store")
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close firestore client")
			}
		}
		return repository.NewFirestoreOrderRepository(client, logger),
			repository.NewFirestoreProductRepository(client, logger),
			closeFn, nil

	default:
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("failed to apply schema: %w", err)
		}
		return repository.NewOrderRepository(pool, logger),
			repository.NewProductRepository(pool, logger),
			pool.Close, nil
	}
}

func newRenderer(ctx context.Context, cfg config.TemplateConfig, logger zerolog.Logger) (emailtemplate.Renderer, error) {
	fileLoader := emailtemplate.NewFileLoader(cfg.Dir, logger)

	var primary emailtemplate.Loader
	if cfg.S3.Enabled {
		s3Loader, err := emailtemplate.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			primary = s3Loader
		}
	} else {
		logger.Info().Msg("using local file system for email templates (S3 disabled)")
	}

	return emailtemplate.NewRenderer(ctx, emailtemplate.NewFallbackLoader(primary, fileLoader, logger), logger)
}

func newMailGateway(cfg config.MailConfig, logger zerolog.Logger) (mail.Gateway, error) {
	if !cfg.Enabled {
		logger.Info().Msg("mail disabled, emails are logged only")
		return mail.NewGateway(mail.NewLogTransport(logger), cfg.FromName, cfg.FromAddress, logger), nil
	}

	transport, err := mail.NewSMTPTransport(mail.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return mail.NewGateway(transport, cfg.FromName, cfg.FromAddress, logger), nil
}

func newMessagingGateway(cfg config.MessagingConfig, logger zerolog.Logger) messaging.Gateway {
	if !cfg.Enabled {
		logger.Info().Msg("messaging disabled, messages are logged only")
		return messaging.NewLogGateway(logger)
	}
	return messaging.NewClient(messaging.Config{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		SenderID:    cfg.SenderID,
		CountryCode: cfg.CountryCode,
		Timeout:     cfg.Timeout,
	}, logger)
}

func newPaymentGateway(cfg config.PaymentConfig, logger zerolog.Logger) (payment.Gateway, error) {
	if cfg.Provider == "stripe" {
		return payment.NewStripeGateway(cfg.StripeSecretKey, logger)
	}
	logger.Info().Msg("payment provider not configured, refunds are logged only")
	return payment.NewLogGateway(logger), nil
}

// newPublisher returns the configured event publisher and a function releasing it.
func newPublisher(ctx context.Context, cfg config.EventsConfig, logger zerolog.Logger) (events.Publisher, func(), error) {
	switch cfg.Driver {
	case "kafka":
		publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing order events to kafka")
		return publisher, closer(publisher, logger), nil

	case "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.PubSubProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create pubsub client: %w", err)
		}
		publisher, err := events.NewPubSubPublisher(client.Topic(cfg.PubSubTopic))
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		logger.Info().Str("project_id", cfg.PubSubProjectID).Str("topic", cfg.PubSubTopic).Msg("publishing order events to pubsub")
		release := closer(publisher, logger)
		return publisher, func() {
			release()
			if err := client.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close pubsub client")
			}
		}, nil

	default:
		return events.NewNopPublisher(), func() {}, nil
	}
}

func closer(publisher events.Publisher, logger zerolog.Logger) func() {
	return func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}
}
