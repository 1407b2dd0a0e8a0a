package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Store     StoreConfig
	Templates TemplateConfig
	Mail      MailConfig
	Messaging MessagingConfig
	Payment   PaymentConfig
	Events    EventsConfig
	Orders    OrdersConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host    string
	Port    int
	BaseURL string // public URL used in links embedded in emails
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	APIKey string
}

// StoreConfig selects the document store backing orders and products.
type StoreConfig struct {
	Driver             string // "postgres" or "firestore"
	FirestoreProjectID string
}

// TemplateConfig locates the HTML email templates.
type TemplateConfig struct {
	Dir string
	S3  S3Config
}

// S3Config holds AWS S3 configuration for email template files.
type S3Config struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string // Path prefix within bucket (e.g., "templates/")
}

// MailConfig holds SMTP transport configuration.
type MailConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Username    string
	Password    string
	FromName    string
	FromAddress string
	Retries     int
	Timeout     time.Duration
}

// MessagingConfig holds the WhatsApp/SMS provider configuration.
type MessagingConfig struct {
	Enabled     bool
	BaseURL     string
	APIKey      string
	SenderID    string
	CountryCode string
	Timeout     time.Duration
	Templates   map[string]string
}

// PaymentConfig selects the refund provider.
type PaymentConfig struct {
	Provider        string // "stripe" or "log"
	StripeSecretKey string
}

// EventsConfig selects the order event publisher.
type EventsConfig struct {
	Driver          string // "kafka", "pubsub" or "none"
	KafkaBrokers    string
	KafkaTopic      string
	PubSubProjectID string
	PubSubTopic     string
}

// OrdersConfig holds lifecycle policy knobs.
type OrdersConfig struct {
	StrictTransitions bool
	ReturnWindowDays  int
}

// messagingTemplateKeys maps notification kinds to their environment overrides.
var messagingTemplateKeys = map[string]string{
	"order_processing":       "MESSAGING_TEMPLATE_PROCESSING",
	"order_packed":           "MESSAGING_TEMPLATE_PACKED",
	"order_shipped":          "MESSAGING_TEMPLATE_SHIPPED",
	"order_out_for_delivery": "MESSAGING_TEMPLATE_OUT_FOR_DELIVERY",
	"order_delivered":        "MESSAGING_TEMPLATE_DELIVERED",
	"order_cancelled":        "MESSAGING_TEMPLATE_CANCELLED",
	"return_requested":       "MESSAGING_TEMPLATE_RETURN_REQUESTED",
	"return_request_seller":  "MESSAGING_TEMPLATE_RETURN_SELLER",
	"return_approved":        "MESSAGING_TEMPLATE_RETURN_APPROVED",
	"refund_processed":       "MESSAGING_TEMPLATE_REFUND_PROCESSED",
}

// Load loads configuration from environment variables, reading a .env file first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	templates := make(map[string]string, len(messagingTemplateKeys))
	for kind, key := range messagingTemplateKeys {
		templates[kind] = getEnv(key, kind)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvAsInt("SERVER_PORT", 8080),
			BaseURL: getEnv("APP_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "orders"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		Store: StoreConfig{
			Driver:             getEnv("STORE_DRIVER", "postgres"),
			FirestoreProjectID: getEnv("FIRESTORE_PROJECT_ID", ""),
		},
		Templates: TemplateConfig{
			Dir: getEnv("EMAIL_TEMPLATE_DIR", "templates"),
			S3: S3Config{
				Enabled: getEnvAsBool("S3_ENABLED", false),
				Bucket:  getEnv("S3_BUCKET", ""),
				Region:  getEnv("S3_REGION", "us-east-1"),
				Prefix:  getEnv("S3_PREFIX", "templates/"),
			},
		},
		Mail: MailConfig{
			Enabled:     getEnvAsBool("MAIL_ENABLED", false),
			Host:        getEnv("MAIL_HOST", "localhost"),
			Port:        getEnvAsInt("MAIL_PORT", 587),
			Username:    getEnv("MAIL_USERNAME", ""),
			Password:    getEnv("MAIL_PASSWORD", ""),
			FromName:    getEnv("MAIL_FROM_NAME", "Marketplace"),
			FromAddress: getEnv("MAIL_FROM_ADDRESS", "noreply@example.com"),
			Retries:     getEnvAsInt("MAIL_RETRIES", 3),
			Timeout:     getEnvAsDuration("MAIL_TIMEOUT", 15*time.Second),
		},
		Messaging: MessagingConfig{
			Enabled:     getEnvAsBool("MESSAGING_ENABLED", false),
			BaseURL:     getEnv("MESSAGING_BASE_URL", ""),
			APIKey:      getEnv("MESSAGING_API_KEY", ""),
			SenderID:    getEnv("MESSAGING_SENDER_ID", ""),
			CountryCode: getEnv("MESSAGING_COUNTRY_CODE", "91"),
			Timeout:     getEnvAsDuration("MESSAGING_TIMEOUT", 10*time.Second),
			Templates:   templates,
		},
		Payment: PaymentConfig{
			Provider:        getEnv("PAYMENT_PROVIDER", "log"),
			StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
		},
		Events: EventsConfig{
			Driver:          getEnv("EVENTS_DRIVER", "none"),
			KafkaBrokers:    getEnv("KAFKA_BROKERS", "localhost:9092"),
			KafkaTopic:      getEnv("KAFKA_TOPIC", "order-events"),
			PubSubProjectID: getEnv("PUBSUB_PROJECT_ID", ""),
			PubSubTopic:     getEnv("PUBSUB_TOPIC", "order-events"),
		},
		Orders: OrdersConfig{
			StrictTransitions: getEnvAsBool("ORDER_STRICT_TRANSITIONS", false),
			ReturnWindowDays:  getEnvAsInt("RETURN_WINDOW_DAYS", 7),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	switch c.Store.Driver {
	case "postgres":
		if err := c.Database.validate(); err != nil {
			return err
		}
	case "firestore":
		if c.Store.FirestoreProjectID == "" {
			return fmt.Errorf("firestore project ID is required when store driver is firestore")
		}
	default:
		return fmt.Errorf("invalid store driver: %s (must be postgres or firestore)", c.Store.Driver)
	}

	if c.Templates.S3.Enabled {
		if c.Templates.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.Templates.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	if c.Mail.Enabled {
		if c.Mail.Host == "" {
			return fmt.Errorf("mail host is required when mail is enabled")
		}
		if c.Mail.Port < 1 || c.Mail.Port > 65535 {
			return fmt.Errorf("invalid mail port: %d", c.Mail.Port)
		}
		if c.Mail.FromAddress == "" {
			return fmt.Errorf("mail from address is required when mail is enabled")
		}
	}

	if c.Mail.Retries < 1 {
		return fmt.Errorf("mail retries must be at least 1")
	}

	if c.Messaging.Enabled {
		if c.Messaging.BaseURL == "" {
			return fmt.Errorf("messaging base URL is required when messaging is enabled")
		}
		if c.Messaging.APIKey == "" {
			return fmt.Errorf("messaging API key is required when messaging is enabled")
		}
	}

	switch c.Payment.Provider {
	case "log":
	case "stripe":
		if c.Payment.StripeSecretKey == "" {
			return fmt.Errorf("stripe secret key is required when payment provider is stripe")
		}
	default:
		return fmt.Errorf("invalid payment provider: %s (must be stripe or log)", c.Payment.Provider)
	}

	switch c.Events.Driver {
	case "none":
	case "kafka":
		if c.Events.KafkaBrokers == "" || c.Events.KafkaTopic == "" {
			return fmt.Errorf("kafka brokers and topic are required when events driver is kafka")
		}
	case "pubsub":
		if c.Events.PubSubProjectID == "" || c.Events.PubSubTopic == "" {
			return fmt.Errorf("pubsub project ID and topic are required when events driver is pubsub")
		}
	default:
		return fmt.Errorf("invalid events driver: %s (must be kafka, pubsub, or none)", c.Events.Driver)
	}

	if c.Orders.ReturnWindowDays < 0 {
		return fmt.Errorf("return window days cannot be negative")
	}

	return nil
}

func (c *DatabaseConfig) validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Port)
	}

	if c.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.MinConnections > c.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("15s") or plain seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
