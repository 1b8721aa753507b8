package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `validate:"required,oneof=development stage production"`
	Http Http

	Cors CORS `validate:"required"`

	Postgres Postgres `validate:"required"`

	Audit Audit `validate:"required"`

	Gateway Gateway `validate:"required"`
	Carrier Carrier `validate:"required"`

	Orders Orders
	Cache  Cache
}

type Http struct {
	Host string `validate:"required,hostname|ip"`
	Port string `validate:"required,gt=0,lte=65535"`
}

type CORS struct {
	AllowedOrigins []string `validate:"required,min=1,dive,url"`
}

type Postgres struct {
	Host     string `validate:"required,hostname|ip"`
	Port     int    `validate:"required,gt=0,lte=65535"`
	DBName   string `validate:"required"`
	User     string `validate:"required"`
	Password string `validate:"required"`

	SSLMode string `validate:"required,oneof=disable require verify-ca verify-full"`

	MaxOpenConns    int           `validate:"gte=1"`
	MaxIdleConns    int           `validate:"gte=0"`
	ConnMaxLifetime time.Duration `validate:"gte=0"`
}

// Audit configures the fire-and-forget activity event topic.
type Audit struct {
	Brokers []string `validate:"required,min=1,dive,hostname_port"`
	Topic   string   `validate:"required"`

	BatchTimeout time.Duration `validate:"gte=0"`
}

// Gateway configures the hosted-checkout payment gateway.
type Gateway struct {
	BaseURL       string `validate:"required,url"`
	APIKey        string `validate:"required"`
	WebhookSecret string `validate:"required"`

	SuccessURL string `validate:"required,url"`
	CancelURL  string `validate:"required,url"`

	Timeout time.Duration `validate:"gt=0"`
}

// Carrier configures the third-party delivery agency API.
type Carrier struct {
	BaseURL    string `validate:"required,url"`
	WebhookURL string `validate:"required,url"`

	Timeout time.Duration `validate:"gt=0"`
}

type Orders struct {
	ShippingPrice int64  `validate:"gte=0"`
	Currency      string `validate:"required,len=3"`
}

type Cache struct {
	Capacity int           `validate:"gte=1"`
	TTL      time.Duration `validate:"gt=0"`
}

func New() Config {
	return Config{
		Env: env("ENV", "development"),

		Http: Http{
			Host: env("HOST", "localhost"),
			Port: env("PORT", "8080"),
		},

		Cors: CORS{
			AllowedOrigins: strings.Split(env("ALLOWED_CORS_ORIGINS", "http://localhost:5173"), ","),
		},

		Postgres: Postgres{
			Port:     envInt("POSTGRES_PORT", 5432),
			Host:     env("POSTGRES_HOST", "localhost"),
			DBName:   env("POSTGRES_DB", "orders"),
			User:     env("POSTGRES_USER", ""),
			Password: env("POSTGRES_PASSWORD", ""),

			SSLMode: env("POSTGRES_SSL_MODE", "disable"),

			MaxOpenConns:    envInt("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("POSTGRES_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: envDuration("POSTGRES_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Audit: Audit{
			Brokers:      strings.Split(env("AUDIT_KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:        env("AUDIT_KAFKA_TOPIC", "order-activity"),
			BatchTimeout: envDuration("AUDIT_KAFKA_BATCH_TIMEOUT", 10*time.Millisecond),
		},

		Gateway: Gateway{
			BaseURL:       env("GATEWAY_BASE_URL", "https://api.payment-gateway.example"),
			APIKey:        env("GATEWAY_API_KEY", ""),
			WebhookSecret: env("GATEWAY_WEBHOOK_SECRET", ""),
			SuccessURL:    env("GATEWAY_SUCCESS_URL", "http://localhost:5173/order-confirmation"),
			CancelURL:     env("GATEWAY_CANCEL_URL", "http://localhost:5173/checkout"),
			Timeout:       envDuration("GATEWAY_TIMEOUT", 10*time.Second),
		},

		Carrier: Carrier{
			BaseURL:    env("CARRIER_BASE_URL", "http://localhost:3001/api/v1"),
			WebhookURL: env("CARRIER_WEBHOOK_URL", "http://localhost:8080/webhooks/delivery"),
			Timeout:    envDuration("CARRIER_TIMEOUT", 10*time.Second),
		},

		Orders: Orders{
			ShippingPrice: int64(envInt("ORDERS_SHIPPING_PRICE", 500)),
			Currency:      env("ORDERS_CURRENCY", "DZD"),
		},

		Cache: Cache{
			Capacity: envInt("TRACKING_CACHE_CAPACITY", 1024),
			TTL:      envDuration("TRACKING_CACHE_TTL", 30*time.Second),
		},
	}
}

func (c Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

func env(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}
