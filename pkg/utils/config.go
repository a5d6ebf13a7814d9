package utils

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Gateway  GatewayConfig
	Sales    SalesConfig
	Worker   WorkerConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	CORS     CORSConfig
}

type AppConfig struct {
	Name            string
	Port            string
	Debug           bool
	LogPath         string
	BaseURL         string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int32
}

type GatewayConfig struct {
	BaseURL             string
	AccessToken         string
	WebhookSecret       string
	Timeout             time.Duration
	Currency            string
	StatementDescriptor string
	Sandbox             bool
}

type SalesConfig struct {
	BaseURL string
	Timeout time.Duration
}

type WorkerConfig struct {
	Size      int
	QueueSize int
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	MethodTTL time.Duration
	DedupeTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// LoadConfig reads the optional dotenv file at path, then lets the environment override it.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("APP_NAME", "payment-service")
	v.SetDefault("PORT", "8082")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("APP_BASE_URL", "http://localhost:8082")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "payments")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("GATEWAY_BASE_URL", "https://api.mercadopago.com")
	v.SetDefault("GATEWAY_TIMEOUT", "10s")
	v.SetDefault("GATEWAY_CURRENCY", "ARS")
	v.SetDefault("GATEWAY_STATEMENT_DESCRIPTOR", "PAYMENT-SERVICE")
	v.SetDefault("GATEWAY_SANDBOX", true)
	v.SetDefault("SALES_BASE_URL", "http://localhost:8081/api")
	v.SetDefault("SALES_TIMEOUT", "5s")
	v.SetDefault("WORKER_SIZE", 4)
	v.SetDefault("WORKER_QUEUE_SIZE", 256)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_METHOD_TTL", "5m")
	v.SetDefault("REDIS_DEDUPE_TTL", "24h")
	v.SetDefault("KAFKA_TOPIC", "payment.status")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:4200")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	v.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:            v.GetString("APP_NAME"),
			Port:            v.GetString("PORT"),
			Debug:           v.GetBool("DEBUG"),
			LogPath:         v.GetString("LOG_PATH"),
			BaseURL:         strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASS"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			MaxConns: v.GetInt32("DB_MAX_CONNS"),
		},
		Gateway: GatewayConfig{
			BaseURL:             strings.TrimRight(v.GetString("GATEWAY_BASE_URL"), "/"),
			AccessToken:         v.GetString("GATEWAY_ACCESS_TOKEN"),
			WebhookSecret:       v.GetString("GATEWAY_WEBHOOK_SECRET"),
			Timeout:             v.GetDuration("GATEWAY_TIMEOUT"),
			Currency:            v.GetString("GATEWAY_CURRENCY"),
			StatementDescriptor: v.GetString("GATEWAY_STATEMENT_DESCRIPTOR"),
			Sandbox:             v.GetBool("GATEWAY_SANDBOX"),
		},
		Sales: SalesConfig{
			BaseURL: strings.TrimRight(v.GetString("SALES_BASE_URL"), "/"),
			Timeout: v.GetDuration("SALES_TIMEOUT"),
		},
		Worker: WorkerConfig{
			Size:      v.GetInt("WORKER_SIZE"),
			QueueSize: v.GetInt("WORKER_QUEUE_SIZE"),
		},
		Redis: RedisConfig{
			Addr:      v.GetString("REDIS_ADDR"),
			Password:  v.GetString("REDIS_PASSWORD"),
			DB:        v.GetInt("REDIS_DB"),
			MethodTTL: v.GetDuration("REDIS_METHOD_TTL"),
			DedupeTTL: v.GetDuration("REDIS_DEDUPE_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
	}

	return config, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Gateway.BaseURL == "" {
		missing = append(missing, "GATEWAY_BASE_URL")
	}
	if c.Gateway.AccessToken == "" {
		missing = append(missing, "GATEWAY_ACCESS_TOKEN")
	}
	if c.App.BaseURL == "" {
		missing = append(missing, "APP_BASE_URL")
	}
	if c.Gateway.Timeout <= 0 {
		missing = append(missing, "GATEWAY_TIMEOUT")
	}
	if c.Sales.Timeout <= 0 {
		missing = append(missing, "SALES_TIMEOUT")
	}
	if len(missing) > 0 {
		return errors.New("missing or invalid config: " + strings.Join(missing, ", "))
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
