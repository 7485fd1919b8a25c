// Package config provides configuration for the application
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Broker drivers
const (
	DriverKafka  = "kafka"
	DriverMemory = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Service ServiceConfig
	Logging LoggingConfig
	HTTP    HTTPConfig
	Metrics MetricsConfig
	Broker  BrokerConfig
	Kafka   KafkaConfig
	Memory  MemoryConfig
	Retry   RetryConfig
	Tracing TracingConfig
}

// ServiceConfig holds service settings
type ServiceConfig struct {
	Name string `env:"SERVICE_NAME" envDefault:"library-events-gateway"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// HTTPConfig holds settings of the request-serving API
type HTTPConfig struct {
	Addr           string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// MetricsConfig holds settings of the Prometheus endpoint
type MetricsConfig struct {
	Port string `env:"METRICS_PORT" envDefault:"9090"`
}

// BrokerConfig selects the broker client implementation
type BrokerConfig struct {
	Driver string `env:"BROKER_DRIVER" envDefault:"kafka"`
}

// KafkaConfig holds Kafka connection settings
type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:","`
	Topic            string        `env:"KAFKA_TOPIC" envDefault:"library-events"`
	GroupID          string        `env:"KAFKA_GROUP_ID" envDefault:"library-events-tail"`
	RequiredAcks     string        `env:"KAFKA_REQUIRED_ACKS" envDefault:"all"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"10ms"`
	WriteTimeout     time.Duration `env:"KAFKA_WRITE_TIMEOUT" envDefault:"10s"`
	MaxAttempts      int           `env:"KAFKA_MAX_ATTEMPTS" envDefault:"3"`
	TopicAutoCreate  bool          `env:"KAFKA_TOPIC_AUTO_CREATE" envDefault:"false"`
	TopicPartitions  int           `env:"KAFKA_TOPIC_PARTITIONS" envDefault:"3"`
	TopicReplication int           `env:"KAFKA_TOPIC_REPLICATION" envDefault:"1"`
}

// MemoryConfig holds settings of the in-process broker
type MemoryConfig struct {
	QueueSize  int `env:"MEMORY_QUEUE_SIZE" envDefault:"1024"`
	Partitions int `env:"MEMORY_PARTITIONS" envDefault:"3"`
}

// RetryConfig holds backoff settings for startup operations such as topic creation
type RetryConfig struct {
	MaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"5"`
	BaseDelay   time.Duration `env:"RETRY_BASE_DELAY" envDefault:"200ms"`
	MaxDelay    time.Duration `env:"RETRY_MAX_DELAY" envDefault:"5s"`
	Multiplier  float64       `env:"RETRY_MULTIPLIER" envDefault:"2"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	Endpoint   string  `env:"TRACING_ENDPOINT" envDefault:"localhost:4318"`
	SampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the cross-field rules env tags cannot express
func (c *Config) Validate() error {
	brokers := make([]string, 0, len(c.Kafka.Brokers))
	for _, broker := range c.Kafka.Brokers {
		broker = strings.TrimSpace(broker)
		if broker != "" {
			brokers = append(brokers, broker)
		}
	}
	c.Kafka.Brokers = brokers

	switch c.Broker.Driver {
	case DriverKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required")
		}
	case DriverMemory:
		if c.Memory.QueueSize <= 0 {
			return fmt.Errorf("MEMORY_QUEUE_SIZE must be greater than 0, got: %d", c.Memory.QueueSize)
		}
		if c.Memory.Partitions <= 0 {
			return fmt.Errorf("MEMORY_PARTITIONS must be greater than 0, got: %d", c.Memory.Partitions)
		}
	default:
		return fmt.Errorf("BROKER_DRIVER must be %q or %q, got: %q", DriverKafka, DriverMemory, c.Broker.Driver)
	}

	if strings.TrimSpace(c.Kafka.Topic) == "" {
		return fmt.Errorf("KAFKA_TOPIC is required")
	}

	switch c.Kafka.RequiredAcks {
	case "none", "one", "all":
	default:
		return fmt.Errorf("KAFKA_REQUIRED_ACKS must be one of none, one, all, got: %q", c.Kafka.RequiredAcks)
	}

	if c.Kafka.TopicAutoCreate && c.Kafka.TopicPartitions <= 0 {
		return fmt.Errorf("KAFKA_TOPIC_PARTITIONS must be greater than 0, got: %d", c.Kafka.TopicPartitions)
	}

	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must not be negative, got: %d", c.Retry.MaxAttempts)
	}

	return nil
}
