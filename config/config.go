// Package config loads service configuration from the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppName                       string `mapstructure:"APP_NAME"`
	Version                       string `mapstructure:"APP_VERSION"`
	Port                          int    `mapstructure:"PORT"`
	LogLevel                      string `mapstructure:"LOG_LEVEL"`
	PrettyLogs                    bool   `mapstructure:"PRETTY_LOGS"`
	HttpServerWriteTimeoutSeconds int    `mapstructure:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS"`
	HttpServerReadTimeoutSeconds  int    `mapstructure:"HTTP_SERVER_READ_TIMEOUT_SECONDS"`
	HttpServerIdleTimeoutSeconds  int    `mapstructure:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS"`
	StartupMaxAttempts            int    `mapstructure:"STARTUP_MAX_ATTEMPTS"`

	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	// Directory base URL, e.g. https://directory.example.org/fhir
	DirectoryBaseURL string `mapstructure:"DIRECTORY_BASE_URL"`
	// Bearer token sent with every directory request
	DirectoryToken string `mapstructure:"DIRECTORY_TOKEN"`
	// Searchset pages followed per search
	DirectoryMaxPages int `mapstructure:"DIRECTORY_MAX_PAGES"`
	// Directory request timeout
	DirectoryTimeout time.Duration `mapstructure:"DIRECTORY_TIMEOUT"`
	// Requests allowed per window, 0 disables limiting
	DirectoryRateLimit int64 `mapstructure:"DIRECTORY_RATE_LIMIT"`
	// Rate limit window
	DirectoryRateLimitWindow time.Duration `mapstructure:"DIRECTORY_RATE_LIMIT_WINDOW"`

	// Phone search results kept before the demographic search
	PhoneSearchCapacity int `mapstructure:"PHONE_SEARCH_CAPACITY"`

	// Auth
	AuthEnabled   bool   `mapstructure:"AUTH_ENABLED"`
	AuthIssuerURL string `mapstructure:"AUTH_ISSUER_URL"`
	AuthClientID  string `mapstructure:"AUTH_CLIENT_ID"`

	// Redis backs the shared directory rate limit
	RedisEnabled  bool   `mapstructure:"REDIS_ENABLED"`
	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     int    `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Kafka brokers (comma-separated)
	KafkaEnabled    bool   `mapstructure:"KAFKA_ENABLED"`
	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	KafkaMatchTopic string `mapstructure:"KAFKA_MATCH_TOPIC"`
	// Kafka writer batching and acknowledgements
	KafkaBatchSize    int           `mapstructure:"KAFKA_BATCH_SIZE"`
	KafkaBatchTimeout time.Duration `mapstructure:"KAFKA_BATCH_TIMEOUT"`
	KafkaRequiredAcks int           `mapstructure:"KAFKA_REQUIRED_ACKS"`
	KafkaCompression  string        `mapstructure:"KAFKA_COMPRESSION"`

	// Tracing settings
	OTLPEnabled  bool   `mapstructure:"OTLP_ENABLED"`
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLP protocol (grpc or http)
	OTLPProtocol string `mapstructure:"OTLP_PROTOCOL"`
	OTLPInsecure bool   `mapstructure:"OTLP_INSECURE"`
}

var defaults = map[string]any{
	"APP_NAME":                          "fern",
	"APP_VERSION":                       "dev",
	"PORT":                              3000,
	"LOG_LEVEL":                         "info",
	"PRETTY_LOGS":                       false,
	"HTTP_SERVER_WRITE_TIMEOUT_SECONDS": 30,
	"HTTP_SERVER_READ_TIMEOUT_SECONDS":  10,
	"HTTP_SERVER_IDLE_TIMEOUT_SECONDS":  60,
	"SHUTDOWN_TIMEOUT":                  "15s",
	"STARTUP_MAX_ATTEMPTS":              5,
	"DIRECTORY_BASE_URL":                "",
	"DIRECTORY_TOKEN":                   "",
	"DIRECTORY_MAX_PAGES":               2,
	"DIRECTORY_TIMEOUT":                 "20s",
	"DIRECTORY_RATE_LIMIT":              0,
	"DIRECTORY_RATE_LIMIT_WINDOW":       "1s",
	"PHONE_SEARCH_CAPACITY":             200,
	"AUTH_ENABLED":                      false,
	"AUTH_ISSUER_URL":                   "",
	"AUTH_CLIENT_ID":                    "",
	"REDIS_ENABLED":                     false,
	"REDIS_HOST":                        "localhost",
	"REDIS_PORT":                        6379,
	"REDIS_PASSWORD":                    "",
	"REDIS_DB":                          0,
	"KAFKA_ENABLED":                     false,
	"KAFKA_BROKERS":                     "localhost:9092",
	"KAFKA_MATCH_TOPIC":                 "patient-match-events",
	"KAFKA_BATCH_SIZE":                  100,
	"KAFKA_BATCH_TIMEOUT":               "10ms",
	"KAFKA_REQUIRED_ACKS":               1,
	"KAFKA_COMPRESSION":                 "snappy",
	"OTLP_ENABLED":                      false,
	"OTLP_ENDPOINT":                     "localhost:4317",
	"OTLP_PROTOCOL":                     "grpc",
	"OTLP_INSECURE":                     true,
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	if c.DirectoryBaseURL == "" {
		return errors.New("DIRECTORY_BASE_URL is required")
	}
	if c.AuthEnabled && (c.AuthIssuerURL == "" || c.AuthClientID == "") {
		return errors.New("AUTH_ISSUER_URL and AUTH_CLIENT_ID are required when AUTH_ENABLED is set")
	}
	if c.PhoneSearchCapacity < 0 {
		return errors.New("PHONE_SEARCH_CAPACITY must not be negative")
	}
	if c.OTLPProtocol != "grpc" && c.OTLPProtocol != "http" {
		return fmt.Errorf("OTLP_PROTOCOL must be grpc or http, got %q", c.OTLPProtocol)
	}
	return nil
}

// RedisAddr returns the redis host:port
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// KafkaBrokerList splits KafkaBrokers on commas
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
