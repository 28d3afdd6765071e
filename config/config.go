// Package config provides configuration management for Dishpatch.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for Dishpatch.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the HTTP server configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Saga is the order saga configuration.
	Saga SagaConfig `mapstructure:"saga"`

	// Payment is the payment service client configuration.
	Payment PaymentConfig `mapstructure:"payment"`

	// Notify is the notification sender configuration.
	Notify NotifyConfig `mapstructure:"notify"`

	// Signal is the signal bus configuration.
	Signal SignalConfig `mapstructure:"signal"`

	// Storage is the persistence configuration.
	Storage StorageConfig `mapstructure:"storage"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host" validate:"host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// HTTP is the HTTP server configuration.
	HTTP HTTPConfig `mapstructure:"http"`

	// CORS is the CORS configuration.
	CORS CORSConfig `mapstructure:"cors"`

	// WebSocket is the event stream configuration.
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// HTTPConfig holds HTTP-specific settings.
type HTTPConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	// Enabled enables CORS support.
	Enabled bool `mapstructure:"enabled"`

	// AllowedOrigins is the list of allowed origins.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// AllowedMethods is the list of allowed HTTP methods.
	AllowedMethods []string `mapstructure:"allowed_methods"`

	// AllowedHeaders is the list of allowed headers.
	AllowedHeaders []string `mapstructure:"allowed_headers"`

	// ExposedHeaders is the list of headers exposed to the client.
	ExposedHeaders []string `mapstructure:"exposed_headers"`

	// AllowCredentials indicates whether credentials are allowed.
	AllowCredentials bool `mapstructure:"allow_credentials"`

	// MaxAge is the maximum age of CORS preflight cache in seconds.
	MaxAge int `mapstructure:"max_age"`
}

// WebSocketConfig holds websocket event stream settings.
type WebSocketConfig struct {
	// MaxConnections is the maximum number of concurrent clients.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// PingInterval is how often the server pings idle clients.
	PingInterval time.Duration `mapstructure:"ping_interval"`

	// PongTimeout is how long to wait for a pong before dropping a client.
	PongTimeout time.Duration `mapstructure:"pong_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// SagaConfig holds order saga timings and activity retry settings.
type SagaConfig struct {
	// PickupWindow is how long a paid order waits for pickup.
	PickupWindow time.Duration `mapstructure:"pickup_window"`

	// DeliveryWindow is how long a picked-up order waits for delivery.
	DeliveryWindow time.Duration `mapstructure:"delivery_window"`

	// ChargeGrace is how long a failed charge lingers before compensation.
	ChargeGrace time.Duration `mapstructure:"charge_grace"`

	// FeedbackDelay is the pause before the post-delivery feedback prompt.
	FeedbackDelay time.Duration `mapstructure:"feedback_delay"`

	// Activity is the retry policy applied to saga activities.
	Activity ActivityConfig `mapstructure:"activity"`
}

// ActivityConfig holds activity execution settings.
type ActivityConfig struct {
	// StartToCloseTimeout bounds a single activity attempt.
	StartToCloseTimeout time.Duration `mapstructure:"start_to_close_timeout"`

	// RetryInterval is the fixed pause between attempts.
	RetryInterval time.Duration `mapstructure:"retry_interval"`

	// MaximumAttempts caps retryable attempts.
	MaximumAttempts int `mapstructure:"maximum_attempts" validate:"min=1"`
}

// PaymentConfig holds payment service client settings.
type PaymentConfig struct {
	// BaseURL is the payment service base URL.
	BaseURL string `mapstructure:"base_url"`

	// Timeout bounds a single payment request.
	Timeout time.Duration `mapstructure:"timeout"`
}

// NotifyConfig holds notification sender settings.
type NotifyConfig struct {
	// Type is the sender implementation (log, kafka).
	Type string `mapstructure:"type" validate:"oneof=log kafka"`

	// Kafka is the Kafka sender configuration.
	Kafka KafkaConfig `mapstructure:"kafka"`

	// RateLimit throttles outgoing notifications.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// KafkaConfig holds Kafka producer settings.
type KafkaConfig struct {
	// Brokers is the list of bootstrap brokers.
	Brokers []string `mapstructure:"brokers" validate:"dive,host"`

	// Topic is the notification topic.
	Topic string `mapstructure:"topic"`

	// WriteTimeout bounds one produce call.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// RateLimitConfig holds notification throttle settings.
type RateLimitConfig struct {
	// Enabled enables the throttle.
	Enabled bool `mapstructure:"enabled"`

	// PerSecond is the sustained rate.
	PerSecond float64 `mapstructure:"per_second" validate:"min=0"`

	// Burst is the bucket size.
	Burst int `mapstructure:"burst" validate:"min=0"`
}

// SignalConfig holds signal bus settings.
type SignalConfig struct {
	// Transport is the bus implementation (local, redis).
	Transport string `mapstructure:"transport" validate:"oneof=local redis"`

	// BufferSize is the per-order subscriber buffer.
	BufferSize int `mapstructure:"buffer_size" validate:"min=1"`

	// Redis is the Redis Pub/Sub configuration.
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	// Address is the Redis server address.
	Address string `mapstructure:"address" validate:"host"`

	// Password is the Redis password.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db"`

	// ChannelPrefix namespaces pub/sub channels.
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Type is the storage backend (memory, badger).
	Type string `mapstructure:"type" validate:"oneof=memory badger"`

	// Badger is the BadgerDB configuration.
	Badger BadgerConfig `mapstructure:"badger"`
}

// BadgerConfig holds BadgerDB-specific settings.
type BadgerConfig struct {
	// Path is the database directory path.
	Path string `mapstructure:"path"`

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `mapstructure:"sync_writes"`

	// ValueLogFileSize is the maximum size of value log files in bytes.
	ValueLogFileSize int64 `mapstructure:"value_log_file_size"`

	// NumVersionsToKeep is the number of versions to keep per key.
	NumVersionsToKeep int `mapstructure:"num_versions_to_keep"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`

	// Exporter is the tracing exporter (otlp).
	Exporter string `mapstructure:"exporter"`

	// Endpoint is the collector endpoint.
	Endpoint string `mapstructure:"endpoint" validate:"host"`

	// Timeout bounds one export call.
	Timeout time.Duration `mapstructure:"timeout"`

	// Headers are extra headers sent to the collector.
	Headers map[string]string `mapstructure:"headers"`

	// Sampler selects the sampling strategy (ratio, always_on, always_off).
	Sampler string `mapstructure:"sampler"`

	// SampleRate is the fraction of traces to sample (0.0-1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a string representation of the configuration (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Env: %s}",
		c.App.Name, c.Server.Port, c.App.Environment)
}
