package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "dishpatch",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 10 * time.Second,
				MaxHeaderBytes:  1 << 20, // 1MB
			},
			WebSocket: WebSocketConfig{
				MaxConnections: 100,
				PingInterval:   30 * time.Second,
				PongTimeout:    10 * time.Second,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Saga: SagaConfig{
			PickupWindow:   1 * time.Minute,
			DeliveryWindow: 3 * time.Minute,
			ChargeGrace:    5 * time.Minute,
			FeedbackDelay:  10 * time.Second,
			Activity: ActivityConfig{
				StartToCloseTimeout: 2 * time.Minute,
				RetryInterval:       5 * time.Second,
				MaximumAttempts:     3,
			},
		},
		Payment: PaymentConfig{
			BaseURL: "http://localhost:1001",
			Timeout: 10 * time.Second,
		},
		Notify: NotifyConfig{
			Type: "log",
			Kafka: KafkaConfig{
				Brokers:      []string{"localhost:9092"},
				Topic:        "dishpatch.notifications",
				WriteTimeout: 10 * time.Second,
			},
			RateLimit: RateLimitConfig{
				Enabled:   true,
				PerSecond: 50,
				Burst:     100,
			},
		},
		Signal: SignalConfig{
			Transport:  "local",
			BufferSize: 16,
			Redis: RedisConfig{
				Address:       "localhost:6379",
				Password:      "",
				DB:            0,
				ChannelPrefix: "dishpatch:signal:",
			},
		},
		Storage: StorageConfig{
			Type: "memory",
			Badger: BadgerConfig{
				Path:              "./data/badger",
				SyncWrites:        true,
				ValueLogFileSize:  1073741824, // 1GB
				NumVersionsToKeep: 1,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlp",
			Endpoint:   "localhost:4317",
			Timeout:    10 * time.Second,
			Sampler:    "ratio",
			SampleRate: 0.1,
		},
	}
}
