package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Buffer    BufferConfig    `mapstructure:"buffer"`
	Sink      SinkConfig      `mapstructure:"sink"`
	QuestDB   QuestDBConfig   `mapstructure:"questdb"`
	Failure   FailureConfig   `mapstructure:"failure"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type IngestionConfig struct {
	MaxPayloadSize    int           `mapstructure:"max_payload_size"`
	SourceTag         string        `mapstructure:"source_tag"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

type BufferConfig struct {
	Capacity      int           `mapstructure:"capacity"`
	BatchSize     int           `mapstructure:"batch_size"`
	BatchInterval time.Duration `mapstructure:"batch_interval"`
}

type SinkConfig struct {
	URL            string        `mapstructure:"url"`
	Table          string        `mapstructure:"table"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	BackoffFactor  float64       `mapstructure:"backoff_factor"`
	BackoffMaxWait time.Duration `mapstructure:"backoff_max_wait"`
}

// QuestDBConfig covers the pgwire side of QuestDB, used for schema setup
// and partition retention. Ingestion itself goes over the ILP HTTP endpoint
// configured in SinkConfig.
type QuestDBConfig struct {
	DSN           string        `mapstructure:"dsn"`
	RetentionDays int           `mapstructure:"retention_days"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type FailureConfig struct {
	Backend string `mapstructure:"backend"`
	NATSURL string `mapstructure:"nats_url"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("ingestion.max_payload_size", 65536)
	v.SetDefault("ingestion.source_tag", "manual_signal")
	v.SetDefault("ingestion.rate_limit_enabled", false)
	v.SetDefault("ingestion.rate_limit_requests", 1000)
	v.SetDefault("ingestion.rate_limit_window", "1m")
	v.SetDefault("buffer.capacity", 10000)
	v.SetDefault("buffer.batch_size", 100)
	v.SetDefault("buffer.batch_interval", "2s")
	v.SetDefault("sink.url", "http://localhost:9000")
	v.SetDefault("sink.table", "events")
	v.SetDefault("sink.write_timeout", "10s")
	v.SetDefault("sink.max_attempts", 3)
	v.SetDefault("sink.backoff_base", "500ms")
	v.SetDefault("sink.backoff_factor", 2.0)
	v.SetDefault("sink.backoff_max_wait", "30s")
	v.SetDefault("questdb.dsn", "")
	v.SetDefault("questdb.retention_days", 7)
	v.SetDefault("questdb.sweep_interval", "24h")
	v.SetDefault("failure.backend", "log")
	v.SetDefault("failure.nats_url", "nats://localhost:4222")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/flowsentinel/intake")
	}

	// Environment variables override
	v.SetEnvPrefix("INTAKE")
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
