// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Corpus, Engine, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Engine   EngineConfig   `yaml:"engine"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds the metrics/health HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the corpus source.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	CorpusChanged    string `yaml:"corpusChanged"`
	FeedbackOutcomes string `yaml:"feedbackOutcomes"`
}

// RedisConfig holds Redis connection parameters for the feedback store.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	OpTimeout time.Duration `yaml:"opTimeout"`
}

// CorpusConfig selects and parameterises the document corpus source.
type CorpusConfig struct {
	// Source is either "postgres" or "fs".
	Source      string        `yaml:"source"`
	Root        string        `yaml:"root"`
	Table       string        `yaml:"table"`
	ReadTimeout time.Duration `yaml:"readTimeout"`
}

// EngineConfig holds the ranking and feedback-learning parameters.
type EngineConfig struct {
	TopK             int     `yaml:"topK"`
	TFIDFWeight      float64 `yaml:"tfidfWeight"`
	BM25Weight       float64 `yaml:"bm25Weight"`
	BM25K1           float64 `yaml:"bm25K1"`
	BM25B            float64 `yaml:"bm25B"`
	EMAAlpha         float64 `yaml:"emaAlpha"`
	PatternThreshold float64 `yaml:"patternThreshold"`
	PatternMinCount  int     `yaml:"patternMinCount"`
	PatternMinConf   float64 `yaml:"patternMinConf"`
}

// Validate checks the engine parameters for internal consistency. The fusion
// weights must sum to 1.0 so combined scores stay in [0,1].
func (e EngineConfig) Validate() error {
	if e.TopK <= 0 {
		return fmt.Errorf("engine.topK must be positive, got %d", e.TopK)
	}
	if sum := e.TFIDFWeight + e.BM25Weight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("engine fusion weights must sum to 1.0, got %.4f", sum)
	}
	if e.TFIDFWeight < 0 || e.BM25Weight < 0 {
		return fmt.Errorf("engine fusion weights must be non-negative")
	}
	if e.EMAAlpha <= 0 || e.EMAAlpha >= 1 {
		return fmt.Errorf("engine.emaAlpha must be in (0,1), got %.4f", e.EMAAlpha)
	}
	if e.PatternThreshold <= 0 || e.PatternThreshold > 1 {
		return fmt.Errorf("engine.patternThreshold must be in (0,1], got %.4f", e.PatternThreshold)
	}
	return nil
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfig returns a Config with defaults suitable for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "errdocs",
			User:            "errdocs",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "retrieval-engine",
			Topics: KafkaTopics{
				CorpusChanged:    "corpus-changed",
				FeedbackOutcomes: "feedback-outcomes",
			},
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			Password:  "",
			DB:        0,
			PoolSize:  10,
			OpTimeout: 2 * time.Second,
		},
		Corpus: CorpusConfig{
			Source:      "fs",
			Root:        "docs",
			Table:       "documents",
			ReadTimeout: 30 * time.Second,
		},
		Engine: EngineConfig{
			TopK:             5,
			TFIDFWeight:      0.4,
			BM25Weight:       0.6,
			BM25K1:           1.5,
			BM25B:            0.75,
			EMAAlpha:         0.1,
			PatternThreshold: 0.8,
			PatternMinCount:  2,
			PatternMinConf:   90,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads RE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RE_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("RE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("RE_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("RE_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("RE_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("RE_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("RE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("RE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RE_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("RE_CORPUS_ROOT"); v != "" {
		cfg.Corpus.Root = v
	}
	if v := os.Getenv("RE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("RE_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
