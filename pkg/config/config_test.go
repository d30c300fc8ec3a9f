package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Corpus.Source != "fs" {
		t.Errorf("Corpus.Source = %q, want fs", cfg.Corpus.Source)
	}
	if cfg.Engine.TopK != 5 {
		t.Errorf("Engine.TopK = %d, want 5", cfg.Engine.TopK)
	}
	if cfg.Engine.TFIDFWeight != 0.4 || cfg.Engine.BM25Weight != 0.6 {
		t.Errorf("fusion weights = %f/%f, want 0.4/0.6", cfg.Engine.TFIDFWeight, cfg.Engine.BM25Weight)
	}
	if err := cfg.Engine.Validate(); err != nil {
		t.Errorf("default engine config invalid: %v", err)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9999
corpus:
  source: postgres
  table: docs
engine:
  topK: 3
  tfidfWeight: 0.5
  bm25Weight: 0.5
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Corpus.Source != "postgres" || cfg.Corpus.Table != "docs" {
		t.Errorf("Corpus = %+v, want postgres/docs", cfg.Corpus)
	}
	if cfg.Engine.TopK != 3 {
		t.Errorf("Engine.TopK = %d, want 3", cfg.Engine.TopK)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Fields the file omits keep their defaults.
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want default", cfg.Redis.Addr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RE_SERVER_PORT", "7070")
	t.Setenv("RE_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("RE_LOGGING_LEVEL", "warn")
	t.Setenv("RE_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("Redis.Addr = %q, want override", cfg.Redis.Addr)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Kafka.Brokers = %v, want two brokers", cfg.Kafka.Brokers)
	}
}

func TestEngineConfigValidate(t *testing.T) {
	valid := defaultConfig().Engine

	cases := []struct {
		name   string
		mutate func(*EngineConfig)
	}{
		{"zero_topk", func(e *EngineConfig) { e.TopK = 0 }},
		{"weights_sum_low", func(e *EngineConfig) { e.TFIDFWeight = 0.2 }},
		{"weights_sum_high", func(e *EngineConfig) { e.BM25Weight = 0.9 }},
		{"negative_weight", func(e *EngineConfig) { e.TFIDFWeight = -0.4; e.BM25Weight = 1.4 }},
		{"alpha_zero", func(e *EngineConfig) { e.EMAAlpha = 0 }},
		{"alpha_one", func(e *EngineConfig) { e.EMAAlpha = 1 }},
		{"threshold_high", func(e *EngineConfig) { e.PatternThreshold = 1.5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := valid
			tc.mutate(&e)
			if err := e.Validate(); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}

	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
