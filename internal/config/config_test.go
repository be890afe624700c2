package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agrimatch.yaml")
	yml := "store:\n  driver: memory\nmatch:\n  ttl: 24h\nkafka:\n  brokers: [\"k1:9092\"]\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("AGRI_CONFIG_FILE", path)
	t.Setenv("AGRI_HTTP_ADDR", ":9999")
	t.Setenv("AGRI_SWEEP_INTERVAL", "15")
	t.Setenv("AGRI_KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != "memory" || cfg.Match.TTL != 24*time.Hour {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if cfg.HTTP.Addr != ":9999" || cfg.Match.SweepInterval != 15*time.Second {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("env brokers should replace yaml brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.Topic != "agrimatch.events" {
		t.Fatalf("default topic lost, got %q", cfg.Kafka.Topic)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"memory without dsn", func(c *Config) { c.Store.Driver = "memory"; c.Store.DSN = "" }, true},
		{"postgres without dsn", func(c *Config) { c.Store.DSN = "" }, false},
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }, false},
		{"zero sweep", func(c *Config) { c.Match.SweepInterval = 0 }, false},
		{"brokers without topic", func(c *Config) { c.Kafka.Brokers = []string{"k:9092"}; c.Kafka.Topic = "" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			if err := cfg.Validate(); (err == nil) != tc.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}
