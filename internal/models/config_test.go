package models

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Database.Host != "127.0.0.1" || cfg.Database.Name != "teste" {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Camera.PreviewSeconds != 6 {
		t.Fatalf("expected 6 second preview, got %d", cfg.Camera.PreviewSeconds)
	}
	if cfg.Log.File != "app.log" {
		t.Fatalf("expected app.log, got %q", cfg.Log.File)
	}
}

func TestLoadConfigYAMLKeepsUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "server_addr: \":9000\"\ndatabase:\n  driver: sqlite\n  dsn: /tmp/x.db\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerAddr != ":9000" {
		t.Fatalf("server_addr = %q", cfg.ServerAddr)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "/tmp/x.db" {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.Printer.DPI != 150 {
		t.Fatalf("expected default dpi to survive, got %d", cfg.Printer.DPI)
	}
}

func TestLoadConfigTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "watch_dir = \"/srv/in\"\n\n[printer]\nname = \"office\"\ndpi = 300\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WatchDir != "/srv/in" || cfg.Printer.Name != "office" || cfg.Printer.DPI != 300 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"PICBRAND_DB_HOST":       "db.internal",
		"PICBRAND_DB_PORT":       "5432",
		"PICBRAND_KAFKA_BROKERS": "k1:9092, k2:9092,",
	}
	cfg := Default()
	err := applyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatalf("applyEnv returned error: %v", err)
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 5432 {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestApplyEnvRejectsBadPort(t *testing.T) {
	cfg := Default()
	err := applyEnv(&cfg, func(k string) (string, bool) {
		if k == "PICBRAND_DB_PORT" {
			return "abc", true
		}
		return "", false
	})
	if err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}
