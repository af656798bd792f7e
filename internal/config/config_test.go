package config

import (
	"bytes"
	"context"
	"strings"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Port != 7777 {
		t.Errorf("Expected default port 7777, got %d", cfg.Port)
	}
	if cfg.MaxMessageBytes != 2048 {
		t.Errorf("Expected default max message size 2048, got %d", cfg.MaxMessageBytes)
	}
	if cfg.OverflowPolicy != OverflowTruncate {
		t.Errorf("Expected truncate overflow policy, got %s", cfg.OverflowPolicy)
	}
	delay, interval := cfg.SaveSchedule()
	if delay != 10*time.Second || interval != 60*time.Second {
		t.Errorf("Unexpected save schedule %v/%v", delay, interval)
	}
	if cfg.Storage.UsersFile != "users_table.json" || cfg.Storage.ListsFile != "lists_table.json" {
		t.Errorf("Unexpected artifact names %s, %s", cfg.Storage.UsersFile, cfg.Storage.ListsFile)
	}
	if cfg.Admin.WebSocketKill || len(cfg.Admin.AllowedOrigins) != 0 {
		t.Errorf("Admin websocket should default to same-origin without kill, got %+v", cfg.Admin)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != DefaultConfig().Port {
		t.Errorf("Expected default port, got %d", cfg.Port)
	}
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"port": 9000, "catalog": {"api_key": "secret"}, "storage": {"backend": "sqlite"}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Port)
	}
	if cfg.Catalog.APIKey != "secret" {
		t.Errorf("Expected api key from file, got %q", cfg.Catalog.APIKey)
	}
	if cfg.Catalog.BaseURL == "" {
		t.Errorf("Base URL default was lost")
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Expected sqlite backend, got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.SaveIntervalSeconds != 60 {
		t.Errorf("Save interval default was lost: %d", cfg.Storage.SaveIntervalSeconds)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("BOOKSHELF_PORT", "8123")
	t.Setenv("BOOKSHELF_API_KEY", "from-env")
	t.Setenv("BOOKSHELF_OVERFLOW_POLICY", "reject")
	t.Setenv("BOOKSHELF_ADMIN_ORIGINS", "http://a.example,http://b.example")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Port != 8123 {
		t.Errorf("Expected port 8123, got %d", cfg.Port)
	}
	if cfg.Catalog.APIKey != "from-env" {
		t.Errorf("Expected api key from env, got %q", cfg.Catalog.APIKey)
	}
	if cfg.OverflowPolicy != OverflowReject {
		t.Errorf("Expected reject policy, got %s", cfg.OverflowPolicy)
	}
	if len(cfg.Admin.AllowedOrigins) != 2 || cfg.Admin.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("Expected two allowed origins, got %v", cfg.Admin.AllowedOrigins)
	}
	if cfg.MaxMessageBytes != 2048 {
		t.Errorf("Unset env var changed max message bytes to %d", cfg.MaxMessageBytes)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Port = 70000 }},
		{"tiny buffer", func(c *Config) { c.MaxMessageBytes = 8 }},
		{"unknown overflow policy", func(c *Config) { c.OverflowPolicy = "drop" }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = BackendS3 }},
		{"zero interval", func(c *Config) { c.Storage.SaveIntervalSeconds = 0 }},
		{"negative delay", func(c *Config) { c.Storage.InitialDelaySeconds = -1 }},
		{"unknown hashing", func(c *Config) { c.Auth.PasswordHashing = "md5" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Port = 7001
	cfg.Admin.Addr = "127.0.0.1:9100"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Port != 7001 || loaded.Admin.Addr != "127.0.0.1:9100" {
		t.Errorf("Saved values not restored: %+v", loaded)
	}
}

func TestEncodeIsIndentedJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := DefaultConfig().Encode(&buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "\n  \"port\": 7777") {
		t.Errorf("expected indented port field, got:\n%s", out)
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Errorf("expected trailing newline")
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"log_level": "info"}`), 0600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) { changes <- cfg })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"log_level": "debug"}`), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changes:
		if cfg.LogLevel != "debug" {
			t.Errorf("Expected reloaded level debug, got %s", cfg.LogLevel)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for config reload")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned error: %v", err)
	}
}
