package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{HTTP: HTTPConfig{Port: 8080}}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.Presets.Source != PresetSourceFile {
		t.Errorf("presets.source = %q, want %q", cfg.Presets.Source, PresetSourceFile)
	}
	if cfg.Search.MinRadius != 100 || cfg.Search.MaxRadius != 2000 ||
		cfg.Search.RadiusStep != 10 || cfg.Search.DefaultRadius != 500 {
		t.Errorf("search radius defaults = %+v", cfg.Search)
	}
	if cfg.Search.DefaultTimezone != "UTC" {
		t.Errorf("default timezone = %q, want UTC", cfg.Search.DefaultTimezone)
	}
	if cfg.Geocoding.MaxAttempts != 3 || cfg.Overpass.MaxAttempts != 3 {
		t.Errorf("max attempts = %d/%d, want 3/3", cfg.Geocoding.MaxAttempts, cfg.Overpass.MaxAttempts)
	}
	if cfg.Geocoding.RequestsPerSec != 1 {
		t.Errorf("requests_per_sec = %v, want 1", cfg.Geocoding.RequestsPerSec)
	}
	if cfg.Search.TrueBearing {
		t.Error("true_bearing must default to false")
	}
	if cfg.Search.AddressFallbacks != 3 || cfg.Search.AddressFallbackTimeoutMs != 3000 {
		t.Errorf("address fallback defaults = %d/%dms, want 3/3000ms",
			cfg.Search.AddressFallbacks, cfg.Search.AddressFallbackTimeoutMs)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"unknown source", func(c *Config) { c.Presets.Source = "sql" }, "presets.source"},
		{"redis without addrs", func(c *Config) { c.Presets.Source = PresetSourceRedis }, "database.addrs"},
		{"radius bounds", func(c *Config) { c.Search.MinRadius = 3000 }, "search.min_radius"},
		{"default radius off step", func(c *Config) { c.Search.DefaultRadius = 505 }, "search.default_radius"},
		{"public nominatim rate", func(c *Config) { c.Geocoding.RequestsPerSec = 5 }, "requests_per_sec"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_RedisWithAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Presets.Source = PresetSourceRedis
	cfg.Database.Addrs = []string{"localhost:6379"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUsesRedis(t *testing.T) {
	cfg := validConfig()
	if cfg.UsesRedis() {
		t.Error("file presets must not need redis")
	}
	cfg.Presets.Source = PresetSourceRedis
	if !cfg.UsesRedis() {
		t.Error("redis presets need redis")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("GOOSE_TEST_PORT", "9090")

	got := string(expandEnvVars([]byte("a: ${GOOSE_TEST_PORT}\nb: ${GOOSE_TEST_UNSET:-fallback}\nc: ${GOOSE_TEST_UNSET}")))
	want := "a: 9090\nb: fallback\nc: "
	if got != want {
		t.Errorf("expandEnvVars() = %q, want %q", got, want)
	}
}

func TestLoad_ShippedLocalConfig(t *testing.T) {
	if _, err := os.Stat(filepath.Join("..", "..", "config", "local.yaml")); err != nil {
		t.Skip("config/local.yaml not found")
	}
	t.Setenv("PORT", "")
	t.Setenv("PRESETS_SOURCE", "")

	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("Load(local): %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Presets.Source != PresetSourceFile {
		t.Errorf("presets.source = %q", cfg.Presets.Source)
	}
	if cfg.Search.DefaultTimezone != "Europe/Paris" {
		t.Errorf("default timezone = %q", cfg.Search.DefaultTimezone)
	}
}
