package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the goose service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Presets   PresetsConfig   `yaml:"presets"`
	Geocoding GeocodingConfig `yaml:"geocoding"`
	Overpass  OverpassConfig  `yaml:"overpass"`
	Search    SearchConfig    `yaml:"search"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis/Valkey connection settings. Only used when
// presets.source is "redis".
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Preset sources.
const (
	PresetSourceFile  = "file"
	PresetSourceRedis = "redis"
)

// PresetsConfig selects where search presets are read from.
type PresetsConfig struct {
	Source    string `yaml:"source"`     // file (default) or redis
	Path      string `yaml:"path"`       // YAML catalogue, source=file
	KeyPrefix string `yaml:"key_prefix"` // source=redis
}

// GeocodingConfig holds the address services settings.
type GeocodingConfig struct {
	AddokURL       string  `yaml:"addok_url"` // empty disables the structured service
	NominatimURL   string  `yaml:"nominatim_url"`
	UserAgent      string  `yaml:"user_agent"`
	Language       string  `yaml:"language"`
	RequestsPerSec float64 `yaml:"requests_per_sec"` // nominatim usage policy: at most 1
	MaxAttempts    int     `yaml:"max_attempts"`
	TimeoutSec     int     `yaml:"timeout_sec"`
}

// UsesRedis reports whether any component needs the database.
func (c *Config) UsesRedis() bool {
	return c.Presets.Source == PresetSourceRedis
}

// OverpassConfig holds the map feature service settings.
type OverpassConfig struct {
	URL             string `yaml:"url"`
	MaxAttempts     int    `yaml:"max_attempts"`
	TimeoutSec      int    `yaml:"timeout_sec"`
	QueryTimeoutSec int    `yaml:"query_timeout_sec"`
}

// SearchConfig bounds search requests.
type SearchConfig struct {
	MinRadius         int    `yaml:"min_radius"`
	MaxRadius         int    `yaml:"max_radius"`
	RadiusStep        int    `yaml:"radius_step"`
	DefaultRadius     int    `yaml:"default_radius"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	Workers           int    `yaml:"workers"`
	DefaultTimezone   string `yaml:"default_timezone"`
	TrueBearing       bool   `yaml:"true_bearing"`
	// single reverse lookups allowed per search when the batch row is unusable
	AddressFallbacks         int `yaml:"address_fallbacks"`
	AddressFallbackTimeoutMs int `yaml:"address_fallback_timeout_ms"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.Presets.Source == "" {
		c.Presets.Source = PresetSourceFile
	}
	if c.Presets.Path == "" {
		c.Presets.Path = "config/presets.yaml"
	}
	if c.Presets.KeyPrefix == "" {
		c.Presets.KeyPrefix = "goose:"
	}

	if c.Geocoding.NominatimURL == "" {
		c.Geocoding.NominatimURL = "https://nominatim.openstreetmap.org"
	}
	if c.Geocoding.UserAgent == "" {
		c.Geocoding.UserAgent = "goose"
	}
	if c.Geocoding.Language == "" {
		c.Geocoding.Language = "en"
	}
	if c.Geocoding.RequestsPerSec <= 0 {
		c.Geocoding.RequestsPerSec = 1
	}
	if c.Geocoding.MaxAttempts <= 0 {
		c.Geocoding.MaxAttempts = 3
	}
	if c.Geocoding.TimeoutSec <= 0 {
		c.Geocoding.TimeoutSec = 10
	}

	if c.Overpass.URL == "" {
		c.Overpass.URL = "https://overpass-api.de/api"
	}
	if c.Overpass.MaxAttempts <= 0 {
		c.Overpass.MaxAttempts = 3
	}
	if c.Overpass.TimeoutSec <= 0 {
		c.Overpass.TimeoutSec = 35
	}
	if c.Overpass.QueryTimeoutSec <= 0 {
		c.Overpass.QueryTimeoutSec = 25
	}

	if c.Search.MinRadius <= 0 {
		c.Search.MinRadius = 100
	}
	if c.Search.MaxRadius <= 0 {
		c.Search.MaxRadius = 2000
	}
	if c.Search.RadiusStep <= 0 {
		c.Search.RadiusStep = 10
	}
	if c.Search.DefaultRadius <= 0 {
		c.Search.DefaultRadius = 500
	}
	if c.Search.RequestTimeoutSec <= 0 {
		c.Search.RequestTimeoutSec = 55
	}
	if c.Search.Workers <= 0 {
		c.Search.Workers = 8
	}
	if c.Search.AddressFallbacks <= 0 {
		c.Search.AddressFallbacks = 3
	}
	if c.Search.AddressFallbackTimeoutMs <= 0 {
		c.Search.AddressFallbackTimeoutMs = 3000
	}
	if c.Search.DefaultTimezone == "" {
		c.Search.DefaultTimezone = "UTC"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Presets.Source {
	case PresetSourceFile, PresetSourceRedis:
	default:
		return fmt.Errorf("presets.source must be %q or %q, got %q",
			PresetSourceFile, PresetSourceRedis, c.Presets.Source)
	}
	if c.UsesRedis() && len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required with redis presets")
	}
	s := c.Search
	if s.MinRadius > s.MaxRadius {
		return fmt.Errorf("search.min_radius (%d) must not exceed search.max_radius (%d)", s.MinRadius, s.MaxRadius)
	}
	if s.DefaultRadius < s.MinRadius || s.DefaultRadius > s.MaxRadius || s.DefaultRadius%s.RadiusStep != 0 {
		return fmt.Errorf("search.default_radius %d must lie in [%d, %d] and be a multiple of %d",
			s.DefaultRadius, s.MinRadius, s.MaxRadius, s.RadiusStep)
	}
	if c.Geocoding.RequestsPerSec > 1 && strings.Contains(c.Geocoding.NominatimURL, "nominatim.openstreetmap.org") {
		return fmt.Errorf("geocoding.requests_per_sec must not exceed 1 against the public nominatim instance")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
