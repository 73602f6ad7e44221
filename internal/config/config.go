package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/imyashkale/mcserver/internal/metrics"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Status formats select one of the two response variants of the start endpoint.
const (
	// StatusFormatText renders an unauthenticated text/plain report with a flat mod listing
	StatusFormatText = "text"
	// StatusFormatHTML renders an authenticated text/html report with signed client mod links
	StatusFormatHTML = "html"
)

// MaxModLinkTTL bounds the lifetime of generated mod download links
const MaxModLinkTTL = time.Hour

var (
	// ErrMissingValue is returned when a required configuration value is absent or empty
	ErrMissingValue = errors.New("missing required configuration values")
	// ErrInvalidValue is returned when a configuration value cannot be used
	ErrInvalidValue = errors.New("invalid configuration value")
)

// Config holds all application configuration.
// It is built once at startup and must not be modified afterwards.
type Config struct {
	// Server configuration
	Port              string
	CORSAllowedOrigin string

	// Logging configuration
	LogLevel  string
	LogFormat string

	// AWS configuration
	AWSRegion string

	// Minecraft deployment
	Bucket           string
	DNSSubdomain     string
	DNSZone          string
	AutoScalingGroup string
	Cluster          string
	Service          string

	// Start endpoint behaviour
	StatusFormat        string
	ModLinkTTL          time.Duration
	ParallelStatusReads bool
	MetricsSink         string

	// JWT validation (html format only, optional)
	JWTIssuer   string
	JWTAudience string
}

// New creates a new Config instance by loading environment variables
// from .env file (if present), an optional CONFIG_FILE and OS environment.
// OS environment variables take precedence over file values.
// Panics if required configuration values are missing or invalid.
func New() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// Load is like New but returns the validation error instead of panicking
func Load() (*Config, error) {
	// Load .env file from the working directory (silently ignore if not found)
	_ = godotenv.Load(filepath.Join(".", ".env"))

	src := source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		values, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = values
	}
	return load(src)
}

func load(src source) (*Config, error) {
	cfg := &Config{
		Port:              src.getOrDefault("PORT", "3001"),
		CORSAllowedOrigin: src.getOrDefault("CORS_ALLOWED_ORIGIN", "*"),

		LogLevel:  src.getOrDefault("LOG_LEVEL", "INFO"),
		LogFormat: src.getOrDefault("LOG_FORMAT", "json"),

		AWSRegion: src.get("AWS_REGION"),

		Bucket:           src.get("BUCKET"),
		DNSSubdomain:     src.get("DUCK_DNS_DOMAIN"),
		DNSZone:          src.getOrDefault("DNS_ZONE", "duckdns.org"),
		AutoScalingGroup: src.get("ASG"),
		Cluster:          src.get("MC_CLUSTER"),
		Service:          src.get("MC_SERVICE"),

		StatusFormat: strings.ToLower(src.getOrDefault("STATUS_FORMAT", StatusFormatText)),
		MetricsSink:  strings.ToLower(src.getOrDefault("METRICS_SINK", metrics.SinkEMF)),

		JWTIssuer:   src.get("JWT_ISSUER"),
		JWTAudience: src.get("JWT_AUDIENCE"),
	}

	var invalid []string

	ttl, err := parseTTL(src.getOrDefault("MOD_LINK_TTL", "5m"))
	if err != nil {
		invalid = append(invalid, fmt.Sprintf("MOD_LINK_TTL: %v", err))
	}
	cfg.ModLinkTTL = ttl

	if raw := src.get("PARALLEL_STATUS_READS"); raw != "" {
		parallel, err := strconv.ParseBool(raw)
		if err != nil {
			invalid = append(invalid, fmt.Sprintf("PARALLEL_STATUS_READS: %q is not a boolean", raw))
		}
		cfg.ParallelStatusReads = parallel
	}

	if err := cfg.validate(invalid); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks that all required configuration values are present and valid
func (c *Config) validate(invalid []string) error {
	var missing []string

	required := []struct {
		key   string
		value string
	}{
		{"BUCKET", c.Bucket},
		{"DUCK_DNS_DOMAIN", c.DNSSubdomain},
		{"ASG", c.AutoScalingGroup},
		{"MC_CLUSTER", c.Cluster},
		{"MC_SERVICE", c.Service},
	}
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingValue, missing)
	}

	switch c.StatusFormat {
	case StatusFormatText, StatusFormatHTML:
	default:
		invalid = append(invalid, fmt.Sprintf("STATUS_FORMAT: %q (want %q or %q)", c.StatusFormat, StatusFormatText, StatusFormatHTML))
	}

	if !slices.Contains(metrics.Sinks, c.MetricsSink) {
		invalid = append(invalid, fmt.Sprintf("METRICS_SINK: %q (want one of %v)", c.MetricsSink, metrics.Sinks))
	}

	if len(invalid) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidValue, strings.Join(invalid, "; "))
	}
	return nil
}

// parseTTL accepts a Go duration ("5m") or a plain number of seconds ("300")
func parseTTL(raw string) (time.Duration, error) {
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		seconds, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, fmt.Errorf("%q is not a duration", raw)
		}
		ttl = time.Duration(seconds) * time.Second
	}
	if ttl <= 0 || ttl > MaxModLinkTTL {
		return 0, fmt.Errorf("%s must be between 1s and %s", ttl, MaxModLinkTTL)
	}
	return ttl, nil
}

// readFile reads a flat KEY: value map. JSON files are accepted as well
// since YAML is a superset of JSON.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return values, nil
}

// source resolves keys from the OS environment first, then the config file
type source struct {
	file map[string]string
}

func (s source) get(key string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return strings.TrimSpace(s.file[key])
}

// getOrDefault returns the value of a key or a default value
func (s source) getOrDefault(key, defaultValue string) string {
	if value := s.get(key); value != "" {
		return value
	}
	return defaultValue
}

// DNSName returns the fully qualified name players connect to
func (c *Config) DNSName() string {
	return fmt.Sprintf("%s.%s", c.DNSSubdomain, c.DNSZone)
}

// SignModLinks reports whether client mods get presigned download links
func (c *Config) SignModLinks() bool {
	return c.StatusFormat == StatusFormatHTML
}

// RequireAuth reports whether the start endpoint demands a bearer token
func (c *Config) RequireAuth() bool {
	return c.StatusFormat == StatusFormatHTML
}
