// Package config handles TOML configuration loading and validation.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/jwt-proxy/config.toml",
	"configs/config.toml",
}

// Routes answered by the proxy itself; the metrics path may not shadow them.
var reservedSelfPaths = []string{"/status", "/healthz"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config          string           `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host            string           `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port            int              `kong:"short='p',help='Listen port (overrides config).',env='HTTP_PORT'"`
	JWTSecret       string           `kong:"name='jwt-secret',help='Hex-encoded JWT shared secret (overrides config).',env='JWT_SHARED_SECRET'"`
	JWTAlgorithm    string           `kong:"name='jwt-algorithm',help='JWT signing algorithm (overrides config).',env='JWT_ALGORITHM'"`
	JWTIssuer       string           `kong:"name='jwt-issuer',help='JWT issuer URL (overrides config).',env='JWT_ISSUER'"`
	DefaultUsername string           `kong:"help='User asserted when the request has no username header (overrides config).',env='JWT_DEFAULT_USERNAME'"`
	LogLevel        string           `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	Version         kong.VersionFlag `kong:"help='Print version and exit.'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	JWT      JWTConfig      `toml:"jwt"`
	Upstream UpstreamConfig `toml:"upstream"`
	Routing  RoutingConfig  `toml:"routing"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// JWTConfig holds the assertion signing settings.
type JWTConfig struct {
	Algorithm       string `toml:"algorithm"`
	Issuer          string `toml:"issuer"`
	SharedSecret    string `toml:"shared_secret"` // hex encoded
	DefaultUsername string `toml:"default_username"`
}

// UpstreamConfig holds upstream connection settings.
type UpstreamConfig struct {
	TimeoutSeconds  int                  `toml:"timeout_seconds"`
	IdleConnections int                  `toml:"idle_connections"`
	CircuitBreaker  CircuitBreakerConfig `toml:"circuit_breaker"`
}

// CircuitBreakerConfig controls the per-host upstream circuit breaker.
type CircuitBreakerConfig struct {
	Enabled          bool `toml:"enabled"`
	FailureThreshold int  `toml:"failure_threshold"` // consecutive transport failures that open the circuit
	OpenSeconds      int  `toml:"open_seconds"`
	MaxHosts         int  `toml:"max_hosts"` // breakers kept at once, least recently used dropped first
}

// RoutingConfig selects how requests addressed to the proxy itself are detected.
type RoutingConfig struct {
	Classifier            string   `toml:"classifier"` // "dns" or "static"
	SelfHosts             []string `toml:"self_hosts"`
	ResolveTimeoutSeconds int      `toml:"resolve_timeout_seconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Supported HMAC algorithms. The signing key is a shared secret, so only
// the HS family applies.
var supportedAlgorithms = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/jwt-proxy/config.toml then configs/config.toml. If neither exists the
// proxy runs on defaults plus CLI and environment values.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.JWTSecret != "" {
		c.JWT.SharedSecret = cli.JWTSecret
	}
	if cli.JWTAlgorithm != "" {
		c.JWT.Algorithm = cli.JWTAlgorithm
	}
	if cli.JWTIssuer != "" {
		c.JWT.Issuer = cli.JWTIssuer
	}
	if cli.DefaultUsername != "" {
		c.JWT.DefaultUsername = cli.DefaultUsername
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// JWT signing material.
	if !supportedAlgorithms[c.JWT.Algorithm] {
		return fmt.Errorf("jwt.algorithm must be one of: HS256, HS384, HS512; got %q", c.JWT.Algorithm)
	}
	if c.JWT.SharedSecret == "" {
		return errors.New("jwt.shared_secret is required")
	}
	if _, err := c.JWT.Secret(); err != nil {
		return err
	}
	u, err := url.Parse(c.JWT.Issuer)
	if err != nil {
		return fmt.Errorf("jwt.issuer is not a valid URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("jwt.issuer must be an absolute URL; got %q", c.JWT.Issuer)
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if cb := c.Upstream.CircuitBreaker; cb.Enabled && (cb.FailureThreshold < 1 || cb.OpenSeconds < 1 || cb.MaxHosts < 1) {
		return fmt.Errorf("upstream.circuit_breaker needs failure_threshold, open_seconds and max_hosts >= 1; got %d, %d and %d",
			cb.FailureThreshold, cb.OpenSeconds, cb.MaxHosts)
	}
	if c.Routing.ResolveTimeoutSeconds < 0 {
		return fmt.Errorf("routing.resolve_timeout_seconds must be non-negative; got %d", c.Routing.ResolveTimeoutSeconds)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Routing.
	switch c.Routing.Classifier {
	case "dns":
	case "static":
		if len(c.Routing.SelfHosts) == 0 {
			return errors.New("routing.self_hosts must list at least one host when routing.classifier is \"static\"")
		}
	default:
		return fmt.Errorf("routing.classifier must be one of: dns, static; got %q", c.Routing.Classifier)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range reservedSelfPaths {
			if p == reserved {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.JWT.Algorithm == "" {
		c.JWT.Algorithm = "HS512"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "https://jwt-proxy.local"
	}
	if c.JWT.DefaultUsername == "" {
		c.JWT.DefaultUsername = "anonymous"
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 120
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Upstream.CircuitBreaker.FailureThreshold == 0 {
		c.Upstream.CircuitBreaker.FailureThreshold = 5
	}
	if c.Upstream.CircuitBreaker.OpenSeconds == 0 {
		c.Upstream.CircuitBreaker.OpenSeconds = 30
	}
	if c.Upstream.CircuitBreaker.MaxHosts == 0 {
		c.Upstream.CircuitBreaker.MaxHosts = 1024
	}
	if c.Routing.Classifier == "" {
		c.Routing.Classifier = "dns"
	}
	if c.Routing.ResolveTimeoutSeconds == 0 {
		c.Routing.ResolveTimeoutSeconds = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Secret decodes the hex-encoded shared secret.
func (j *JWTConfig) Secret() ([]byte, error) {
	key, err := hex.DecodeString(j.SharedSecret)
	if err != nil {
		return nil, fmt.Errorf("jwt.shared_secret must be hex encoded: %w", err)
	}
	if len(key) == 0 {
		return nil, errors.New("jwt.shared_secret decodes to an empty key")
	}
	return key, nil
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
