package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"

	EnvProduction = "production"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Credentials CredentialsConfig `toml:"credentials"`
	Login       LoginConfig       `toml:"login"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver       string `toml:"driver" env:"EVENTORY_DATABASE_DRIVER"`
	DSN          string `toml:"dsn" env:"EVENTORY_DATABASE_DSN"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP gateway settings.
type ServerConfig struct {
	Host           string   `toml:"host" env:"EVENTORY_HOST"`
	Port           int      `toml:"port" env:"EVENTORY_PORT"`
	Environment    string   `toml:"environment" env:"EVENTORY_ENV"`
	PublicURL      string   `toml:"public_url" env:"EVENTORY_PUBLIC_URL"`
	UpstreamURL    string   `toml:"upstream_url" env:"EVENTORY_UPSTREAM_URL"`
	AllowedOrigins []string `toml:"allowed_origins" env:"EVENTORY_ALLOWED_ORIGINS" envSeparator:","`
	SessionSecret  string   `toml:"session_secret" env:"EVENTORY_SESSION_SECRET"`
	SessionMaxAge  int      `toml:"session_max_age"`
	RateLimit      float64  `toml:"rate_limit"`
	RateBurst      int      `toml:"rate_burst"`
	TrustProxy     bool     `toml:"trust_proxy" env:"EVENTORY_TRUST_PROXY"` // honor X-Forwarded-For and X-Real-IP
}

// Addr returns the host:port the gateway listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MaxAge returns the session lifetime, one day when unset.
func (s ServerConfig) MaxAge() time.Duration {
	if s.SessionMaxAge <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.SessionMaxAge) * time.Second
}

// Production reports whether the gateway runs in production mode.
func (s ServerConfig) Production() bool {
	return s.Environment == EnvProduction
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Google  GoogleConfig  `toml:"google"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// GoogleConfig contains the OAuth client used for sign-in.
type GoogleConfig struct {
	ClientID     string   `toml:"client_id" env:"EVENTORY_GOOGLE_CLIENT_ID"`
	ClientSecret string   `toml:"client_secret" env:"EVENTORY_GOOGLE_CLIENT_SECRET"`
	RedirectURI  string   `toml:"redirect_uri" env:"EVENTORY_GOOGLE_REDIRECT_URI"`
	Scopes       []string `toml:"scopes"`
	CertsURL     string   `toml:"certs_url"`
}

// YouTubeConfig contains YouTube Data API settings.
type YouTubeConfig struct {
	APIBaseURL        string  `toml:"api_base_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// LoginConfig contains settings for the terminal login flow.
type LoginConfig struct {
	RedirectTo  string `toml:"redirect_to"`
	APIURL      string `toml:"api_url" env:"EVENTORY_API_URL"`
	SessionPath string `toml:"session_path"`
	LogPath     string `toml:"log_path"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path
// and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := EnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files into the process environment.
// Missing files are skipped and variables already set are left alone.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// EnvOverrides replaces config values with any EVENTORY_* variables that are set.
func EnvOverrides(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks settings that every command relies on.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database dsn is required", ErrInvalidConfig)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.UpstreamURL != "" {
		if u, err := url.Parse(c.Server.UpstreamURL); err != nil || u.Host == "" {
			return fmt.Errorf("%w: upstream_url %q is not an absolute URL", ErrInvalidConfig, c.Server.UpstreamURL)
		}
	}
	return nil
}

// ValidateServer extends [Config.Validate] with the settings required to run the gateway.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.SessionSecret == "" {
		return fmt.Errorf("%w: session_secret is required", ErrMissingCredentials)
	}
	if c.Credentials.Google.ClientID == "" {
		return fmt.Errorf("%w: google client_id is required to verify id tokens", ErrMissingCredentials)
	}
	if c.Server.Production() && c.Server.SessionSecret == "change-me" {
		return fmt.Errorf("%w: session_secret must be changed in production", ErrInvalidCredentials)
	}
	return nil
}

// ValidateLogin extends [Config.Validate] with the settings required by the login flow.
func (c *Config) ValidateLogin() error {
	if err := c.Validate(); err != nil {
		return err
	}
	g := c.Credentials.Google
	if g.ClientID == "" || g.ClientSecret == "" {
		return fmt.Errorf("%w: google client_id and client_secret are required", ErrMissingCredentials)
	}
	if g.RedirectURI == "" {
		return fmt.Errorf("%w: google redirect_uri is required", ErrMissingCredentials)
	}
	if c.Login.APIURL == "" {
		return fmt.Errorf("%w: login api_url is required", ErrInvalidConfig)
	}
	return nil
}
