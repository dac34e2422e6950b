package shared

import (
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Server      ServerConfig      `toml:"server"`
	Session     SessionConfig     `toml:"session"`
	Database    DatabaseConfig    `toml:"database"`
	API         APIConfig         `toml:"api"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
//
// RedirectURI must match the callback registered in the Spotify dashboard byte for byte.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" validate:"required"`
	ClientSecret string `toml:"client_secret" validate:"required"`
	RedirectURI  string `toml:"redirect_uri" validate:"required,url"`
}

// ServerConfig contains HTTP server settings.
//
// TrustProxy makes the callback handler derive scheme and host from X-Forwarded-* headers (ngrok, reverse proxies).
type ServerConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port" validate:"min=1,max=65535"`
	TrustProxy bool   `toml:"trust_proxy"`
}

// SessionConfig contains session cookie settings.
type SessionConfig struct {
	Secret       string        `toml:"secret"`
	SecureCookie bool          `toml:"secure_cookie"`
	CookieName   string        `toml:"cookie_name" validate:"required"`
	MaxAge       time.Duration `toml:"max_age" validate:"min=0"`
}

// DatabaseConfig contains session storage settings.
//
// An empty Path keeps sessions in process memory.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns" validate:"min=0"`
	MaxIdleConns int    `toml:"max_idle_conns" validate:"min=0"`
}

// APIConfig contains settings for calls to the Spotify Web API.
type APIConfig struct {
	BaseURL   string        `toml:"base_url" validate:"required,url"`
	RateLimit float64       `toml:"rate_limit" validate:"gt=0"`
	Timeout   time.Duration `toml:"timeout" validate:"min=0"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" validate:"omitempty,oneof=debug info warn error fatal"`
}

// Addr returns the host:port the server listens on.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values absent from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
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

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides configuration values from the process environment.
//
// Recognized variables: CLIENT_ID, CLIENT_SECRET, REDIRECT_URI, SESSION_SECRET, USE_NGROK and PORT.
// USE_NGROK=true turns on secure cookies and forwarded-header trust.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup("CLIENT_ID"); ok {
		c.Credentials.Spotify.ClientID = v
	}
	if v, ok := lookup("CLIENT_SECRET"); ok {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v, ok := lookup("REDIRECT_URI"); ok {
		c.Credentials.Spotify.RedirectURI = v
	}
	if v, ok := lookup("SESSION_SECRET"); ok {
		c.Session.Secret = v
	}
	if v, ok := lookup("USE_NGROK"); ok {
		ngrok := strings.EqualFold(strings.TrimSpace(v), "true")
		c.Session.SecureCookie = ngrok
		c.Server.TrustProxy = c.Server.TrustProxy || ngrok
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q is not a number", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}

	return nil
}

// Validate checks the configuration.
//
// Missing client credentials are reported as [ErrMissingCredentials] so callers can refuse to serve.
func (c *Config) Validate() error {
	if c.Credentials.Spotify.ClientID == "" || c.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret must be set", ErrMissingCredentials)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

// EnsureSessionSecret fills an empty session secret with a random one.
//
// Returns true when a secret was generated; sessions signed with it do not survive a restart.
func (c *Config) EnsureSessionSecret() bool {
	if c.Session.Secret != "" {
		return false
	}
	buf := make([]byte, 32)
	rand.Read(buf)
	c.Session.Secret = hex.EncodeToString(buf)
	return true
}

// Masked returns a copy safe to print, with secrets shortened.
func (c Config) Masked() Config {
	c.Credentials.Spotify.ClientSecret = mask(c.Credentials.Spotify.ClientSecret)
	c.Session.Secret = mask(c.Session.Secret)
	return c
}

func mask(s string) string {
	if len(s) <= 5 {
		return strings.Repeat("*", len(s))
	}
	return s[:5] + "..."
}
