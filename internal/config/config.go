package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Auth    AuthConfig    `yaml:"auth"`
	Session SessionConfig `yaml:"session"`
	HTTP    HTTPConfig    `yaml:"http"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Log     LogConfig     `yaml:"log"`
}

// APIConfig holds the vendor API endpoints.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	WSURL   string `yaml:"ws_url"`
}

// AuthConfig holds the OAuth2 client credentials.
type AuthConfig struct {
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// SessionConfig tunes the session coordinator.
type SessionConfig struct {
	// RestPollSeconds enables periodic REST resync when > 0.
	RestPollSeconds int `yaml:"rest_poll_seconds"`
	// BackoffMaxSeconds caps the reconnect backoff.
	BackoffMaxSeconds int `yaml:"backoff_max_seconds"`
}

// RestPollInterval returns the poll cycle as a duration, zero when disabled.
func (s SessionConfig) RestPollInterval() time.Duration {
	return time.Duration(s.RestPollSeconds) * time.Second
}

// BackoffMax returns the backoff cap as a duration.
func (s SessionConfig) BackoffMax() time.Duration {
	return time.Duration(s.BackoffMaxSeconds) * time.Second
}

// HTTPConfig holds the local HTTP API configuration.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// MQTTConfig holds the MQTT bridge configuration.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
	Discovery   bool   `yaml:"discovery"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns a Config with sensible defaults. Credentials have no
// default and must come from the file or environment.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL: "https://api.amc.husqvarna.dev/v1",
			WSURL:   "wss://ws.openapi.husqvarna.dev/v1",
		},
		Auth: AuthConfig{
			TokenURL: "https://api.authentication.husqvarnagroup.dev/v1/oauth2/token",
		},
		Session: SessionConfig{
			RestPollSeconds:   300,
			BackoffMaxSeconds: 120,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Addr:    ":8787",
		},
		MQTT: MQTTConfig{
			TopicPrefix: "automower",
			ClientID:    "mowerd",
			Discovery:   true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a YAML file at path, then overlays
// environment variables. A `.env` file in the working directory is loaded
// first, if present. If path is empty, only defaults + env vars are used.
func Load(path string) (Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
			// file not found is ok, use defaults
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that required settings are present.
func (c Config) Validate() error {
	if c.Auth.ClientID == "" {
		return errors.New("config: auth.client_id is required")
	}
	if c.Auth.ClientSecret == "" {
		return errors.New("config: auth.client_secret is required")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("config: mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

// applyEnv overlays environment variables on top of the config.
// Env vars take precedence over YAML values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MOWERD_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("MOWERD_API_WS_URL"); v != "" {
		cfg.API.WSURL = v
	}
	if v := os.Getenv("MOWERD_AUTH_TOKEN_URL"); v != "" {
		cfg.Auth.TokenURL = v
	}
	if v := os.Getenv("MOWERD_AUTH_CLIENT_ID"); v != "" {
		cfg.Auth.ClientID = v
	}
	if v := os.Getenv("MOWERD_AUTH_CLIENT_SECRET"); v != "" {
		cfg.Auth.ClientSecret = v
	}
	if v := os.Getenv("MOWERD_SESSION_REST_POLL_SECONDS"); v != "" {
		cfg.Session.RestPollSeconds = parseInt(v, cfg.Session.RestPollSeconds)
	}
	if v := os.Getenv("MOWERD_SESSION_BACKOFF_MAX_SECONDS"); v != "" {
		cfg.Session.BackoffMaxSeconds = parseInt(v, cfg.Session.BackoffMaxSeconds)
	}
	if v := os.Getenv("MOWERD_HTTP_ENABLED"); v != "" {
		cfg.HTTP.Enabled = parseBool(v)
	}
	if v := os.Getenv("MOWERD_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("MOWERD_MQTT_ENABLED"); v != "" {
		cfg.MQTT.Enabled = parseBool(v)
	}
	if v := os.Getenv("MOWERD_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("MOWERD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("MOWERD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("MOWERD_MQTT_TOPIC_PREFIX"); v != "" {
		cfg.MQTT.TopicPrefix = v
	}
	if v := os.Getenv("MOWERD_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.ClientID = v
	}
	if v := os.Getenv("MOWERD_MQTT_DISCOVERY"); v != "" {
		cfg.MQTT.Discovery = parseBool(v)
	}
	if v := os.Getenv("MOWERD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MOWERD_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	b, _ := strconv.ParseBool(s)
	return b
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}
