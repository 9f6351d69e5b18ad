package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mowerd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.API.BaseURL != "https://api.amc.husqvarna.dev/v1" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Session.RestPollInterval() != 300*time.Second {
		t.Errorf("RestPollInterval = %v", cfg.Session.RestPollInterval())
	}
	if cfg.Session.BackoffMax() != 120*time.Second {
		t.Errorf("BackoffMax = %v", cfg.Session.BackoffMax())
	}
	if cfg.MQTT.TopicPrefix != "automower" {
		t.Errorf("TopicPrefix = %q", cfg.MQTT.TopicPrefix)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
auth:
  client_id: cid
  client_secret: secret
session:
  rest_poll_seconds: 60
http:
  addr: ":9000"
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Auth.ClientID != "cid" || cfg.Auth.ClientSecret != "secret" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Session.RestPollSeconds != 60 {
		t.Errorf("RestPollSeconds = %d, want 60", cfg.Session.RestPollSeconds)
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Errorf("Addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q", cfg.Log.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.API.WSURL != "wss://ws.openapi.husqvarna.dev/v1" {
		t.Errorf("WSURL = %q, want default", cfg.API.WSURL)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
auth:
  client_id: from-yaml
  client_secret: secret
`)
	t.Setenv("MOWERD_AUTH_CLIENT_ID", "from-env")
	t.Setenv("MOWERD_SESSION_REST_POLL_SECONDS", "30")
	t.Setenv("MOWERD_MQTT_DISCOVERY", "false")
	t.Setenv("MOWERD_LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Auth.ClientID != "from-env" {
		t.Errorf("ClientID = %q, env must win over yaml", cfg.Auth.ClientID)
	}
	if cfg.Session.RestPollSeconds != 30 {
		t.Errorf("RestPollSeconds = %d, want 30", cfg.Session.RestPollSeconds)
	}
	if cfg.MQTT.Discovery {
		t.Error("Discovery = true, want false from env")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Log.Format)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("MOWERD_AUTH_CLIENT_ID", "cid")
	t.Setenv("MOWERD_AUTH_CLIENT_SECRET", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.BaseURL != Defaults().API.BaseURL {
		t.Errorf("BaseURL = %q, want default", cfg.API.BaseURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing client id", func(c *Config) { c.Auth.ClientID = "" }, true},
		{"missing client secret", func(c *Config) { c.Auth.ClientSecret = "" }, true},
		{"mqtt enabled without broker", func(c *Config) { c.MQTT.Enabled = true }, true},
		{"mqtt enabled with broker", func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.Broker = "tcp://localhost:1883"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Auth.ClientID = "cid"
			cfg.Auth.ClientSecret = "secret"
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseHelpers(t *testing.T) {
	if !parseBool(" TRUE ") || parseBool("nope") {
		t.Error("parseBool mishandled input")
	}
	if parseInt("15", 0) != 15 || parseInt("x", 7) != 7 {
		t.Error("parseInt mishandled input")
	}
}
