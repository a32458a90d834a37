package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meetstream", "config.json")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Scheme != "wss" || cfg.Server.Host != "" {
		t.Errorf("Server = %+v, want wss with no host", cfg.Server)
	}
	if cfg.ReconnectDelay() != 3*time.Second {
		t.Errorf("ReconnectDelay() = %v", cfg.ReconnectDelay())
	}
	if cfg.DownloadTTL() != 10*time.Minute {
		t.Errorf("DownloadTTL() = %v", cfg.DownloadTTL())
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Source != "both" {
		t.Errorf("Audio = %+v", cfg.Audio)
	}
	if cfg.Hotkey.Mute != "ctrl+shift+m" {
		t.Errorf("Hotkey.Mute = %q", cfg.Hotkey.Mute)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}

	// The client id is persisted on first load and stable afterwards.
	if cfg.ClientID == "" {
		t.Fatal("ClientID not assigned")
	}
	again, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("second LoadFrom: %v", err)
	}
	if again.ClientID != cfg.ClientID {
		t.Errorf("ClientID changed: %q -> %q", cfg.ClientID, again.ClientID)
	}
}

func TestLoadFrom_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := map[string]any{
		"client_id": "fixed-id",
		"server":    map[string]any{"host": "meet.example.com", "integration_id": "acme"},
		"stream":    map[string]any{"reconnect_delay_ms": 500},
		"log":       map[string]any{"level": "debug"},
	}
	raw, _ := json.Marshal(data)
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.ClientID != "fixed-id" {
		t.Errorf("ClientID = %q", cfg.ClientID)
	}
	if cfg.Server.Scheme != "wss" || cfg.Server.Host != "meet.example.com" || cfg.Server.IntegrationID != "acme" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.ReconnectDelay() != 500*time.Millisecond {
		t.Errorf("ReconnectDelay() = %v", cfg.ReconnectDelay())
	}
	if cfg.DownloadTTL() != 10*time.Minute {
		t.Errorf("DownloadTTL() = %v, want default", cfg.DownloadTTL())
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v", cfg.SlogLevel())
	}
}

func TestLoadFrom_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{nope"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom() accepted invalid JSON")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"plain ws", func(c *Config) { c.Server.Scheme = "ws" }, true},
		{"http scheme", func(c *Config) { c.Server.Scheme = "http" }, false},
		{"host with path", func(c *Config) { c.Server.Host = "example.com/ws" }, false},
		{"bad language", func(c *Config) { c.Language.Target = "not a tag" }, false},
		{"sample rate too low", func(c *Config) { c.Audio.SampleRate = 100 }, false},
		{"zero reconnect delay", func(c *Config) { c.Stream.ReconnectDelayMS = 0 }, false},
		{"negative ttl", func(c *Config) { c.Stream.DownloadTTLSeconds = -1 }, false},
		{"unknown log level", func(c *Config) { c.Log.Level = "chatty" }, false},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestSetters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := cfg.SetServer(ServerConfig{Host: "localhost:8080", IntegrationID: "acme"}); err != nil {
		t.Fatalf("SetServer: %v", err)
	}
	if err := cfg.SetServer(ServerConfig{Scheme: "ftp", Host: "x"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("SetServer(ftp) = %v, want ErrInvalid", err)
	}
	if err := cfg.SetTargetLanguage("pt-br"); err != nil {
		t.Fatalf("SetTargetLanguage: %v", err)
	}
	if err := cfg.SetTargetLanguage("???"); !errors.Is(err, ErrInvalid) {
		t.Errorf("SetTargetLanguage(???) = %v, want ErrInvalid", err)
	}
	if err := cfg.SetAudioSource(""); !errors.Is(err, ErrInvalid) {
		t.Errorf("SetAudioSource(\"\") = %v, want ErrInvalid", err)
	}
	if err := cfg.SetMuteHotkey(""); err != nil {
		t.Fatalf("SetMuteHotkey: %v", err)
	}

	saved, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Server.Scheme != "wss" || saved.Server.Host != "localhost:8080" {
		t.Errorf("saved Server = %+v", saved.Server)
	}
	if saved.Language.Target != "pt-BR" {
		t.Errorf("saved Language.Target = %q, want pt-BR", saved.Language.Target)
	}
	if saved.Hotkey.Enabled {
		t.Error("empty mute hotkey left hotkey enabled")
	}
}
