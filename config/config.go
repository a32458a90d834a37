// Package config handles application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

const (
	appName        = "meetstream"
	configFileName = "config.json"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config represents the application configuration.
type Config struct {
	// ClientID identifies this installation in session markers.
	ClientID string `json:"client_id"`

	Server     ServerConfig     `json:"server"`
	Language   LanguageConfig   `json:"language"`
	Audio      AudioConfig      `json:"audio"`
	Stream     StreamConfig     `json:"stream"`
	Hotkey     HotkeyConfig     `json:"hotkey"`
	LangDetect LangDetectConfig `json:"lang_detect"`
	Log        LogConfig        `json:"log"`

	path string
}

// ServerConfig locates the meeting service. There is no built-in host.
type ServerConfig struct {
	Scheme        string `json:"scheme"` // "wss" or "ws"
	Host          string `json:"host"`
	IntegrationID string `json:"integration_id"`
}

// LanguageConfig holds the language requested from the service.
type LanguageConfig struct {
	Target string `json:"target"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	SampleRate   int    `json:"sample_rate"`
	Source       string `json:"source"`        // device id, "system" or "both"
	Microphone   string `json:"microphone"`    // device mixed in for "both"
	SystemDevice string `json:"system_device"` // loopback input carrying playback
	RecordPath   string `json:"record_path,omitempty"`
}

// StreamConfig holds connection timing.
type StreamConfig struct {
	ReconnectDelayMS   int `json:"reconnect_delay_ms"`
	DownloadTTLSeconds int `json:"download_ttl_seconds"`
}

// HotkeyConfig holds the global mute shortcut.
type HotkeyConfig struct {
	Enabled bool   `json:"enabled"`
	Mute    string `json:"mute"`
}

// LangDetectConfig controls filling in missing source languages.
type LangDetectConfig struct {
	Enabled   bool     `json:"enabled"`
	Languages []string `json:"languages,omitempty"` // empty means all
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text or json
}

// Load loads configuration from the default config file.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from path. A missing file yields defaults.
// A ClientID is assigned and saved on first use.
func LoadFrom(path string) (*Config, error) {
	cfg := defaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyDefaults()

	if cfg.ClientID == "" {
		cfg.ClientID = uuid.New().String()
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("save client id: %w", err)
		}
	}
	return cfg, nil
}

// Path returns the file the configuration is saved to.
func (c *Config) Path() string {
	return c.path
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		p, err := configPath()
		if err != nil {
			return fmt.Errorf("get config path: %w", err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	return errors.Join(
		c.Server.validate(),
		c.Language.validate(),
		c.Audio.validate(),
		c.Stream.validate(),
		c.Log.validate(),
	)
}

// ReconnectDelay returns the fixed delay between reconnect attempts.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Stream.ReconnectDelayMS) * time.Millisecond
}

// DownloadTTL returns how long a finished session stays downloadable.
func (c *Config) DownloadTTL() time.Duration {
	return time.Duration(c.Stream.DownloadTTLSeconds) * time.Second
}

// SlogLevel maps Log.Level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ─────────────────────────────────────────────────────────────────────────────
// Setters
// ─────────────────────────────────────────────────────────────────────────────

// SetServer replaces the server section.
func (c *Config) SetServer(s ServerConfig) error {
	if s.Scheme == "" {
		s.Scheme = "wss"
	}
	if err := s.validate(); err != nil {
		return err
	}
	c.Server = s
	return c.Save()
}

// SetTargetLanguage stores tag in canonical form.
func (c *Config) SetTargetLanguage(tag string) error {
	t, err := language.Parse(tag)
	if err != nil {
		return fmt.Errorf("%w: language %q: %w", ErrInvalid, tag, err)
	}
	c.Language.Target = t.String()
	return c.Save()
}

// SetAudioSource sets the default capture selection.
func (c *Config) SetAudioSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("%w: empty audio source", ErrInvalid)
	}
	c.Audio.Source = source
	return c.Save()
}

// SetMuteHotkey sets the mute shortcut. An empty combo disables it.
func (c *Config) SetMuteHotkey(combo string) error {
	c.Hotkey.Mute = combo
	c.Hotkey.Enabled = combo != ""
	return c.Save()
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (s ServerConfig) validate() error {
	switch {
	case s.Scheme != "ws" && s.Scheme != "wss":
		return fmt.Errorf("%w: server scheme %q", ErrInvalid, s.Scheme)
	case strings.ContainsAny(s.Host, "/?# "):
		return fmt.Errorf("%w: server host %q", ErrInvalid, s.Host)
	}
	return nil
}

func (l LanguageConfig) validate() error {
	if l.Target == "" {
		return nil
	}
	if _, err := language.Parse(l.Target); err != nil {
		return fmt.Errorf("%w: target language %q", ErrInvalid, l.Target)
	}
	return nil
}

func (a AudioConfig) validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalid, a.SampleRate)
	}
	return nil
}

func (s StreamConfig) validate() error {
	if s.ReconnectDelayMS <= 0 {
		return fmt.Errorf("%w: reconnect delay %dms", ErrInvalid, s.ReconnectDelayMS)
	}
	if s.DownloadTTLSeconds <= 0 {
		return fmt.Errorf("%w: download ttl %ds", ErrInvalid, s.DownloadTTLSeconds)
	}
	return nil
}

func (l LogConfig) validate() error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalid, l.Level)
	}
	if l.Format != "text" && l.Format != "json" {
		return fmt.Errorf("%w: log format %q", ErrInvalid, l.Format)
	}
	return nil
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

// Dir returns the application's config directory.
func Dir() (string, error) {
	path, err := configPath()
	if err != nil {
		return "", err
	}
	return filepath.Dir(path), nil
}

func defaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Scheme: "wss"},
		Language: LanguageConfig{Target: "en"},
		Audio: AudioConfig{
			SampleRate: 16000,
			Source:     "both",
		},
		Stream: StreamConfig{
			ReconnectDelayMS:   3000,
			DownloadTTLSeconds: 600,
		},
		Hotkey:     HotkeyConfig{Enabled: true, Mute: "ctrl+shift+m"},
		LangDetect: LangDetectConfig{Enabled: true},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// applyDefaults fills zero fields left by a partial file.
func (c *Config) applyDefaults() {
	d := defaultConfig()
	if c.Server.Scheme == "" {
		c.Server.Scheme = d.Server.Scheme
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = d.Audio.SampleRate
	}
	if c.Audio.Source == "" {
		c.Audio.Source = d.Audio.Source
	}
	if c.Stream.ReconnectDelayMS == 0 {
		c.Stream.ReconnectDelayMS = d.Stream.ReconnectDelayMS
	}
	if c.Stream.DownloadTTLSeconds == 0 {
		c.Stream.DownloadTTLSeconds = d.Stream.DownloadTTLSeconds
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}
