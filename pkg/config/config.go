package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

const envConfigPath = "DOLLHOUSE_CONFIG"

var validate = validator.New()

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Logging  LoggingConfig  `json:"logging,omitempty"`
	Store    StoreConfig    `json:"store"`
	Room     RoomConfig     `json:"room"`
	Event    EventConfig    `json:"event"`
	Channels ChannelsConfig `json:"channels"`
	Gateway  GatewayConfig  `json:"gateway"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" env:"DOLLHOUSE_LOG_FORMAT" validate:"omitempty,oneof=text json"`
	Level     string `json:"level,omitempty" env:"DOLLHOUSE_LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	AddSource bool   `json:"add_source,omitempty" env:"DOLLHOUSE_LOG_ADD_SOURCE"`
	// File receives log output while the terminal UI owns the screen.
	File      string `json:"file,omitempty" env:"DOLLHOUSE_LOG_FILE"`
}

// StoreConfig locates the shared room database.
type StoreConfig struct {
	Path           string `json:"path" env:"DOLLHOUSE_DB_PATH"`
	PollIntervalMS int    `json:"poll_interval_ms" env:"DOLLHOUSE_POLL_INTERVAL_MS" validate:"gte=0"`
}

// RoomConfig tunes presence and speech bubbles.
type RoomConfig struct {
	InactivitySeconds int `json:"inactivity_seconds" env:"DOLLHOUSE_INACTIVITY_SECONDS" validate:"gte=0"`
	BubbleMS          int `json:"bubble_ms" env:"DOLLHOUSE_BUBBLE_MS" validate:"gte=0"`
	FadeTickMS        int `json:"fade_tick_ms" validate:"gte=0"`
	HistoryLimit      int `json:"history_limit" validate:"gte=0"`
}

// EventConfig paces the chaos event. Zero values fall back to the event's
// own defaults.
type EventConfig struct {
	InitialBots       int     `json:"initial_bots" validate:"gte=0"`
	SpawnIntervalMS   int     `json:"spawn_interval_ms" validate:"gte=0"`
	MaxSpawnBatch     int     `json:"max_spawn_batch" validate:"gte=0"`
	MaxBots           int     `json:"max_bots" env:"DOLLHOUSE_EVENT_MAX_BOTS" validate:"gte=0"`
	MessageIntervalMS int     `json:"message_interval_ms" validate:"gte=0"`
	CooldownMS        int     `json:"cooldown_ms" validate:"gte=0"`
	MinFraction       float64 `json:"min_fraction" validate:"gte=0,lte=1"`
	MaxFraction       float64 `json:"max_fraction" validate:"gte=0,lte=1"`
	RampSeconds       int     `json:"ramp_seconds" validate:"gte=0"`
	EscalateAt        float64 `json:"escalate_at" validate:"gte=0,lte=1"`
	PopupDelaySeconds int     `json:"popup_delay_seconds" validate:"gte=0"`
	PopupIntervalMS   int     `json:"popup_interval_ms" validate:"gte=0"`
	PopupLifetimeMS   int     `json:"popup_lifetime_ms" validate:"gte=0"`
	PopupFadeMS       int     `json:"popup_fade_ms" validate:"gte=0"`
	DeadlineSeconds   int     `json:"deadline_seconds" env:"DOLLHOUSE_EVENT_DEADLINE_SECONDS" validate:"gte=0"`
	Seed              uint64  `json:"seed,omitempty" env:"DOLLHOUSE_EVENT_SEED"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig configures the Telegram bridge.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled" env:"TELEGRAM_ENABLED"`
	Token     string   `json:"token" env:"TELEGRAM_BOT_TOKEN"`
	AllowFrom []string `json:"allow_from" env:"TELEGRAM_ALLOW_FROM" envSeparator:","`
}

// GatewayConfig configures the bridge health endpoint.
type GatewayConfig struct {
	Host string `json:"host" env:"DOLLHOUSE_GATEWAY_HOST"`
	Port int    `json:"port" env:"DOLLHOUSE_GATEWAY_PORT" validate:"gte=0,lte=65535"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Format: "text", Level: "info"},
		Store:   StoreConfig{Path: "dollhouse.db", PollIntervalMS: 500},
		Room: RoomConfig{
			InactivitySeconds: 300,
			BubbleMS:          7000,
			FadeTickMS:        100,
			HistoryLimit:      50,
		},
		Gateway: GatewayConfig{Host: "127.0.0.1", Port: 18790},
	}
}

// LoadConfig resolves config.json, unmarshals it over the defaults, and
// applies environment overrides. A missing file is not an error unless
// DOLLHOUSE_CONFIG names it.
func LoadConfig() (*Config, error) {
	cfg := Default()

	configPath, err := findConfigPath()
	switch {
	case errors.Is(err, errNoConfigFile):
	case err != nil:
		return nil, err
	default:
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if len(cfg.Channels.Telegram.AllowFrom) > 0 {
		cfg.Channels.Telegram.AllowFrom = compact(cfg.Channels.Telegram.AllowFrom)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports out-of-range settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Event.MaxFraction > 0 && c.Event.MaxFraction < c.Event.MinFraction {
		return fmt.Errorf("invalid config: event.max_fraction %.2f is below event.min_fraction %.2f", c.Event.MaxFraction, c.Event.MinFraction)
	}
	return nil
}

func (r RoomConfig) InactivityThreshold() time.Duration {
	return time.Duration(r.InactivitySeconds) * time.Second
}

func (r RoomConfig) BubbleDuration() time.Duration {
	return time.Duration(r.BubbleMS) * time.Millisecond
}

func (r RoomConfig) FadeInterval() time.Duration {
	return time.Duration(r.FadeTickMS) * time.Millisecond
}

func (s StoreConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

// Addr is the host:port the gateway listens on.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// compact trims values and drops empty ones.
func compact(values []string) []string {
	clean := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	return clean
}

var errNoConfigFile = errors.New("no config file")

// findConfigPath resolves the active config file location.
//
// Precedence is DOLLHOUSE_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", errNoConfigFile
}
