package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	path := writeConfig(t, `{
	  "store": {"path": "/tmp/room.db"},
	  "room": {"inactivity_seconds": 60, "bubble_ms": 4000},
	  "event": {"initial_bots": 5, "deadline_seconds": 40},
	  "channels": {"telegram": {"enabled": true, "allow_from": ["1", " ", "2"]}},
	  "gateway": {"host": "0.0.0.0", "port": 18791},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`)
	t.Setenv(envConfigPath, path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Logging.Format != "json" {
		t.Fatalf("logging.format = %q, want %q", cfg.Logging.Format, "json")
	}
	if !cfg.Logging.AddSource {
		t.Fatal("logging.add_source = false, want true")
	}
	require.Equal(t, "/tmp/room.db", cfg.Store.Path)
	require.Equal(t, time.Minute, cfg.Room.InactivityThreshold())
	require.Equal(t, 4*time.Second, cfg.Room.BubbleDuration())
	require.Equal(t, 100*time.Millisecond, cfg.Room.FadeInterval(), "unset fields keep defaults")
	require.Equal(t, 5, cfg.Event.InitialBots)
	require.Equal(t, 40, cfg.Event.DeadlineSeconds)
	require.Equal(t, []string{"1", "2"}, cfg.Channels.Telegram.AllowFrom)
	require.Equal(t, "0.0.0.0:18791", cfg.Gateway.Addr())
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	t.Setenv(envConfigPath, filepath.Join(t.TempDir(), "missing.json"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config path")
	}
}

func TestLoadConfigWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv(envConfigPath, "")
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, 5*time.Minute, cfg.Room.InactivityThreshold())
	require.Equal(t, 500*time.Millisecond, cfg.Store.PollInterval())
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"store": {"path": "file.db"}, "channels": {"telegram": {"token": "from-file"}}}`)
	t.Setenv(envConfigPath, path)
	t.Setenv("DOLLHOUSE_DB_PATH", "env.db")
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("TELEGRAM_ALLOW_FROM", "10, 20,,")
	t.Setenv("DOLLHOUSE_LOG_LEVEL", "warn")
	t.Setenv("DOLLHOUSE_EVENT_SEED", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "env.db", cfg.Store.Path)
	require.Equal(t, "from-env", cfg.Channels.Telegram.Token)
	require.Equal(t, []string{"10", "20"}, cfg.Channels.Telegram.AllowFrom)
	require.Equal(t, "warn", cfg.Logging.Level)
	require.Equal(t, uint64(7), cfg.Event.Seed)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"log format":    `{"logging": {"format": "xml"}}`,
		"fraction":      `{"event": {"min_fraction": 1.5}}`,
		"port":          `{"gateway": {"port": 70000}}`,
		"ramp order":    `{"event": {"min_fraction": 0.4, "max_fraction": 0.2}}`,
		"broken json":   `{"store": `,
		"negative tick": `{"room": {"fade_tick_ms": -1}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(envConfigPath, writeConfig(t, content))
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}
