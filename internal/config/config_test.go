package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SESSION_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ProviderCoze, cfg.Bot.Provider)
	assert.Equal(t, "https://api.coze.cn/v3/chat", cfg.Bot.Endpoint)
	assert.Equal(t, 60*time.Second, cfg.Bot.IdleTimeout)
	assert.Equal(t, StoreDatabase, cfg.Storage.Driver)
	assert.Equal(t, "forest-park-chat-history", cfg.Storage.Namespace)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Auth.SecureCookie)
	assert.False(t, cfg.Bot.Enabled())
	assert.False(t, cfg.Auth.BootstrapAdmin())
}

func TestLoadServerAddrForms(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret")

	cases := map[string]string{
		"9090":           ":9090",
		":7000":          ":7000",
		"127.0.0.1:8000": "127.0.0.1:8000",
	}
	for port, want := range cases {
		t.Setenv("PORT", port)
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, want, cfg.Server.Addr)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret")

	t.Run("port with space", func(t *testing.T) {
		t.Setenv("PORT", "80 80")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown store driver", func(t *testing.T) {
		t.Setenv("CHAT_STORE_DRIVER", "floppy")
		_, err := Load()
		assert.ErrorContains(t, err, "CHAT_STORE_DRIVER")
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Setenv("BOT_PROVIDER", "carrier-pigeon")
		_, err := Load()
		assert.ErrorContains(t, err, "BOT_PROVIDER")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("BOT_IDLE_TIMEOUT", "soon")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadRequiresSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	_, err := Load()
	assert.ErrorContains(t, err, "SESSION_SECRET")
}

func TestBotEnabled(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret")
	t.Setenv("BOT_ID", "7495295094762045440")
	t.Setenv("BOT_TOKEN", "pat_test")
	t.Setenv("BOT_IDLE_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Bot.Enabled())
	assert.Equal(t, 5*time.Second, cfg.Bot.IdleTimeout)
}

func TestNegativeIdleTimeoutDisablesWatchdog(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret")
	t.Setenv("BOT_IDLE_TIMEOUT", "-1s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, -time.Second, cfg.Bot.IdleTimeout)
}

func TestArkEnabled(t *testing.T) {
	assert.False(t, ArkConfig{APIKey: "k"}.Enabled())
	assert.True(t, ArkConfig{APIKey: "k", Model: "m"}.Enabled())
	assert.True(t, ArkConfig{AccessKey: "a", SecretKey: "s", Model: "m"}.Enabled())
}
