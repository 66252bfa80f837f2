package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"WHISPERAPI_PORT", "WHISPERAPI_MODEL", "WHISPERAPI_ENGINE", "WHISPERAPI_LANGUAGE"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, DefaultPort, cfg.Port)
	require.Equal(t, DefaultEngine, cfg.Engine)
	require.Equal(t, "auto", cfg.Language)
	require.Empty(t, cfg.Model)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("WHISPERAPI_PORT", "9100")
	t.Setenv("WHISPERAPI_MODEL", "small")
	t.Setenv("WHISPERAPI_ENGINE", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := Load()
	require.Equal(t, 9100, cfg.Port)
	require.Equal(t, "small", cfg.Model)
	require.Equal(t, "openai", cfg.Engine)
	require.Equal(t, "sk-test", cfg.OpenAIKey)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("WHISPERAPI_PORT", "not-a-number")

	cfg := Load()
	require.Equal(t, DefaultPort, cfg.Port)

	t.Setenv("WHISPERAPI_PORT", "-3")
	cfg = Load()
	require.Equal(t, DefaultPort, cfg.Port)
}
