package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AmanSingh336699/ai-interview-battle/internal/config"
)

func TestLoad(t *testing.T) {
	type testConfig struct {
		HTTP struct {
			Port int32
		}
		Retention struct {
			Battle time.Duration
			Answer time.Duration
		}
	}

	write := func(t *testing.T, content string) string {
		p := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		return p
	}

	t.Run("file values override struct defaults", func(t *testing.T) {
		var c testConfig
		c.HTTP.Port = 8080
		c.Retention.Battle = 24 * time.Hour

		p := write(t, "http:\n  port: 9090\nretention:\n  answer: 1h\n")
		require.NoError(t, config.Load(p, &c))

		require.EqualValues(t, 9090, c.HTTP.Port)
		require.Equal(t, 24*time.Hour, c.Retention.Battle, "default should survive when file omits the key")
		require.Equal(t, time.Hour, c.Retention.Answer)
	})

	t.Run("missing file fails", func(t *testing.T) {
		var c testConfig
		require.Error(t, config.Load(filepath.Join(t.TempDir(), "absent.yaml"), &c))
	})
}
