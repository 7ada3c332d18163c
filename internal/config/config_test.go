package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-engine/recommender/internal/config"
)

var envKeys = []string{
	"HTTP_ADDR",
	"CATALOG_SOURCE",
	"CATALOG_PATH",
	"CATALOG_URL",
	"CATALOG_USER_AGENT",
	"CATALOG_REQUEST_TIMEOUT",
	"CATALOG_RESPECT_ROBOTS",
	"CATALOG_STRIP_MARKUP",
	"INDEX_EAGER_BUILD",
	"INDEX_DEFAULT_TOP_N",
	"INDEX_MAX_TOP_N",
	"INDEX_MIN_TEXT_SCORE",
	"LOG_LEVEL",
	"LOG_FORMAT",
}

// clearEnvVars unsets every key Load reads and restores them when the test ends
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		if value, exists := os.LookupEnv(key); exists {
			t.Cleanup(func() { os.Setenv(key, value) })
		}
		os.Unsetenv(key)
	}
}

func TestLoadDefaultConfig(t *testing.T) {
	clearEnvVars(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "csv", cfg.Catalog.Source)
	assert.Equal(t, "models/products.csv", cfg.Catalog.Path)
	assert.Equal(t, 30*time.Second, cfg.Catalog.RequestTimeout)
	assert.True(t, cfg.Catalog.RespectRobots)
	assert.True(t, cfg.Catalog.StripMarkup)

	assert.True(t, cfg.Index.EagerBuild)
	assert.Equal(t, 5, cfg.Index.DefaultTopN)
	assert.Equal(t, 10, cfg.Index.MaxTopN)
	assert.Equal(t, 0.0, cfg.Index.MinTextScore)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)

	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearEnvVars(t)

	envVars := map[string]string{
		"HTTP_ADDR":               ":9090",
		"CATALOG_SOURCE":          "http",
		"CATALOG_URL":             "https://shop.example.com/feed.json",
		"CATALOG_REQUEST_TIMEOUT": "5s",
		"CATALOG_RESPECT_ROBOTS":  "false",
		"INDEX_EAGER_BUILD":       "false",
		"INDEX_DEFAULT_TOP_N":     "3",
		"INDEX_MAX_TOP_N":         "20",
		"INDEX_MIN_TEXT_SCORE":    "0.05",
		"LOG_FORMAT":              "json",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "http", cfg.Catalog.Source)
	assert.Equal(t, "https://shop.example.com/feed.json", cfg.Catalog.URL)
	assert.Equal(t, 5*time.Second, cfg.Catalog.RequestTimeout)
	assert.False(t, cfg.Catalog.RespectRobots)
	assert.False(t, cfg.Index.EagerBuild)
	assert.Equal(t, 3, cfg.Index.DefaultTopN)
	assert.Equal(t, 20, cfg.Index.MaxTopN)
	assert.InDelta(t, 0.05, cfg.Index.MinTextScore, 1e-12)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"Unknown source", map[string]string{"CATALOG_SOURCE": "ftp"}},
		{"HTTP source without URL", map[string]string{"CATALOG_SOURCE": "http"}},
		{"Malformed int", map[string]string{"INDEX_MAX_TOP_N": "ten"}},
		{"Malformed duration", map[string]string{"CATALOG_REQUEST_TIMEOUT": "soon"}},
		{"Zero max top n", map[string]string{"INDEX_MAX_TOP_N": "0"}},
		{"Default above max", map[string]string{"INDEX_DEFAULT_TOP_N": "11"}},
		{"Negative min score", map[string]string{"INDEX_MIN_TEXT_SCORE": "-0.1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			cfg, err := config.Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestEnvironmentIsolation(t *testing.T) {
	clearEnvVars(t)

	cfg1, err := config.Load()
	require.NoError(t, err)

	t.Setenv("INDEX_MAX_TOP_N", "50")
	t.Setenv("CATALOG_PATH", "data/catalog.json")

	cfg2, err := config.Load()
	require.NoError(t, err)

	assert.NotEqual(t, cfg1.Index.MaxTopN, cfg2.Index.MaxTopN)
	assert.NotEqual(t, cfg1.Catalog.Path, cfg2.Catalog.Path)
}
