// File: internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// A nonexistent explicit config file is an error.
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "https://grok.com", cfg.Browser.BaseURL)
	assert.Equal(t, 4, cfg.Imagegen.NumImages)
	assert.Equal(t, 60*time.Second, cfg.Imagegen.WaitTime)
	assert.Equal(t, 10*time.Second, cfg.Imagegen.PollInterval)
	assert.Equal(t, []string{"grok", "twimg"}, cfg.Imagegen.AssetHosts)
	assert.Equal(t, "yt-dlp", cfg.Scraper.Binary)

	// Paths get expanded to absolute locations.
	assert.True(t, filepath.IsAbs(cfg.Browser.CookieFile))
	assert.True(t, filepath.IsAbs(cfg.Browser.DownloadDir))
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  addr: ":9090"
browser:
  base_url: "https://example.com"
  generate_path: "/create"
imagegen:
  num_images: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "https://example.com/create", cfg.Browser.GenerateURL())
	assert.Equal(t, 2, cfg.Imagegen.NumImages)
	// Untouched sections keep their defaults.
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestGenerateURL(t *testing.T) {
	b := BrowserConfig{BaseURL: "https://grok.com/", GeneratePath: "/imagine"}
	assert.Equal(t, "https://grok.com/imagine", b.GenerateURL())

	b = BrowserConfig{BaseURL: "https://grok.com", GeneratePath: "/imagine"}
	assert.Equal(t, "https://grok.com/imagine", b.GenerateURL())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: "sqlite", DSN: "x.db"},
			Browser:  BrowserConfig{BaseURL: "https://example.com"},
			Imagegen: ImagegenConfig{NumImages: 4, WaitTime: time.Minute, PollInterval: 10 * time.Second},
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("unknown driver", func(t *testing.T) {
		c := valid()
		c.Database.Driver = "oracle"
		assert.Error(t, c.Validate())
	})

	t.Run("missing base url", func(t *testing.T) {
		c := valid()
		c.Browser.BaseURL = ""
		assert.Error(t, c.Validate())
	})

	t.Run("zero images", func(t *testing.T) {
		c := valid()
		c.Imagegen.NumImages = 0
		assert.Error(t, c.Validate())
	})

	t.Run("wait shorter than poll interval", func(t *testing.T) {
		c := valid()
		c.Imagegen.WaitTime = 5 * time.Second
		assert.Error(t, c.Validate())
	})
}
