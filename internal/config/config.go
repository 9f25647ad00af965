// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Imagegen ImagegenConfig `mapstructure:"imagegen" yaml:"imagegen"`
	Gemini   GeminiConfig   `mapstructure:"gemini" yaml:"gemini"`
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`
	Scraper  ScraperConfig  `mapstructure:"scraper" yaml:"scraper"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr       string        `mapstructure:"addr" yaml:"addr"`
	PublicRoot string        `mapstructure:"public_root" yaml:"public_root"`
	JWTSecret  string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// DatabaseConfig selects the relational backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// BrowserConfig controls the shared Chrome handle and its session.
type BrowserConfig struct {
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	CookieFile     string        `mapstructure:"cookie_file" yaml:"cookie_file"`
	DownloadDir    string        `mapstructure:"download_dir" yaml:"download_dir"`
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	GeneratePath   string        `mapstructure:"generate_path" yaml:"generate_path"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout" yaml:"startup_timeout"`
}

// GenerateURL returns the absolute URL of the image generation page.
func (b BrowserConfig) GenerateURL() string {
	return strings.TrimRight(b.BaseURL, "/") + b.GeneratePath
}

// ImagegenConfig controls one submission + extraction cycle.
type ImagegenConfig struct {
	NumImages     int           `mapstructure:"num_images" yaml:"num_images"`
	WaitTime      time.Duration `mapstructure:"wait_time" yaml:"wait_time"`
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MinImageWidth int           `mapstructure:"min_image_width" yaml:"min_image_width"`
	AssetHosts    []string      `mapstructure:"asset_hosts" yaml:"asset_hosts"`
	ScreenshotDir string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// GeminiConfig controls the generative engagement service.
type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Model             string        `mapstructure:"model" yaml:"model"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// MetadataConfig controls the container metadata prober.
type MetadataConfig struct {
	ProbeCommand string   `mapstructure:"probe_command" yaml:"probe_command"`
	ProbeArgs    []string `mapstructure:"probe_args" yaml:"probe_args"`
}

// ScraperConfig controls the external media downloader.
type ScraperConfig struct {
	Binary  string        `mapstructure:"binary" yaml:"binary"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// setDefaults registers every default value with viper so that env overrides
// and partial config files compose correctly.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "mediaforge")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.public_root", "public")
	v.SetDefault("server.token_ttl", 24*time.Hour)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "mediaforge.db")

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.cookie_file", "cookies.json")
	v.SetDefault("browser.download_dir", "downloads")
	v.SetDefault("browser.base_url", "https://grok.com")
	v.SetDefault("browser.generate_path", "/imagine")
	v.SetDefault("browser.startup_timeout", 60*time.Second)

	v.SetDefault("imagegen.num_images", 4)
	v.SetDefault("imagegen.wait_time", 60*time.Second)
	v.SetDefault("imagegen.poll_interval", 10*time.Second)
	v.SetDefault("imagegen.min_image_width", 300)
	v.SetDefault("imagegen.asset_hosts", []string{"grok", "twimg"})
	v.SetDefault("imagegen.screenshot_dir", "screenshots")

	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.timeout", 10*time.Minute)
	v.SetDefault("gemini.requests_per_minute", 10)

	v.SetDefault("metadata.probe_command", "ffprobe")
	v.SetDefault("metadata.probe_args", []string{"-hide_banner"})

	v.SetDefault("scraper.binary", "yt-dlp")
	v.SetDefault("scraper.timeout", 5*time.Minute)
}

// Load reads the configuration from the given file (or ./config.yaml when
// empty), layers MEDIAFORGE_* environment variables on top, and validates the
// result.
func Load(cfgFile string) (*Config, error) {
	// Pull a local .env into the process environment first so secrets like
	// MEDIAFORGE_GEMINI_API_KEY need not live in the config file. Missing
	// .env is the normal case.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("MEDIAFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandPaths resolves ~ and makes operator-supplied paths absolute so the
// browser and prober see stable locations regardless of working directory.
func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.Browser.CookieFile,
		&c.Browser.DownloadDir,
		&c.Imagegen.ScreenshotDir,
		&c.Server.PublicRoot,
	} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return fmt.Errorf("failed to resolve path %q: %w", expanded, err)
		}
		*p = abs
	}
	return nil
}

// Validate rejects configurations that cannot possibly work.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q (want sqlite or postgres)", c.Database.Driver)
	}
	if c.Browser.BaseURL == "" {
		return fmt.Errorf("browser.base_url must be set")
	}
	if c.Imagegen.NumImages < 1 {
		return fmt.Errorf("imagegen.num_images must be at least 1")
	}
	if c.Imagegen.PollInterval <= 0 {
		return fmt.Errorf("imagegen.poll_interval must be positive")
	}
	if c.Imagegen.WaitTime < c.Imagegen.PollInterval {
		return fmt.Errorf("imagegen.wait_time (%s) must not be shorter than the poll interval (%s)",
			c.Imagegen.WaitTime, c.Imagegen.PollInterval)
	}
	return nil
}
