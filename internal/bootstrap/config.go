package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "LABELSCAN_"
	envConfigPath = "LABELSCAN_CONFIG"
	defaultConfig = "config.yaml"
)

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Log         LogConfig         `koanf:"log"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Analysis    AnalysisConfig    `koanf:"analysis"`
	Product     ProductConfig     `koanf:"product"`
	Storage     StorageConfig     `koanf:"storage"`
	Redis       RedisConfig       `koanf:"redis"`
	SecureStore SecureStoreConfig `koanf:"securestore"`
	Camera      CameraConfig      `koanf:"camera"`
	Fastpath    FastpathConfig    `koanf:"fastpath"`
	History     HistoryConfig     `koanf:"history"`
	Shots       ShotsConfig       `koanf:"shots"`
}

type ServerConfig struct {
	Addr      string  `koanf:"addr"`
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Pretty      bool   `koanf:"pretty"`
	ServiceName string `koanf:"service_name"`
}

type AnalysisConfig struct {
	BaseURL      string        `koanf:"base_url"`
	AppVersion   string        `koanf:"app_version"`
	FirstTimeout time.Duration `koanf:"first_timeout"`
	RetryTimeout time.Duration `koanf:"retry_timeout"`
	TextTimeout  time.Duration `koanf:"text_timeout"`
	BackoffStep  time.Duration `koanf:"backoff_step"`
}

type ProductConfig struct {
	BaseURL   string        `koanf:"base_url"`
	UserAgent string        `koanf:"user_agent"`
	Timeout   time.Duration `koanf:"timeout"`
}

type StorageConfig struct {
	Driver string `koanf:"driver"` // redis, postgres, sqlite
	DSN    string `koanf:"dsn"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

type SecureStoreConfig struct {
	Salt string `koanf:"salt"`
}

type CameraConfig struct {
	Device        string        `koanf:"device"`
	FFmpegPath    string        `koanf:"ffmpeg_path"`
	Format        string        `koanf:"format"`
	Width         int           `koanf:"width"`
	Height        int           `koanf:"height"`
	FrameRate     int           `koanf:"framerate"`
	PickerDir     string        `koanf:"picker_dir"`
	PickTimeout   time.Duration `koanf:"pick_timeout"`
	Debounce      time.Duration `koanf:"debounce"`
	HoldThreshold time.Duration `koanf:"hold_threshold"`
	Language      string        `koanf:"language"`
}

type FastpathConfig struct {
	TermsFile string `koanf:"terms_file"`
}

type HistoryConfig struct {
	Limit          int `koanf:"limit"`
	ThumbnailWidth int `koanf:"thumbnail_width"`
}

type ShotsConfig struct {
	Capacity int `koanf:"capacity"`
}

var defaults = map[string]any{
	"server.addr":             ":8080",
	"server.rate_limit":       10.0,
	"server.rate_burst":       20,
	"log.level":               "info",
	"log.format":              "json",
	"telemetry.enabled":       false,
	"telemetry.service_name":  "label-scan",
	"analysis.base_url":       "http://localhost:3000",
	"analysis.app_version":    "1.0.0",
	"analysis.first_timeout":  "20s",
	"analysis.retry_timeout":  "35s",
	"analysis.text_timeout":   "20s",
	"analysis.backoff_step":   "1500ms",
	"product.base_url":        "https://world.openfoodfacts.org",
	"product.user_agent":      "label-scan/1.0",
	"product.timeout":         "10s",
	"storage.driver":          "sqlite",
	"redis.addr":              "localhost:6379",
	"redis.db":                0,
	"redis.prefix":            "labelscan:",
	"securestore.salt":        "labelscan-local-salt",
	"camera.width":            1920,
	"camera.height":           1080,
	"camera.framerate":        30,
	"camera.picker_dir":       "picker",
	"camera.pick_timeout":     "5m",
	"camera.debounce":         "500ms",
	"camera.hold_threshold":   "400ms",
	"camera.language":         "ar",
	"history.limit":           30,
	"history.thumbnail_width": 300,
	"shots.capacity":          4,
}

// LoadConfig reads .env, then the YAML file named by LABELSCAN_CONFIG (or
// config.yaml), then LABELSCAN_* environment variables. A double underscore
// separates nesting levels: LABELSCAN_ANALYSIS__BASE_URL sets
// analysis.base_url.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv(envConfigPath)
	if path == "" {
		path = defaultConfig
	}
	return LoadConfigFrom(path)
}

func LoadConfigFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("set default %s: %w", key, err)
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "redis", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return errors.New("storage.dsn is required for postgres")
	}
	if c.Shots.Capacity <= 0 {
		return errors.New("shots.capacity must be positive")
	}
	return nil
}
