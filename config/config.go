// Package config manages application configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all dubber configuration.
type Config struct {
	Translation TranslationConfig `yaml:"translation" json:"translation"`
	Cache       CacheConfig       `yaml:"cache" json:"cache"`
	HTTP        HTTPConfig        `yaml:"http" json:"http"`
	Log         LogConfig         `yaml:"log" json:"log"`
	Tools       ToolsConfig       `yaml:"tools" json:"tools"`
}

// TranslationConfig configures the remote endpoint and the resilience policy.
type TranslationConfig struct {
	// BaseURL is the LibreTranslate-compatible endpoint root.
	BaseURL string `yaml:"base_url" json:"base_url"`
	APIKey  string `yaml:"api_key" json:"api_key"`
	// OfflineMode degrades failures to the dictionary/idiom/marker fallback.
	OfflineMode bool `yaml:"offline_mode" json:"offline_mode"`
	// MaxRetries is the total number of remote attempts per text.
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" json:"attempt_timeout"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout" json:"probe_timeout"`
	// Backoff is multiplied by the attempt number between retries.
	Backoff        time.Duration `yaml:"backoff" json:"backoff"`
	SourceLanguage string        `yaml:"source_language" json:"source_language"`
	TargetLanguage string        `yaml:"target_language" json:"target_language"`
}

// CacheConfig configures the persistent translation cache.
type CacheConfig struct {
	// Path of the JSON cache file. Empty keeps the cache in memory.
	Path string `yaml:"path" json:"path"`
	// FlushEvery is the number of inserts between background flushes.
	FlushEvery int `yaml:"flush_every" json:"flush_every"`
}

// HTTPConfig configures the shared HTTP transport.
type HTTPConfig struct {
	// RateLimit is requests per second per host (0 = unlimited).
	RateLimit        float64       `yaml:"rate_limit" json:"rate_limit"`
	Burst            int           `yaml:"burst" json:"burst"`
	BreakerThreshold int           `yaml:"breaker_threshold" json:"breaker_threshold"`
	BreakerRecovery  time.Duration `yaml:"breaker_recovery" json:"breaker_recovery"`
	UserAgent        string        `yaml:"user_agent" json:"user_agent"`
}

// LogConfig configures the logging provider.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
	// Format is json, console or pretty.
	Format string `yaml:"format" json:"format"`
}

// ToolsConfig locates the external binaries used by the pipeline.
type ToolsConfig struct {
	YtdlpPath     string        `yaml:"ytdlp_path" json:"ytdlp_path"`
	YtdlpTimeout  time.Duration `yaml:"ytdlp_timeout" json:"ytdlp_timeout"`
	FfmpegPath    string        `yaml:"ffmpeg_path" json:"ffmpeg_path"`
	FfmpegTimeout time.Duration `yaml:"ffmpeg_timeout" json:"ffmpeg_timeout"`
	// WorkDir holds downloads and intermediate media files.
	WorkDir string `yaml:"work_dir" json:"work_dir"`
	// WhisperModel and PiperModel are required for speech recognition and
	// dubbing respectively; subtitles from captions need neither.
	WhisperPath   string        `yaml:"whisper_path" json:"whisper_path"`
	WhisperModel  string        `yaml:"whisper_model" json:"whisper_model"`
	PiperPath     string        `yaml:"piper_path" json:"piper_path"`
	PiperModel    string        `yaml:"piper_model" json:"piper_model"`
	SpeechTimeout time.Duration `yaml:"speech_timeout" json:"speech_timeout"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		Translation: TranslationConfig{
			BaseURL:        "https://libretranslate.com",
			OfflineMode:    true,
			MaxRetries:     3,
			AttemptTimeout: 10 * time.Second,
			ProbeTimeout:   3 * time.Second,
			Backoff:        1 * time.Second,
			SourceLanguage: "en",
			TargetLanguage: "tr",
		},
		Cache: CacheConfig{
			Path:       defaultCachePath(),
			FlushEvery: 10,
		},
		HTTP: HTTPConfig{
			RateLimit:        1.3,
			Burst:            3,
			BreakerThreshold: 5,
			BreakerRecovery:  30 * time.Second,
			UserAgent:        "dubber/1.0",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Tools: ToolsConfig{
			YtdlpPath:     "yt-dlp",
			YtdlpTimeout:  10 * time.Minute,
			FfmpegPath:    "ffmpeg",
			FfmpegTimeout: 30 * time.Minute,
			WorkDir:       filepath.Join(os.TempDir(), "dubber"),
			WhisperPath:   "whisper-cli",
			PiperPath:     "piper",
			SpeechTimeout: 30 * time.Minute,
		},
	}
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dubber", "translations.json")
}

// Load loads configuration from the first config file found, then applies
// environment variables and validates the result.
// Priority: env vars > config file > defaults
func Load() (*Config, error) {
	return load(searchPaths())
}

// LoadFile is Load with an explicit config file, which must exist.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("load config file: %w", err)
	}
	return load([]string{path})
}

func load(paths []string) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(paths); err != nil {
		// Config file is optional
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// searchPaths lists dubber.yaml, dubber.yml and dubber.json in the current
// directory, then in $HOME/.config/dubber.
func searchPaths() []string {
	names := []string{"dubber.yaml", "dubber.yml", "dubber.json"}
	paths := append([]string(nil), names...)
	if home := os.Getenv("HOME"); home != "" {
		for _, n := range names {
			paths = append(paths, filepath.Join(home, ".config", "dubber", n))
		}
	}
	return paths
}

// loadFromFile reads the first existing path. JSON files are read with the
// YAML decoder, which accepts them as-is.
func (c *Config) loadFromFile(paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}

		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}

	return os.ErrNotExist
}

// loadFromEnv overrides config with DUBBER_* environment variables.
// Unparsable values are ignored.
func (c *Config) loadFromEnv() {
	envString("DUBBER_BASE_URL", &c.Translation.BaseURL)
	envString("DUBBER_API_KEY", &c.Translation.APIKey)
	envBool("DUBBER_OFFLINE_MODE", &c.Translation.OfflineMode)
	envInt("DUBBER_MAX_RETRIES", &c.Translation.MaxRetries)
	envDuration("DUBBER_ATTEMPT_TIMEOUT", &c.Translation.AttemptTimeout)
	envDuration("DUBBER_PROBE_TIMEOUT", &c.Translation.ProbeTimeout)
	envDuration("DUBBER_BACKOFF", &c.Translation.Backoff)
	envString("DUBBER_SOURCE_LANGUAGE", &c.Translation.SourceLanguage)
	envString("DUBBER_TARGET_LANGUAGE", &c.Translation.TargetLanguage)

	envString("DUBBER_CACHE_PATH", &c.Cache.Path)
	envInt("DUBBER_CACHE_FLUSH_EVERY", &c.Cache.FlushEvery)

	if v := os.Getenv("DUBBER_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.HTTP.RateLimit = f
		}
	}
	envInt("DUBBER_BREAKER_THRESHOLD", &c.HTTP.BreakerThreshold)

	envString("DUBBER_LOG_LEVEL", &c.Log.Level)
	envString("DUBBER_LOG_FORMAT", &c.Log.Format)

	envString("DUBBER_YTDLP_PATH", &c.Tools.YtdlpPath)
	envDuration("DUBBER_YTDLP_TIMEOUT", &c.Tools.YtdlpTimeout)
	envString("DUBBER_FFMPEG_PATH", &c.Tools.FfmpegPath)
	envDuration("DUBBER_FFMPEG_TIMEOUT", &c.Tools.FfmpegTimeout)
	envString("DUBBER_WORK_DIR", &c.Tools.WorkDir)
	envString("DUBBER_WHISPER_PATH", &c.Tools.WhisperPath)
	envString("DUBBER_WHISPER_MODEL", &c.Tools.WhisperModel)
	envString("DUBBER_PIPER_PATH", &c.Tools.PiperPath)
	envString("DUBBER_PIPER_MODEL", &c.Tools.PiperModel)
	envDuration("DUBBER_SPEECH_TIMEOUT", &c.Tools.SpeechTimeout)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Validate checks that configuration values are valid and consistent.
func (c *Config) Validate() error {
	t := c.Translation
	u, err := url.Parse(t.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got %q", t.BaseURL)
	}
	if t.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}
	if t.AttemptTimeout <= 0 {
		return fmt.Errorf("attempt_timeout must be positive")
	}
	if t.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive")
	}
	if t.ProbeTimeout > t.AttemptTimeout {
		return fmt.Errorf("probe_timeout must not exceed attempt_timeout")
	}
	if t.Backoff < 0 {
		return fmt.Errorf("backoff must be non-negative")
	}
	if strings.TrimSpace(t.TargetLanguage) == "" {
		return fmt.Errorf("target_language is required")
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be non-negative")
	}
	if c.HTTP.BreakerThreshold < 0 {
		return fmt.Errorf("breaker_threshold must be non-negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console", "pretty":
	default:
		return fmt.Errorf("log format must be json, console or pretty, got %q", c.Log.Format)
	}
	if c.Tools.YtdlpTimeout <= 0 || c.Tools.FfmpegTimeout <= 0 || c.Tools.SpeechTimeout <= 0 {
		return fmt.Errorf("tool timeouts must be positive")
	}
	return nil
}
