package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate runs the test in an empty directory with no config in $HOME.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	for _, kv := range os.Environ() {
		if k, _, _ := strings.Cut(kv, "="); strings.HasPrefix(k, "DUBBER_") {
			t.Setenv(k, "")
		}
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Translation.OfflineMode {
		t.Error("OfflineMode default = false, want true")
	}
	if cfg.Translation.MaxRetries != 3 || cfg.Translation.AttemptTimeout != 10*time.Second || cfg.Translation.ProbeTimeout != 3*time.Second {
		t.Errorf("Translation defaults = %+v", cfg.Translation)
	}
	if cfg.Translation.SourceLanguage != "en" || cfg.Translation.TargetLanguage != "tr" {
		t.Errorf("language defaults = %s→%s", cfg.Translation.SourceLanguage, cfg.Translation.TargetLanguage)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := isolate(t)
	yml := `
translation:
  base_url: http://localhost:5000
  offline_mode: false
  max_retries: 5
  attempt_timeout: 4s
  probe_timeout: 1500ms
cache:
  path: /tmp/dubber-cache.json
  flush_every: 25
log:
  level: debug
  format: json
`
	if err := os.WriteFile(filepath.Join(dir, "dubber.yaml"), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	tr := cfg.Translation
	if tr.BaseURL != "http://localhost:5000" || tr.OfflineMode || tr.MaxRetries != 5 {
		t.Errorf("Translation = %+v", tr)
	}
	if tr.AttemptTimeout != 4*time.Second || tr.ProbeTimeout != 1500*time.Millisecond {
		t.Errorf("timeouts = %v, %v", tr.AttemptTimeout, tr.ProbeTimeout)
	}
	if tr.Backoff != time.Second {
		t.Errorf("Backoff = %v, want default 1s", tr.Backoff)
	}
	if cfg.Cache.Path != "/tmp/dubber-cache.json" || cfg.Cache.FlushEvery != 25 {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoadJSONFromHome(t *testing.T) {
	isolate(t)
	dir := filepath.Join(os.Getenv("HOME"), ".config", "dubber")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	js := `{"translation": {"api_key": "secret", "backoff": "250ms"}, "tools": {"ffmpeg_path": "/opt/ffmpeg"}}`
	if err := os.WriteFile(filepath.Join(dir, "dubber.json"), []byte(js), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Translation.APIKey != "secret" || cfg.Translation.Backoff != 250*time.Millisecond {
		t.Errorf("Translation = %+v", cfg.Translation)
	}
	if cfg.Tools.FfmpegPath != "/opt/ffmpeg" {
		t.Errorf("FfmpegPath = %q", cfg.Tools.FfmpegPath)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	os.WriteFile(filepath.Join(dir, "dubber.yml"), []byte("translation:\n  max_retries: 7\n"), 0o644)
	t.Setenv("DUBBER_MAX_RETRIES", "2")
	t.Setenv("DUBBER_OFFLINE_MODE", "false")
	t.Setenv("DUBBER_ATTEMPT_TIMEOUT", "20s")
	t.Setenv("DUBBER_RATE_LIMIT", "0")
	t.Setenv("DUBBER_BACKOFF", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Translation.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want env value 2", cfg.Translation.MaxRetries)
	}
	if cfg.Translation.OfflineMode {
		t.Error("OfflineMode = true, want env value false")
	}
	if cfg.Translation.AttemptTimeout != 20*time.Second {
		t.Errorf("AttemptTimeout = %v", cfg.Translation.AttemptTimeout)
	}
	if cfg.HTTP.RateLimit != 0 {
		t.Errorf("RateLimit = %v", cfg.HTTP.RateLimit)
	}
	if cfg.Translation.Backoff != time.Second {
		t.Errorf("Backoff = %v, invalid env value should be ignored", cfg.Translation.Backoff)
	}
}

func TestSpeechToolsFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("DUBBER_WHISPER_MODEL", "/models/ggml-base.en.bin")
	t.Setenv("DUBBER_PIPER_MODEL", "/voices/tr_TR-dfki-medium.onnx")
	t.Setenv("DUBBER_SPEECH_TIMEOUT", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	tools := cfg.Tools
	if tools.WhisperPath != "whisper-cli" || tools.PiperPath != "piper" {
		t.Errorf("engine paths = %q, %q, want defaults", tools.WhisperPath, tools.PiperPath)
	}
	if tools.WhisperModel != "/models/ggml-base.en.bin" || tools.PiperModel != "/voices/tr_TR-dfki-medium.onnx" {
		t.Errorf("models = %q, %q", tools.WhisperModel, tools.PiperModel)
	}
	if tools.SpeechTimeout != 5*time.Minute {
		t.Errorf("SpeechTimeout = %v", tools.SpeechTimeout)
	}
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile() on a missing file returned nil error")
	}

	path := filepath.Join(t.TempDir(), "custom.yaml")
	os.WriteFile(path, []byte("translation:\n  target_language: de\n"), 0o644)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Translation.TargetLanguage != "de" {
		t.Errorf("TargetLanguage = %q", cfg.Translation.TargetLanguage)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := isolate(t)
	os.WriteFile(filepath.Join(dir, "dubber.yaml"), []byte("translation: [unclosed"), 0o644)

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "dubber.yaml") {
		t.Errorf("Load() error = %v, want parse error naming the file", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"relative url", func(c *Config) { c.Translation.BaseURL = "localhost:5000" }, "base_url"},
		{"zero retries", func(c *Config) { c.Translation.MaxRetries = 0 }, "max_retries"},
		{"zero attempt timeout", func(c *Config) { c.Translation.AttemptTimeout = 0 }, "attempt_timeout"},
		{"probe longer than attempt", func(c *Config) { c.Translation.ProbeTimeout = time.Minute }, "probe_timeout"},
		{"negative backoff", func(c *Config) { c.Translation.Backoff = -time.Second }, "backoff"},
		{"no target", func(c *Config) { c.Translation.TargetLanguage = " " }, "target_language"},
		{"negative rate", func(c *Config) { c.HTTP.RateLimit = -1 }, "rate_limit"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"zero tool timeout", func(c *Config) { c.Tools.FfmpegTimeout = 0 }, "tool timeouts"},
		{"zero speech timeout", func(c *Config) { c.Tools.SpeechTimeout = 0 }, "tool timeouts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
