package dubber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"dubber/config"
	"dubber/pipeline"
	"dubber/translate"
)

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Translation.BaseURL = baseURL
	cfg.Translation.Backoff = time.Millisecond
	cfg.Translation.AttemptTimeout = time.Second
	cfg.Translation.ProbeTimeout = 500 * time.Millisecond
	cfg.HTTP.RateLimit = 0
	cfg.Cache.Path = filepath.Join(t.TempDir(), "translations.json")
	cfg.Tools.WorkDir = t.TempDir()
	return cfg
}

func TestNewTranslatorPersistsCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["source"] != "en" || body["target"] != "tr" {
			t.Errorf("languages = %s→%s", body["source"], body["target"])
		}
		fmt.Fprint(w, `{"translatedText": "merhaba dünya"}`)
	}))
	cfg := testConfig(t, server.URL)
	ctx := context.Background()

	tr, err := NewTranslator(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("NewTranslator() error = %v", err)
	}
	res, err := tr.TranslateText(ctx, "hello world", Options(cfg))
	if err != nil {
		t.Fatalf("TranslateText() error = %v", err)
	}
	if res.TranslatedText != "merhaba dünya" || res.Origin != translate.OriginRemote {
		t.Errorf("TranslateText() = %q (%s)", res.TranslatedText, res.Origin)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	server.Close()

	// A fresh translator with the endpoint gone answers from the cache file.
	tr2, err := NewTranslator(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("NewTranslator() error = %v", err)
	}
	defer tr2.Close()
	if got := tr2.CacheStatistics().Entries; got != 1 {
		t.Errorf("cache size after reload = %d, want 1", got)
	}
	res, err = tr2.TranslateText(ctx, "hello world", Options(cfg))
	if err != nil {
		t.Fatalf("TranslateText() from cache error = %v", err)
	}
	if res.Origin != translate.OriginCache || res.TranslatedText != "merhaba dünya" {
		t.Errorf("TranslateText() = %q (%s), want cached", res.TranslatedText, res.Origin)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("remote calls = %d, want 1", got)
	}
}

func TestNewTranslatorOfflineFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := testConfig(t, url)
	cfg.Translation.MaxRetries = 2
	tr, err := NewTranslator(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewTranslator() error = %v", err)
	}
	defer tr.Close()

	res, err := tr.TranslateText(context.Background(), "Thank you", Options(cfg))
	if err != nil {
		t.Fatalf("TranslateText() error = %v", err)
	}
	if res.TranslatedText != "teşekkür ederim" || res.Origin != translate.OriginDictionary {
		t.Errorf("TranslateText() = %q (%s), want dictionary entry", res.TranslatedText, res.Origin)
	}

	cfg.Translation.OfflineMode = false
	strict, err := NewTranslator(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewTranslator() error = %v", err)
	}
	defer strict.Close()
	_, err = strict.TranslateText(context.Background(), "Thank you", Options(cfg))
	if !errors.Is(err, ErrOfflineUnavailable) || !errors.Is(err, ErrNetwork) {
		t.Errorf("TranslateText() error = %v, want offline unavailable", err)
	}
	if KindOf(err) != translate.KindOfflineUnavailable || IsRetryable(err) {
		t.Errorf("KindOf() = %v, IsRetryable() = %v", KindOf(err), IsRetryable(err))
	}
}

func TestHTTPConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTP.RateLimit = 2.5
	cfg.HTTP.Burst = 7
	cfg.HTTP.BreakerThreshold = 9
	cfg.HTTP.BreakerRecovery = time.Minute
	cfg.HTTP.UserAgent = "dubber-test"

	hc := HTTPConfig(cfg)
	if hc.RateLimiter.DefaultRPS != 2.5 || hc.RateLimiter.Burst != 7 {
		t.Errorf("RateLimiter = %+v", hc.RateLimiter)
	}
	if hc.CircuitBreaker.FailureThreshold != 9 || hc.CircuitBreaker.RecoveryTimeout != time.Minute {
		t.Errorf("CircuitBreaker = %+v", hc.CircuitBreaker)
	}
	if hc.UserAgent != "dubber-test" {
		t.Errorf("UserAgent = %q", hc.UserAgent)
	}
	if hc.Retry.MaxRetries != 0 {
		t.Errorf("Retry.MaxRetries = %d, want transport retries disabled", hc.Retry.MaxRetries)
	}
}

func TestNewRunnerRequiresVoiceForDubbing(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	tr, err := NewTranslator(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewTranslator() error = %v", err)
	}
	defer tr.Close()

	var events []pipeline.Event
	runner, err := NewRunner(cfg, tr, nil, func(ev pipeline.Event) { events = append(events, ev) })
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	job, err := runner.Run(context.Background(), "dQw4w9WgXcQ", pipeline.Options{TargetLanguage: "tr"})
	if !errors.Is(err, pipeline.ErrDubbingUnavailable) {
		t.Fatalf("Run() error = %v, want ErrDubbingUnavailable", err)
	}
	var serr *StageError
	if !errors.As(err, &serr) || serr.Stage != pipeline.StageQueued {
		t.Errorf("Run() error = %v, want StageError at queued", err)
	}
	if job.Stage != pipeline.StageFailed {
		t.Errorf("job.Stage = %v", job.Stage)
	}
	if len(events) == 0 || events[len(events)-1].Stage != pipeline.StageFailed {
		t.Errorf("events = %+v", events)
	}

	if _, err := runner.Run(context.Background(), "not a video", pipeline.Options{SubtitlesOnly: true}); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("Run() error = %v, want ErrInvalidURL", err)
	}
}
