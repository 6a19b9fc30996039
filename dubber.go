package dubber

import (
	"context"
	"fmt"

	"dubber/cache"
	"dubber/config"
	httpclient "dubber/http"
	"dubber/libretranslate"
	"dubber/logging"
	"dubber/media"
	"dubber/pipeline"
	"dubber/speech"
	"dubber/storage"
	"dubber/translate"
	"dubber/youtube"
)

// Translator is a translate.Service wired from configuration together with
// the transport and cache it owns.
type Translator struct {
	*translate.Service
	Remote *libretranslate.Client

	http *httpclient.Client
}

// HTTPConfig maps cfg's transport settings onto an HTTP client
// configuration. Transport retries stay disabled; the translation service
// owns the retry policy.
func HTTPConfig(cfg *config.Config) *httpclient.Config {
	hc := httpclient.DefaultConfig()
	if cfg.HTTP.UserAgent != "" {
		hc.UserAgent = cfg.HTTP.UserAgent
	}
	hc.RateLimiter.DefaultRPS = cfg.HTTP.RateLimit
	if cfg.HTTP.Burst > 0 {
		hc.RateLimiter.Burst = cfg.HTTP.Burst
	}
	if cfg.HTTP.BreakerThreshold > 0 {
		hc.CircuitBreaker.FailureThreshold = cfg.HTTP.BreakerThreshold
	}
	if cfg.HTTP.BreakerRecovery > 0 {
		hc.CircuitBreaker.RecoveryTimeout = cfg.HTTP.BreakerRecovery
	}
	return hc
}

// NewTranslator builds the translation stack described by cfg and loads
// the persistent cache. A nil cfg uses config.DefaultConfig; a nil provider
// discards logs. Close the Translator to flush the cache.
func NewTranslator(ctx context.Context, cfg *config.Config, provider logging.LoggerProvider) (*Translator, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	var store storage.KeyValueStore
	if cfg.Cache.Path != "" {
		js, err := storage.NewJSONStore(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("open translation cache: %w", err)
		}
		store = js
	}
	c := cache.New(cache.Config{
		Store:      store,
		Logger:     logging.Named(provider, "cache"),
		FlushEvery: cfg.Cache.FlushEvery,
	})
	c.Load(ctx)

	hc := httpclient.New(HTTPConfig(cfg))
	remote := libretranslate.New(libretranslate.Config{
		BaseURL:      cfg.Translation.BaseURL,
		APIKey:       cfg.Translation.APIKey,
		Timeout:      cfg.Translation.AttemptTimeout,
		ProbeTimeout: cfg.Translation.ProbeTimeout,
		HTTP:         hc,
		Logger:       logging.Named(provider, "libretranslate"),
	})

	svc, err := translate.New(translate.Config{
		Remote:         remote,
		Cache:          c,
		Logger:         logging.Named(provider, "translate"),
		OfflineMode:    cfg.Translation.OfflineMode,
		MaxRetries:     cfg.Translation.MaxRetries,
		AttemptTimeout: cfg.Translation.AttemptTimeout,
		Backoff:        cfg.Translation.Backoff,
	})
	if err != nil {
		hc.Close()
		return nil, err
	}
	return &Translator{Service: svc, Remote: remote, http: hc}, nil
}

// Options returns the configured default language pair and API key.
func Options(cfg *config.Config) translate.Options {
	return translate.Options{
		SourceLanguage: cfg.Translation.SourceLanguage,
		TargetLanguage: cfg.Translation.TargetLanguage,
		APIKey:         cfg.Translation.APIKey,
	}
}

// Close flushes the cache and releases idle connections.
func (t *Translator) Close() error {
	err := t.Service.Close()
	t.http.Close()
	return err
}

// NewRunner wires the pipeline's external tools from cfg around tr. Speech
// recognition is enabled when a whisper model is configured and dubbing
// when a piper voice is; without them the runner can still produce
// subtitles from existing captions.
func NewRunner(cfg *config.Config, tr pipeline.Translator, provider logging.LoggerProvider, onEvent func(pipeline.Event)) (*pipeline.Runner, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	tools := cfg.Tools
	ff := &media.FFmpeg{
		Path:    tools.FfmpegPath,
		Timeout: tools.FfmpegTimeout,
		Logger:  logging.Named(provider, "ffmpeg"),
	}
	pc := pipeline.Config{
		Downloader: &youtube.Downloader{
			YtdlpPath: tools.YtdlpPath,
			Timeout:   tools.YtdlpTimeout,
			Logger:    logging.Named(provider, "youtube"),
		},
		Captions:   youtube.NewCaptionClient(nil, "", logging.Named(provider, "captions")),
		Extractor:  ff,
		Translator: tr,
		WorkDir:    tools.WorkDir,
		Logger:     logging.Named(provider, "pipeline"),
		OnEvent:    onEvent,
	}
	if tools.WhisperModel != "" {
		pc.Transcriber = &speech.Whisper{
			Path:      tools.WhisperPath,
			ModelPath: tools.WhisperModel,
			Timeout:   tools.SpeechTimeout,
			Logger:    logging.Named(provider, "whisper"),
		}
	}
	if tools.PiperModel != "" {
		pc.Synthesizer = &speech.Piper{
			Path:      tools.PiperPath,
			ModelPath: tools.PiperModel,
			Timeout:   tools.SpeechTimeout,
			Logger:    logging.Named(provider, "piper"),
		}
		pc.Mixer = ff
	}
	return pipeline.New(pc)
}
