// Package translate implements dubber's resilient translation service: a
// remote translator wrapped with a persistent cache, bounded linear-backoff
// retries and an offline fallback chain (cache, phrase dictionary, idiom
// table, marked passthrough).
package translate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"dubber/cache"
	"dubber/dictionary"
	"dubber/i18n"
	"dubber/internal/retry"
	"dubber/logging"
	"dubber/textproc"
)

// Remote is the remote translation endpoint.
type Remote interface {
	// Translate returns the translation of req.Text. Failures should be
	// *Error values tagged with a Kind.
	Translate(ctx context.Context, req Request) (string, error)
	// IsReachable is a cheap health probe with its own short timeout.
	IsReachable(ctx context.Context) bool
	// Languages lists the languages the endpoint supports.
	Languages(ctx context.Context) ([]Language, error)
}

// ProgressFunc receives completion fractions in [0, 1].
type ProgressFunc func(fraction float64)

const (
	DefaultMaxRetries     = 3
	DefaultAttemptTimeout = 10 * time.Second
	DefaultBackoff        = 1 * time.Second
	DefaultSourceLanguage = "en"
	DefaultTargetLanguage = "tr"
)

// Config configures a Service. Zero fields take the defaults above; nil
// collaborators get the built-in tables, an in-memory cache and a no-op
// logger. OfflineMode has no default here: callers choose it explicitly.
type Config struct {
	Remote      Remote
	Cache       *cache.Cache
	Phrases     *dictionary.PhraseDictionary
	Pipeline    *textproc.Pipeline
	Catalog     *i18n.Catalog
	Logger      logging.Logger
	OfflineMode bool

	// MaxRetries is the total number of remote attempts per text.
	MaxRetries     int
	AttemptTimeout time.Duration
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration

	// EnhancedSource and EnhancedTarget select the pair that gets the
	// text transforms and dictionary fallback.
	EnhancedSource string
	EnhancedTarget string

	// Now stamps results. Defaults to time.Now.
	Now func() time.Time
}

// Service is safe for concurrent use.
type Service struct {
	remote   Remote
	cache    *cache.Cache
	phrases  *dictionary.PhraseDictionary
	pipeline *textproc.Pipeline
	catalog  *i18n.Catalog
	logger   logging.Logger
	offline  bool

	maxRetries     int
	attemptTimeout time.Duration
	backoff        time.Duration
	enhancedSource string
	enhancedTarget string
	now            func() time.Time
}

// New validates cfg and returns a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Remote == nil {
		return nil, NewError(KindInvalidRequest, "translate.New", errors.New("remote translator is required"))
	}
	s := &Service{
		remote:         cfg.Remote,
		cache:          cfg.Cache,
		phrases:        cfg.Phrases,
		pipeline:       cfg.Pipeline,
		catalog:        cfg.Catalog,
		logger:         logging.OrNoOp(cfg.Logger),
		offline:        cfg.OfflineMode,
		maxRetries:     cfg.MaxRetries,
		attemptTimeout: cfg.AttemptTimeout,
		backoff:        cfg.Backoff,
		enhancedSource: i18n.PrimaryTag(cfg.EnhancedSource),
		enhancedTarget: i18n.PrimaryTag(cfg.EnhancedTarget),
		now:            cfg.Now,
	}
	if s.cache == nil {
		s.cache = cache.New(cache.Config{Logger: s.logger})
	}
	if s.phrases == nil {
		s.phrases = dictionary.DefaultPhrases()
	}
	if s.pipeline == nil {
		s.pipeline = textproc.Default()
	}
	if s.catalog == nil {
		s.catalog = i18n.NewCatalog()
	}
	if s.maxRetries <= 0 {
		s.maxRetries = DefaultMaxRetries
	}
	if s.attemptTimeout <= 0 {
		s.attemptTimeout = DefaultAttemptTimeout
	}
	if s.backoff < 0 {
		s.backoff = 0
	} else if s.backoff == 0 {
		s.backoff = DefaultBackoff
	}
	if s.enhancedSource == "" {
		s.enhancedSource = DefaultSourceLanguage
	}
	if s.enhancedTarget == "" {
		s.enhancedTarget = DefaultTargetLanguage
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// OfflineMode reports whether failures degrade to the offline fallback.
func (s *Service) OfflineMode() bool { return s.offline }

// CacheStatistics returns the cache's size, language pairs and hit counters.
func (s *Service) CacheStatistics() cache.Stats {
	return s.cache.Stats()
}

// ClearCache empties the cache and deletes its file.
func (s *Service) ClearCache(ctx context.Context) {
	s.cache.Clear(ctx)
	s.logger.Info("translation cache cleared")
}

// SupportedLanguages asks the remote endpoint for its languages.
func (s *Service) SupportedLanguages(ctx context.Context) ([]Language, error) {
	return s.remote.Languages(ctx)
}

// Close flushes the cache.
func (s *Service) Close() error {
	return s.cache.Close()
}

// TranslateText translates one text. On the enhanced pair idioms are
// tagged before the cache lookup and resolved after translation.
func (s *Service) TranslateText(ctx context.Context, text string, opts Options) (Result, error) {
	req, err := s.normalize(opts.Request(text))
	if err != nil {
		return Result{}, err
	}
	p := s.plainPass(req)
	translated, origin, err := s.translateOne(ctx, "translate.TranslateText", req, p)
	if err != nil {
		return Result{}, err
	}
	return s.result(req, translated, origin, nil), nil
}

// pass bundles the transforms applied around the remote call.
type pass struct {
	pre  func(string) string
	post func(string) string
	// onPreprocessed is called once pre has run.
	onPreprocessed func()
	// onAttemptFailed is called after each failed remote attempt (1-based).
	onAttemptFailed func(attempt, max int)
}

func identity(s string) string { return s }

func (s *Service) enhancedPair(req Request) bool {
	return req.SourceLanguage == s.enhancedSource && req.TargetLanguage == s.enhancedTarget
}

func (s *Service) plainPass(req Request) pass {
	if !s.enhancedPair(req) {
		return pass{pre: identity, post: identity}
	}
	return pass{pre: s.pipeline.TagIdioms, post: s.pipeline.ResolvePlaceholders}
}

func (s *Service) fullPass(req Request) pass {
	if !s.enhancedPair(req) {
		return pass{pre: identity, post: identity}
	}
	return pass{pre: s.pipeline.PreProcess, post: s.pipeline.PostProcess}
}

// normalize reduces language tags to primary subtags and checks the target.
func (s *Service) normalize(req Request) (Request, error) {
	req.SourceLanguage = i18n.PrimaryTag(req.SourceLanguage)
	req.TargetLanguage = i18n.PrimaryTag(req.TargetLanguage)
	if req.SourceLanguage == "" {
		req.SourceLanguage = "auto"
	}
	if req.TargetLanguage == "" {
		return req, &Error{Kind: KindInvalidRequest, Op: "translate", Text: req.Text,
			SourceLanguage: req.SourceLanguage, Err: errors.New("target language is required")}
	}
	return req, nil
}

// translateOne runs the single-text state machine: cache, remote attempts,
// then the offline fallback or a wrapped error.
func (s *Service) translateOne(ctx context.Context, op string, req Request, p pass) (string, Origin, error) {
	if err := ctx.Err(); err != nil {
		return "", "", s.wrap(op, req, KindCancelled, err)
	}
	if strings.TrimSpace(req.Text) == "" {
		if p.onPreprocessed != nil {
			p.onPreprocessed()
		}
		return req.Text, OriginPassthrough, nil
	}

	tagged := p.pre(req.Text)
	if p.onPreprocessed != nil {
		p.onPreprocessed()
	}
	translated, origin, err := s.remoteOrCache(ctx, req, tagged, p)
	if err == nil {
		return translated, origin, nil
	}

	kind := KindOf(err)
	if kind == KindCancelled || !s.offline {
		return "", "", s.failure(op, req, err)
	}

	s.logger.Info("remote translation failed, using offline fallback",
		"source", req.SourceLanguage, "target", req.TargetLanguage, "kind", kind.String(), "error", err)
	text, origin := s.fallback(req, tagged, p)
	return text, origin, nil
}

// remoteOrCache checks the cache and then tries the remote endpoint up to
// maxRetries times. It never falls back; the caller decides. The cache holds
// raw remote output so each pass applies its own post-processing on a hit.
func (s *Service) remoteOrCache(ctx context.Context, req Request, tagged string, p pass) (string, Origin, error) {
	if v, ok := s.cache.Get(req.SourceLanguage, req.TargetLanguage, tagged); ok {
		return p.post(v), OriginCache, nil
	}

	remoteReq := req
	remoteReq.Text = tagged

	var raw string
	attempt := 0
	cfg := retry.Config{
		MaxRetries:     s.maxRetries - 1,
		InitialBackoff: s.backoff,
		Strategy:       retry.Linear,
	}
	err := retry.Do(ctx, cfg, func(err error) bool { return KindOf(err).Retryable() }, func(ctx context.Context) error {
		attempt++
		out, err := s.attempt(ctx, remoteReq)
		if err != nil {
			s.logger.Warn("translation attempt failed",
				"attempt", attempt, "max", s.maxRetries, "source", req.SourceLanguage,
				"target", req.TargetLanguage, "kind", KindOf(err).String(), "error", err)
			if KindOf(err) != KindCancelled && p.onAttemptFailed != nil {
				p.onAttemptFailed(attempt, s.maxRetries)
			}
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", "", NewError(KindCancelled, "translate.remote", ctxErr)
		}
		return "", "", err
	}

	s.cache.Put(req.SourceLanguage, req.TargetLanguage, tagged, raw)
	return p.post(raw), OriginRemote, nil
}

// attempt makes one remote call under the per-attempt timeout. A caller
// cancellation is reported as KindCancelled and an expired attempt as
// KindTimeout, whatever the remote returned.
func (s *Service) attempt(ctx context.Context, req Request) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.attemptTimeout)
	defer cancel()

	out, err := s.remote.Translate(attemptCtx, req)
	if err == nil {
		if strings.TrimSpace(out) == "" {
			return "", NewError(KindBadResponse, "translate.remote", errors.New("empty translation"))
		}
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", NewError(KindCancelled, "translate.remote", errors.Join(ctxErr, err))
	}
	if attemptCtx.Err() != nil {
		return "", NewError(KindTimeout, "translate.remote", err)
	}
	if KindOf(err) == KindCancelled {
		// The remote saw a cancellation the caller did not request.
		return "", NewError(KindNetwork, "translate.remote", err)
	}
	return "", err
}

// fallback produces a degraded translation without the remote endpoint.
// Only idioms are substituted; phrasal verbs alone would leave a
// half-translated sentence, so such text gets the marker instead.
func (s *Service) fallback(req Request, tagged string, p pass) (string, Origin) {
	if v, ok := s.cache.Get(req.SourceLanguage, req.TargetLanguage, tagged); ok {
		return p.post(v), OriginCache
	}
	if s.enhancedPair(req) {
		if v, ok := s.phrases.Lookup(req.Text); ok {
			return v, OriginDictionary
		}
		if substituted := s.pipeline.Idioms().Substitute(req.Text); substituted != req.Text {
			return p.post(substituted), OriginIdiom
		}
	}
	return req.Text + " " + s.catalog.OfflineMarker(req.TargetLanguage), OriginMarker
}

// failure wraps a remote failure for the caller. Exhausted retries become
// KindOfflineUnavailable; other failures keep their kind.
func (s *Service) failure(op string, req Request, err error) error {
	var exhausted *retry.RetryableError
	if errors.As(err, &exhausted) && KindOf(err) != KindCancelled {
		return s.wrap(op, req, KindOfflineUnavailable, exhausted.Err)
	}
	return s.wrap(op, req, KindOf(err), err)
}

func (s *Service) wrap(op string, req Request, kind Kind, err error) error {
	return &Error{
		Kind:           kind,
		Op:             op,
		Text:           req.Text,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Err:            err,
	}
}

func (s *Service) result(req Request, translated string, origin Origin, segments []Segment) Result {
	return Result{
		ID:             uuid.NewString(),
		SourceText:     req.Text,
		TranslatedText: translated,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Timestamp:      s.now(),
		Segments:       segments,
		Origin:         origin,
	}
}
