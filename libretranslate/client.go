// Package libretranslate is a client for LibreTranslate-compatible
// translation endpoints. It implements translate.Remote.
package libretranslate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	httpclient "dubber/http"
	"dubber/i18n"
	"dubber/logging"
	"dubber/translate"
)

const (
	DefaultBaseURL      = "https://libretranslate.com"
	DefaultTimeout      = 10 * time.Second
	DefaultProbeTimeout = 3 * time.Second
)

// reserved keys are set by the client and never taken from custom parameters.
var reserved = map[string]bool{"q": true, "source": true, "target": true, "format": true, "api_key": true}

// Config configures a Client.
type Config struct {
	BaseURL string
	// APIKey is sent when a request does not carry its own.
	APIKey       string
	Timeout      time.Duration
	ProbeTimeout time.Duration
	// HTTP is the shared transport. Its retries should be disabled; the
	// translation service owns the retry policy.
	HTTP   *httpclient.Client
	Logger logging.Logger
}

// Client talks to one LibreTranslate endpoint.
type Client struct {
	baseURL      string
	apiKey       string
	timeout      time.Duration
	probeTimeout time.Duration
	http         *httpclient.Client
	logger       logging.Logger
}

var _ translate.Remote = (*Client)(nil)

// New returns a Client for cfg.BaseURL.
func New(cfg Config) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:       cfg.APIKey,
		timeout:      cfg.Timeout,
		probeTimeout: cfg.ProbeTimeout,
		http:         cfg.HTTP,
		logger:       logging.OrNoOp(cfg.Logger),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.probeTimeout <= 0 {
		c.probeTimeout = DefaultProbeTimeout
	}
	if c.http == nil {
		c.http = httpclient.New(nil)
	}
	return c
}

// BaseURL returns the endpoint root.
func (c *Client) BaseURL() string { return c.baseURL }

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

// Translate POSTs req to {base}/translate and returns the translated text.
func (c *Client) Translate(ctx context.Context, req translate.Request) (string, error) {
	const op = "libretranslate.Translate"
	body, err := c.payload(req)
	if err != nil {
		return "", c.fail(op, req, translate.KindInvalidRequest, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.Do(callCtx, http.MethodPost, c.baseURL+"/translate", body, map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	})
	if err != nil {
		return "", c.fail(op, req, classify(ctx, callCtx, err), err)
	}

	var out translateResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", c.fail(op, req, translate.KindBadResponse, fmt.Errorf("decode response: %w", err))
	}
	if out.Error != "" {
		return "", c.fail(op, req, translate.KindBadResponse, errors.New(out.Error))
	}
	if strings.TrimSpace(out.TranslatedText) == "" {
		return "", c.fail(op, req, translate.KindBadResponse, errors.New("empty translatedText"))
	}

	c.logger.Debug("translated", "source", req.SourceLanguage, "target", req.TargetLanguage, "chars", len(req.Text))
	return out.TranslatedText, nil
}

// payload encodes req with keys in a fixed order: q, source, target,
// format, api_key, then custom parameters as given.
func (c *Client) payload(req translate.Request) ([]byte, error) {
	source := i18n.PrimaryTag(req.SourceLanguage)
	if source == "" {
		source = "auto"
	}
	target := i18n.PrimaryTag(req.TargetLanguage)
	if target == "" {
		return nil, errors.New("target language is required")
	}
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = c.apiKey
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	n := 0
	write := func(key, value string) error {
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		n++
		return nil
	}

	fields := [][2]string{{"q", req.Text}, {"source", source}, {"target", target}, {"format", "text"}}
	if apiKey != "" {
		fields = append(fields, [2]string{"api_key", apiKey})
	}
	for _, p := range req.CustomParameters {
		if p.Key == "" || reserved[p.Key] {
			continue
		}
		fields = append(fields, [2]string{p.Key, p.Value})
	}
	for _, f := range fields {
		if err := write(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// IsReachable reports whether {base}/languages answers within the probe
// timeout.
func (c *Client) IsReachable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	if _, err := c.http.Get(probeCtx, c.baseURL+"/languages"); err != nil {
		c.logger.Debug("translation endpoint unreachable", "url", c.baseURL, "error", err)
		return false
	}
	return true
}

// Languages lists the endpoint's supported languages.
func (c *Client) Languages(ctx context.Context) ([]translate.Language, error) {
	const op = "libretranslate.Languages"
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.Get(callCtx, c.baseURL+"/languages")
	if err != nil {
		return nil, translate.NewError(classify(ctx, callCtx, err), op, err)
	}
	var langs []translate.Language
	if err := json.Unmarshal(resp.Body, &langs); err != nil {
		return nil, translate.NewError(translate.KindBadResponse, op, fmt.Errorf("decode languages: %w", err))
	}
	return langs, nil
}

func (c *Client) fail(op string, req translate.Request, kind translate.Kind, err error) error {
	return &translate.Error{
		Kind:           kind,
		Op:             op,
		Text:           req.Text,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Err:            err,
	}
}

// classify maps a transport error to a translation error kind. parent is
// the caller's context and call the one bounded by the client timeout.
func classify(parent, call context.Context, err error) translate.Kind {
	if parent.Err() != nil {
		return translate.KindCancelled
	}
	if call.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return translate.KindTimeout
	}

	var rle *httpclient.RateLimitError
	var he *httpclient.HTTPError
	switch {
	case errors.As(err, &rle):
		return translate.KindNetwork
	case errors.Is(err, httpclient.ErrCircuitOpen), errors.Is(err, httpclient.ErrRequestFailed):
		return translate.KindNetwork
	case errors.As(err, &he):
		if he.Temporary() {
			return translate.KindNetwork
		}
		return translate.KindBadResponse
	case errors.Is(err, context.Canceled):
		return translate.KindCancelled
	}
	return translate.KindNetwork
}
