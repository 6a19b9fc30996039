package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	httpclient "dubber/http"
	"dubber/logging"
	"dubber/translate"
)

// DefaultTimedtextURL is YouTube's caption endpoint.
const DefaultTimedtextURL = "https://www.youtube.com/api/timedtext"

// CaptionClient fetches captions from the timedtext API and turns them into
// transcription segments. It stands in for a speech recognizer when a video
// already has captions.
type CaptionClient struct {
	httpClient *httpclient.Client
	baseURL    string
	logger     logging.Logger
}

// NewCaptionClient creates a client. A nil httpClient gets a default one
// with a browser user agent; an empty baseURL uses DefaultTimedtextURL.
func NewCaptionClient(httpClient *httpclient.Client, baseURL string, logger logging.Logger) *CaptionClient {
	if httpClient == nil {
		cfg := httpclient.DefaultConfig()
		cfg.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
		httpClient = httpclient.New(cfg)
	}
	if baseURL == "" {
		baseURL = DefaultTimedtextURL
	}
	return &CaptionClient{httpClient: httpClient, baseURL: baseURL, logger: logging.OrNoOp(logger)}
}

// timedtextResponse is the json3 caption format.
type timedtextResponse struct {
	Events []timedtextEvent `json:"events"`
}

type timedtextEvent struct {
	TStartMs    int64              `json:"tStartMs"`
	DDurationMs int64              `json:"dDurationMs"`
	Segs        []timedtextSegment `json:"segs,omitempty"`
}

type timedtextSegment struct {
	UTF8 string `json:"utf8"`
}

// FetchCaptions returns the captions of videoID in lang as transcription
// segments ordered by start time. Creator captions are preferred; when
// automatic is set, speech-recognized captions are requested instead.
func (tc *CaptionClient) FetchCaptions(ctx context.Context, videoID, lang string, automatic bool) ([]translate.TranscriptionSegment, error) {
	if videoID == "" {
		return nil, &CaptionError{VideoID: videoID, Language: lang, Err: ErrInvalidURL}
	}
	if lang == "" {
		lang = "en"
	}

	params := url.Values{}
	params.Set("v", videoID)
	params.Set("lang", lang)
	params.Set("fmt", "json3")
	if automatic {
		params.Set("kind", "asr")
	}

	response, err := tc.httpClient.Get(ctx, tc.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, &CaptionError{VideoID: videoID, Language: lang, Err: classifyCaptionError(err)}
	}

	// YouTube answers 200 with an empty body when the track does not exist.
	if len(bytes.TrimSpace(response.Body)) == 0 {
		return nil, &CaptionError{VideoID: videoID, Language: lang, Err: ErrCaptionsNotFound}
	}

	confidence := 1.0
	if automatic {
		confidence = 0.8
	}
	segments, err := parseTimedtext(response.Body, confidence)
	if err != nil {
		return nil, &CaptionError{VideoID: videoID, Language: lang, Err: err}
	}
	if len(segments) == 0 {
		return nil, &CaptionError{VideoID: videoID, Language: lang, Err: ErrCaptionsNotFound}
	}

	last := segments[len(segments)-1]
	tc.logger.Debug("captions fetched", "video_id", videoID, "lang", lang,
		"segments", len(segments), "end", formatSeconds(last.EndTime))
	return segments, nil
}

func classifyCaptionError(err error) error {
	var httpErr *httpclient.HTTPError
	var rateErr *httpclient.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound:
		return ErrCaptionsNotFound
	case errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusForbidden:
		return ErrCaptionsDisabled
	}
	return fmt.Errorf("timedtext request failed: %w", err)
}

// parseTimedtext converts json3 events into segments. Events without text
// (window and style events) are skipped; line breaks inside an event
// become spaces.
func parseTimedtext(data []byte, confidence float64) ([]translate.TranscriptionSegment, error) {
	var resp timedtextResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse timedtext response: %w", err)
	}

	segments := make([]translate.TranscriptionSegment, 0, len(resp.Events))
	for _, event := range resp.Events {
		if len(event.Segs) == 0 {
			continue
		}
		var text strings.Builder
		for _, seg := range event.Segs {
			text.WriteString(seg.UTF8)
		}
		clean := strings.Join(strings.Fields(text.String()), " ")
		if clean == "" {
			continue
		}

		start := float64(event.TStartMs) / 1000.0
		segments = append(segments, translate.TranscriptionSegment{
			Text:       clean,
			StartTime:  start,
			EndTime:    start + float64(event.DDurationMs)/1000.0,
			Confidence: confidence,
		})
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].StartTime < segments[j].StartTime
	})
	return segments, nil
}

// Close releases idle connections.
func (tc *CaptionClient) Close() error {
	if tc.httpClient != nil {
		return tc.httpClient.Close()
	}
	return nil
}
