package translate

import (
	"fmt"
	"strings"
	"time"
)

// Param is one custom request parameter forwarded to the remote endpoint.
type Param struct {
	Key   string
	Value string
}

// Params keeps custom parameters in insertion order.
type Params []Param

// Get returns the value for key.
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// With returns a copy of p with key set, replacing an existing value in place.
func (p Params) With(key, value string) Params {
	out := make(Params, 0, len(p)+1)
	replaced := false
	for _, kv := range p {
		if kv.Key == key {
			kv.Value = value
			replaced = true
		}
		out = append(out, kv)
	}
	if !replaced {
		out = append(out, Param{Key: key, Value: value})
	}
	return out
}

// Request is a single translation call. It is not modified by the service.
type Request struct {
	Text             string
	SourceLanguage   string
	TargetLanguage   string
	APIKey           string
	CustomParameters Params
}

// Options carries the per-call settings shared by every text of a batch.
type Options struct {
	SourceLanguage   string
	TargetLanguage   string
	APIKey           string
	CustomParameters Params
}

// Request builds the request for text.
func (o Options) Request(text string) Request {
	return Request{
		Text:             text,
		SourceLanguage:   o.SourceLanguage,
		TargetLanguage:   o.TargetLanguage,
		APIKey:           o.APIKey,
		CustomParameters: o.CustomParameters,
	}
}

// Origin records where a translation came from.
type Origin string

const (
	OriginRemote      Origin = "remote"
	OriginCache       Origin = "cache"
	OriginDictionary  Origin = "dictionary"
	OriginIdiom       Origin = "idiom"
	OriginMarker      Origin = "marker"
	OriginPassthrough Origin = "passthrough"
)

// Degraded reports whether the text did not come from the remote service
// or a previous remote result.
func (o Origin) Degraded() bool {
	return o == OriginDictionary || o == OriginIdiom || o == OriginMarker
}

func (o Origin) rank() int {
	switch o {
	case OriginRemote:
		return 1
	case OriginCache:
		return 2
	case OriginDictionary:
		return 3
	case OriginIdiom:
		return 4
	case OriginMarker:
		return 5
	default:
		return 0
	}
}

// weakest returns the lower-quality origin of a and b.
func weakest(a, b Origin) Origin {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Segment is one translated, time-bounded span. Times are copied unchanged
// from the source transcription segment.
type Segment struct {
	SourceText       string  `json:"source_text"`
	TranslatedText   string  `json:"translated_text"`
	StartTime        float64 `json:"start_time"`
	EndTime          float64 `json:"end_time"`
	SourceConfidence float64 `json:"source_confidence"`
}

// TranscriptionSegment is the speech-recognition output consumed by
// TranslateSegments.
type TranscriptionSegment struct {
	Text       string  `json:"text"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Confidence float64 `json:"confidence"`
}

// Result is the outcome of a translation call. When Segments is non-nil it
// mirrors the source segments one to one and TranslatedText is their
// space-joined translations.
type Result struct {
	ID             string    `json:"id"`
	SourceText     string    `json:"source_text"`
	TranslatedText string    `json:"translated_text"`
	SourceLanguage string    `json:"source_language"`
	TargetLanguage string    `json:"target_language"`
	Timestamp      time.Time `json:"timestamp"`
	Segments       []Segment `json:"segments,omitempty"`
	Origin         Origin    `json:"origin"`
}

// Validate checks the segment invariants: start <= end, non-decreasing
// start times, and TranslatedText equal to the joined segment texts.
func (r Result) Validate() error {
	if r.Segments == nil {
		return nil
	}
	parts := make([]string, len(r.Segments))
	for i, seg := range r.Segments {
		if seg.StartTime > seg.EndTime {
			return fmt.Errorf("segment %d: start %.3f after end %.3f", i, seg.StartTime, seg.EndTime)
		}
		if i > 0 && seg.StartTime < r.Segments[i-1].StartTime {
			return fmt.Errorf("segment %d: start %.3f before previous start %.3f", i, seg.StartTime, r.Segments[i-1].StartTime)
		}
		parts[i] = seg.TranslatedText
	}
	if joined := strings.Join(parts, " "); joined != r.TranslatedText {
		return fmt.Errorf("translated text does not match joined segments")
	}
	return nil
}

// Language is one entry of the remote endpoint's language list.
type Language struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Targets []string `json:"targets,omitempty"`
}
