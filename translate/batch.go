package translate

import (
	"context"
	"strings"
)

// TranslateTexts translates texts in order. Reachability is probed once: an
// unreachable endpoint with offline mode on sends every text straight to
// the offline fallback. With offline mode off the first failure aborts the
// batch.
func (s *Service) TranslateTexts(ctx context.Context, texts []string, opts Options) ([]Result, error) {
	const op = "translate.TranslateTexts"
	results := make([]Result, 0, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	reachable := s.remote.IsReachable(ctx)
	if err := ctx.Err(); err != nil {
		return nil, s.wrap(op, opts.Request(""), KindCancelled, err)
	}
	offline := !reachable && s.offline
	if offline {
		s.logger.Warn("translation endpoint unreachable, batch uses offline fallback", "texts", len(texts))
	}

	for _, text := range texts {
		req, err := s.normalize(opts.Request(text))
		if err != nil {
			return nil, err
		}
		p := s.plainPass(req)

		var (
			translated string
			origin     Origin
		)
		if offline {
			translated, origin, err = s.offlineOne(ctx, op, req, p)
		} else {
			translated, origin, err = s.translateOne(ctx, op, req, p)
		}
		if err != nil {
			if KindOf(err) == KindCancelled || !s.offline {
				return nil, err
			}
			translated, origin = s.fallback(req, p.pre(req.Text), p)
		}
		results = append(results, s.result(req, translated, origin, nil))
	}
	return results, nil
}

// offlineOne resolves a text without touching the remote endpoint.
func (s *Service) offlineOne(ctx context.Context, op string, req Request, p pass) (string, Origin, error) {
	if err := ctx.Err(); err != nil {
		return "", "", s.wrap(op, req, KindCancelled, err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return req.Text, OriginPassthrough, nil
	}
	text, origin := s.fallback(req, p.pre(req.Text), p)
	return text, origin, nil
}

// TranslateSegments translates transcription segments in order, keeping
// their timing. onProgress receives completed/total after each segment.
// Reachability is probed once; when a segment's remote translation fails
// with offline mode on, the remaining segments go straight to the offline
// fallback.
func (s *Service) TranslateSegments(ctx context.Context, segments []TranscriptionSegment, opts Options, onProgress ProgressFunc) (Result, error) {
	const op = "translate.TranslateSegments"
	report := progressReporter(onProgress)

	sources := make([]string, len(segments))
	for i, seg := range segments {
		sources[i] = seg.Text
	}
	req, err := s.normalize(opts.Request(strings.Join(sources, " ")))
	if err != nil {
		return Result{}, err
	}
	out := make([]Segment, 0, len(segments))
	if len(segments) == 0 {
		report(1)
		return s.result(req, "", OriginPassthrough, out), nil
	}

	reachable := s.remote.IsReachable(ctx)
	if err := ctx.Err(); err != nil {
		return Result{}, s.wrap(op, req, KindCancelled, err)
	}
	offline := !reachable && s.offline

	translations := make([]string, len(segments))
	aggregate := OriginPassthrough
	for i, seg := range segments {
		segReq := req
		segReq.Text = seg.Text
		p := s.plainPass(segReq)

		translated, origin, err := s.segment(ctx, op, segReq, p, offline)
		if err != nil {
			if KindOf(err) == KindCancelled || !s.offline {
				return Result{}, err
			}
			if !offline {
				s.logger.Warn("segment translation failed, remaining segments use offline fallback",
					"segment", i, "total", len(segments), "error", err)
			}
			offline = true
			translated, origin = s.fallback(segReq, p.pre(segReq.Text), p)
		}

		translations[i] = translated
		aggregate = weakest(aggregate, origin)
		out = append(out, Segment{
			SourceText:       seg.Text,
			TranslatedText:   translated,
			StartTime:        seg.StartTime,
			EndTime:          seg.EndTime,
			SourceConfidence: seg.Confidence,
		})
		report(float64(i+1) / float64(len(segments)))
	}

	return s.result(req, strings.Join(translations, " "), aggregate, out), nil
}

// segment is translateOne without the built-in fallback, so a remote
// failure can switch the rest of the call to offline.
func (s *Service) segment(ctx context.Context, op string, req Request, p pass, offline bool) (string, Origin, error) {
	if offline {
		return s.offlineOne(ctx, op, req, p)
	}
	if err := ctx.Err(); err != nil {
		return "", "", s.wrap(op, req, KindCancelled, err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return req.Text, OriginPassthrough, nil
	}
	translated, origin, err := s.remoteOrCache(ctx, req, p.pre(req.Text), p)
	if err != nil {
		return "", "", s.failure(op, req, err)
	}
	return translated, origin, nil
}

// TranslateTextEnhanced runs the full text transform pipeline around the
// single-text path. onProgress receives 0.1 after pre-processing,
// 0.1+0.7·attempt/max after each failed attempt, 0.9 once a translation is
// available and 1.0 on completion.
func (s *Service) TranslateTextEnhanced(ctx context.Context, text string, opts Options, onProgress ProgressFunc) (Result, error) {
	report := progressReporter(onProgress)

	req, err := s.normalize(opts.Request(text))
	if err != nil {
		return Result{}, err
	}
	p := s.fullPass(req)
	p.onPreprocessed = func() { report(0.1) }
	p.onAttemptFailed = func(attempt, max int) {
		report(0.1 + 0.7*float64(attempt)/float64(max))
	}

	translated, origin, err := s.translateOne(ctx, "translate.TranslateTextEnhanced", req, p)
	if err != nil {
		return Result{}, err
	}
	report(0.9)
	res := s.result(req, translated, origin, nil)
	report(1)
	return res, nil
}

func progressReporter(fn ProgressFunc) ProgressFunc {
	if fn == nil {
		return func(float64) {}
	}
	return fn
}
