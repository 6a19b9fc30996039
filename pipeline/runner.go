package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dubber/logging"
	"dubber/media"
	"dubber/speech"
	"dubber/storage"
	"dubber/translate"
	"dubber/youtube"
)

var (
	_ Downloader     = (*youtube.Downloader)(nil)
	_ CaptionSource  = (*youtube.CaptionClient)(nil)
	_ AudioExtractor = (*media.FFmpeg)(nil)
	_ Mixer          = (*media.FFmpeg)(nil)
	_ Transcriber    = (*speech.Whisper)(nil)
	_ Synthesizer    = (*speech.Piper)(nil)
	_ Translator     = (*translate.Service)(nil)
)

// Config wires a Runner. Translator and Downloader are required. Captions
// and Transcriber are tried in that order for the transcript; Synthesizer
// and Mixer are only needed for dubbing.
type Config struct {
	Downloader  Downloader
	Captions    CaptionSource
	Extractor   AudioExtractor
	Transcriber Transcriber
	Translator  Translator
	Synthesizer Synthesizer
	Mixer       Mixer

	// WorkDir holds one subdirectory per job.
	WorkDir string
	Logger  logging.Logger
	// OnEvent is called synchronously for every progress change.
	OnEvent func(Event)
	Now     func() time.Time
}

// Options are per-run settings.
type Options struct {
	SourceLanguage   string
	TargetLanguage   string
	APIKey           string
	CustomParameters translate.Params

	// SubtitlesOnly stops after the translation result is written.
	SubtitlesOnly bool
	// AutomaticCaptions accepts speech-recognized captions from YouTube.
	AutomaticCaptions bool
	// OutputDir receives the dubbed video (default: the job directory).
	OutputDir string
}

func (o Options) translateOptions() translate.Options {
	return translate.Options{
		SourceLanguage:   o.SourceLanguage,
		TargetLanguage:   o.TargetLanguage,
		APIKey:           o.APIKey,
		CustomParameters: o.CustomParameters,
	}
}

// Runner executes jobs. It is safe for concurrent use; each Run works in
// its own job directory.
type Runner struct {
	cfg    Config
	logger logging.Logger
	now    func() time.Time

	mu   sync.RWMutex
	jobs map[string]*Job
}

// New validates cfg and returns a Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Translator == nil {
		return nil, errors.New("pipeline: translator is required")
	}
	if cfg.Downloader == nil {
		return nil, errors.New("pipeline: downloader is required")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "dubber")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		cfg:    cfg,
		logger: logging.OrNoOp(cfg.Logger),
		now:    now,
		jobs:   make(map[string]*Job),
	}, nil
}

// Job returns a snapshot of the job with id.
func (r *Runner) Job(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Run dubs input, a YouTube URL or video ID. The returned job is complete
// or failed; on failure the error is a *StageError.
func (r *Runner) Run(ctx context.Context, input string, opts Options) (*Job, error) {
	if opts.TargetLanguage == "" {
		opts.TargetLanguage = translate.DefaultTargetLanguage
	}
	now := r.now()
	job := &Job{
		ID:             uuid.NewString(),
		Input:          input,
		SourceLanguage: opts.SourceLanguage,
		TargetLanguage: opts.TargetLanguage,
		Stage:          StageQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	logger := logging.WithFields(r.logger, map[string]any{"job_id": job.ID})
	logger.Info("job queued", "input", input, "target", opts.TargetLanguage)

	videoID, err := youtube.ParseVideoID(input)
	if err != nil {
		return r.fail(job, StageQueued, err)
	}
	job.VideoID = videoID
	job.Dir = filepath.Join(r.cfg.WorkDir, job.ID)
	if err := os.MkdirAll(job.Dir, 0o755); err != nil {
		return r.fail(job, StageQueued, fmt.Errorf("create job directory: %w", err))
	}
	if !opts.SubtitlesOnly && (r.cfg.Synthesizer == nil || r.cfg.Mixer == nil) {
		return r.fail(job, StageQueued, ErrDubbingUnavailable)
	}

	if !opts.SubtitlesOnly {
		if err := r.download(ctx, job, false); err != nil {
			return r.fail(job, StageDownload, err)
		}
	}

	segments, err := r.transcribe(ctx, job, opts, logger)
	if err != nil {
		return r.fail(job, StageTranscribe, err)
	}

	if err := r.translate(ctx, job, segments, opts); err != nil {
		return r.fail(job, StageTranslate, err)
	}

	if !opts.SubtitlesOnly {
		clips, err := r.synthesize(ctx, job)
		if err != nil {
			return r.fail(job, StageSynthesize, err)
		}
		if err := r.mux(ctx, job, clips, opts); err != nil {
			return r.fail(job, StageMux, err)
		}
	}

	r.update(job, StageDone, 1, "job complete")
	job.FinishedAt = job.UpdatedAt
	logger.Info("job complete",
		"video_id", job.VideoID,
		"origin", job.Translation.Origin,
		"result", job.ResultPath,
		"output", job.OutputPath,
		"duration", job.FinishedAt.Sub(job.CreatedAt))
	return job, nil
}

func (r *Runner) download(ctx context.Context, job *Job, audioOnly bool) error {
	r.update(job, StageDownload, at(StageDownload, 0), "downloading")
	res, err := r.cfg.Downloader.Download(ctx, job.VideoID, &youtube.DownloadOptions{
		OutputDir: job.Dir,
		AudioOnly: audioOnly,
		OnProgress: func(line string) {
			r.logger.Trace("yt-dlp", "job_id", job.ID, "line", line)
		},
	})
	if err != nil {
		return err
	}
	job.VideoPath = res.VideoPath
	r.update(job, StageDownload, at(StageDownload, 1), "downloaded "+filepath.Base(res.VideoPath))
	return nil
}

// transcribe prefers existing captions and falls back to speech
// recognition on the downloaded media.
func (r *Runner) transcribe(ctx context.Context, job *Job, opts Options, logger logging.Logger) ([]translate.TranscriptionSegment, error) {
	r.update(job, StageTranscribe, at(StageTranscribe, 0), "transcribing")

	lang := opts.SourceLanguage
	if lang == "" {
		lang = translate.DefaultSourceLanguage
	}

	if r.cfg.Captions != nil {
		segments, err := r.cfg.Captions.FetchCaptions(ctx, job.VideoID, lang, opts.AutomaticCaptions)
		switch {
		case err == nil && len(segments) > 0:
			job.Transcript = TranscriptCaptions
			r.update(job, StageTranscribe, at(StageTranscribe, 1), fmt.Sprintf("%d caption segments", len(segments)))
			return segments, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			logger.Info("captions unavailable, falling back to speech recognition", "video_id", job.VideoID, "error", err)
		}
	}

	if r.cfg.Transcriber == nil {
		return nil, ErrNoTranscriber
	}
	if job.VideoPath == "" {
		if err := r.download(ctx, job, true); err != nil {
			return nil, err
		}
		r.update(job, StageTranscribe, at(StageTranscribe, 0), "transcribing")
	}

	job.AudioPath = job.VideoPath
	if r.cfg.Extractor != nil {
		audio := filepath.Join(job.Dir, "speech.wav")
		if err := r.cfg.Extractor.ExtractAudio(ctx, job.VideoPath, audio); err != nil {
			return nil, err
		}
		job.AudioPath = audio
	}
	r.update(job, StageTranscribe, at(StageTranscribe, 0.3), "recognizing speech")

	segments, err := r.cfg.Transcriber.Transcribe(ctx, job.AudioPath, lang)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, ErrNoSpeech
	}
	job.Transcript = TranscriptSpeech
	r.update(job, StageTranscribe, at(StageTranscribe, 1), fmt.Sprintf("%d speech segments", len(segments)))
	return segments, nil
}

func (r *Runner) translate(ctx context.Context, job *Job, segments []translate.TranscriptionSegment, opts Options) error {
	r.update(job, StageTranslate, at(StageTranslate, 0), "translating")
	res, err := r.cfg.Translator.TranslateSegments(ctx, segments, opts.translateOptions(), func(f float64) {
		r.update(job, StageTranslate, at(StageTranslate, f), "")
	})
	if err != nil {
		return err
	}
	job.Translation = res

	path := filepath.Join(job.Dir, fmt.Sprintf("%s.%s.json", job.VideoID, opts.TargetLanguage))
	err = storage.WriteAtomic(path, func(w io.Writer) error { return translate.WriteResult(w, res) })
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	job.ResultPath = path
	msg := fmt.Sprintf("translated %d segments (%s)", len(res.Segments), res.Origin)
	r.update(job, StageTranslate, at(StageTranslate, 1), msg)
	return nil
}

// synthesize speaks every non-blank translated segment into its own clip.
func (r *Runner) synthesize(ctx context.Context, job *Job) ([]media.Clip, error) {
	r.update(job, StageSynthesize, at(StageSynthesize, 0), "synthesizing")
	segments := job.Translation.Segments
	clips := make([]media.Clip, 0, len(segments))
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(seg.TranslatedText) == "" {
			continue
		}
		out := filepath.Join(job.Dir, "clips", fmt.Sprintf("%04d.wav", i))
		if err := r.cfg.Synthesizer.Synthesize(ctx, seg.TranslatedText, out); err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		clips = append(clips, media.Clip{Path: out, Start: seg.StartTime})
		r.update(job, StageSynthesize, at(StageSynthesize, float64(i+1)/float64(len(segments))), "")
	}
	if len(clips) == 0 {
		return nil, ErrNoSpeech
	}
	job.SynthesizedClips = len(clips)
	return clips, nil
}

func (r *Runner) mux(ctx context.Context, job *Job, clips []media.Clip, opts Options) error {
	r.update(job, StageMux, at(StageMux, 0), "assembling track")
	track := filepath.Join(job.Dir, fmt.Sprintf("dub.%s.wav", opts.TargetLanguage))
	if err := r.cfg.Mixer.AssembleTrack(ctx, clips, track); err != nil {
		return err
	}
	job.TrackPath = track
	r.update(job, StageMux, at(StageMux, 0.5), "muxing")

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = job.Dir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	output := filepath.Join(outDir, fmt.Sprintf("%s.%s.mp4", job.VideoID, opts.TargetLanguage))
	if err := r.cfg.Mixer.Mux(ctx, job.VideoPath, track, output); err != nil {
		return err
	}
	job.OutputPath = output
	return nil
}

// update moves job forward and emits an event. Progress never decreases.
func (r *Runner) update(job *Job, stage Stage, progress float64, msg string) {
	r.mu.Lock()
	job.Stage = stage
	if progress > job.Progress {
		job.Progress = progress
	}
	job.UpdatedAt = r.now()
	ev := Event{JobID: job.ID, Stage: stage, Progress: job.Progress, Message: msg, Time: job.UpdatedAt}
	r.mu.Unlock()

	if msg != "" {
		r.logger.Debug("job progress", "job_id", job.ID, "stage", stage, "progress", ev.Progress, "message", msg)
	}
	if r.cfg.OnEvent != nil {
		r.cfg.OnEvent(ev)
	}
}

func (r *Runner) fail(job *Job, stage Stage, err error) (*Job, error) {
	serr := &StageError{JobID: job.ID, Stage: stage, Err: err}
	r.mu.Lock()
	job.Err = serr
	job.FinishedAt = r.now()
	r.mu.Unlock()
	r.update(job, StageFailed, job.Progress, serr.Error())
	r.logger.Error("job failed", "job_id", job.ID, "stage", stage, "error", err)
	return job, serr
}
