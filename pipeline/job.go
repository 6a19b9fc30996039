// Package pipeline runs a dubbing job end to end: download, transcribe,
// translate, synthesize and remux. Every stage is a narrow interface so the
// runner can be driven by the yt-dlp, timedtext, whisper, piper and ffmpeg
// adapters in production and by fakes in tests.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dubber/media"
	"dubber/translate"
	"dubber/youtube"
)

// Stage is a job's position in the pipeline.
type Stage int

const (
	StageQueued Stage = iota
	StageDownload
	StageTranscribe
	StageTranslate
	StageSynthesize
	StageMux
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageQueued:
		return "queued"
	case StageDownload:
		return "download"
	case StageTranscribe:
		return "transcribe"
	case StageTranslate:
		return "translate"
	case StageSynthesize:
		return "synthesize"
	case StageMux:
		return "mux"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further stage follows s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// span is the slice of overall progress a stage covers.
type span struct{ from, to float64 }

var stageSpans = map[Stage]span{
	StageDownload:   {0, 0.2},
	StageTranscribe: {0.2, 0.35},
	StageTranslate:  {0.35, 0.7},
	StageSynthesize: {0.7, 0.9},
	StageMux:        {0.9, 1},
}

// at maps a fraction of stage s onto overall progress.
func at(s Stage, fraction float64) float64 {
	sp, ok := stageSpans[s]
	if !ok {
		return 0
	}
	fraction = min(max(fraction, 0), 1)
	return sp.from + (sp.to-sp.from)*fraction
}

// TranscriptSource records where a job's transcript came from.
type TranscriptSource string

const (
	TranscriptCaptions TranscriptSource = "captions"
	TranscriptSpeech   TranscriptSource = "speech"
)

// Job is the state of one pipeline run.
type Job struct {
	ID             string
	Input          string
	VideoID        string
	SourceLanguage string
	TargetLanguage string

	Stage    Stage
	Progress float64

	// Dir holds the job's intermediate files.
	Dir              string
	VideoPath        string
	AudioPath        string
	Transcript       TranscriptSource
	Translation      translate.Result
	ResultPath       string
	TrackPath        string
	OutputPath       string
	SynthesizedClips int

	Err        error
	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt time.Time
}

// Event reports a job's progress.
type Event struct {
	JobID    string
	Stage    Stage
	Progress float64
	Message  string
	Time     time.Time
}

// Sentinel errors.
var (
	ErrNoSpeech           = errors.New("pipeline: transcript is empty")
	ErrNoTranscriber      = errors.New("pipeline: no captions and no speech recognizer configured")
	ErrDubbingUnavailable = errors.New("pipeline: synthesizer and mixer are required for dubbing")
)

// StageError wraps the failure of one stage.
type StageError struct {
	JobID string
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("job %s: %s: %v", e.JobID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Downloader fetches a video or its audio track.
type Downloader interface {
	Download(ctx context.Context, videoID string, opts *youtube.DownloadOptions) (*youtube.DownloadResult, error)
}

// CaptionSource returns existing captions as transcription segments.
type CaptionSource interface {
	FetchCaptions(ctx context.Context, videoID, lang string, automatic bool) ([]translate.TranscriptionSegment, error)
}

// AudioExtractor converts a media file to recognizer-ready audio.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, input, output string) error
}

// Transcriber turns speech into timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, lang string) ([]translate.TranscriptionSegment, error)
}

// Translator translates timed segments.
type Translator interface {
	TranslateSegments(ctx context.Context, segments []translate.TranscriptionSegment, opts translate.Options, onProgress translate.ProgressFunc) (translate.Result, error)
}

// Synthesizer speaks text into an audio file.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outPath string) error
}

// Mixer builds the dubbed track and puts it under the video.
type Mixer interface {
	AssembleTrack(ctx context.Context, clips []media.Clip, output string) error
	Mux(ctx context.Context, video, audio, output string) error
}
