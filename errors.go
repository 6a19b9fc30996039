package dubber

import (
	httpclient "dubber/http"
	"dubber/internal/retry"
	"dubber/media"
	"dubber/pipeline"
	"dubber/speech"
	"dubber/storage"
	"dubber/translate"
	"dubber/youtube"
)

// Error handling types exported for library users.
//
// Using errors.Is() for sentinel errors:
//
//	if errors.Is(err, dubber.ErrNetwork) {
//		fmt.Println("translation endpoint unreachable")
//	}
//
// Using errors.As() for wrapped errors:
//
//	var trErr *dubber.Error
//	if errors.As(err, &trErr) {
//		fmt.Printf("%s→%s failed: %v\n", trErr.SourceLanguage, trErr.TargetLanguage, trErr.Err)
//	}

// Type aliases for convenient error handling.
type (
	// Error is a failed translation with its text and language pair.
	Error = translate.Error
	// Kind classifies translation failures.
	Kind = translate.Kind
	// RetryableError wraps the last error once retries were exhausted.
	RetryableError = retry.RetryableError
	// StorageError wraps cache file operations.
	StorageError = storage.StorageError
	// CaptionError wraps a caption fetch failure.
	CaptionError = youtube.CaptionError
	// StageError wraps the failure of one pipeline stage.
	StageError = pipeline.StageError
)

// Sentinel errors exported from sub-packages.
var (
	// Translation
	ErrNetwork            = translate.ErrNetwork
	ErrTimeout            = translate.ErrTimeout
	ErrBadResponse        = translate.ErrBadResponse
	ErrCancelled          = translate.ErrCancelled
	ErrOfflineUnavailable = translate.ErrOfflineUnavailable
	ErrInvalidRequest     = translate.ErrInvalidRequest

	// Transport
	ErrCircuitOpen = httpclient.ErrCircuitOpen

	// Cache persistence. These are logged by the cache and never returned
	// from translation calls.
	ErrStorageCorrupt = storage.ErrStorageCorrupt
	ErrLockTimeout    = storage.ErrLockTimeout

	// Pipeline collaborators
	ErrInvalidURL         = youtube.ErrInvalidURL
	ErrYtdlpNotInstalled  = youtube.ErrYtdlpNotInstalled
	ErrCaptionsNotFound   = youtube.ErrCaptionsNotFound
	ErrFFmpegNotInstalled = media.ErrFFmpegNotInstalled
	ErrEngineNotInstalled = speech.ErrEngineNotInstalled
	ErrNoSpeech           = pipeline.ErrNoSpeech
)

// KindOf classifies err; see translate.KindOf.
func KindOf(err error) Kind {
	return translate.KindOf(err)
}

// IsRetryable reports whether another translation attempt may succeed.
func IsRetryable(err error) bool {
	return translate.KindOf(err).Retryable()
}
