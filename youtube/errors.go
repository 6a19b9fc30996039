package youtube

import (
	"errors"
	"fmt"
)

// Sentinel errors for YouTube operations.
var (
	ErrInvalidURL        = errors.New("youtube: invalid URL")
	ErrYtdlpNotInstalled = errors.New("youtube: yt-dlp not installed")
	ErrCaptionsNotFound  = errors.New("youtube: captions not found")
	ErrCaptionsDisabled  = errors.New("youtube: captions disabled or region restricted")
	ErrRateLimited       = errors.New("youtube: rate limited")
)

// CaptionError wraps a caption fetch failure with its video and language.
type CaptionError struct {
	VideoID  string
	Language string
	Err      error
}

func (e *CaptionError) Error() string {
	return fmt.Sprintf("captions %s [%s]: %v", e.VideoID, e.Language, e.Err)
}

func (e *CaptionError) Unwrap() error { return e.Err }
