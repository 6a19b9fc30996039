package translate

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies translation failures so retry and fallback decisions are
// explicit.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork covers connect/DNS failures, 5xx, throttling and an open circuit.
	KindNetwork
	// KindTimeout is an attempt that ran out of time. It is also a network failure.
	KindTimeout
	// KindBadResponse is a malformed or empty payload or a non-retryable 4xx.
	KindBadResponse
	// KindCancelled is a caller-initiated abort.
	KindCancelled
	// KindOfflineUnavailable means every attempt failed and offline mode is off.
	KindOfflineUnavailable
	// KindInvalidRequest is a request the service refuses to send.
	KindInvalidRequest
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindBadResponse:
		return "bad response"
	case KindCancelled:
		return "cancelled"
	case KindOfflineUnavailable:
		return "offline unavailable"
	case KindInvalidRequest:
		return "invalid request"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt may succeed.
func (k Kind) Retryable() bool {
	return k == KindNetwork || k == KindTimeout
}

// Sentinel errors matched with errors.Is.
var (
	ErrNetwork            = errors.New("translate: network error")
	ErrTimeout            = errors.New("translate: timeout")
	ErrBadResponse        = errors.New("translate: bad response")
	ErrCancelled          = errors.New("translate: cancelled")
	ErrOfflineUnavailable = errors.New("translate: remote unavailable and offline mode disabled")
	ErrInvalidRequest     = errors.New("translate: invalid request")
)

func (k Kind) sentinels() []error {
	switch k {
	case KindNetwork:
		return []error{ErrNetwork}
	case KindTimeout:
		return []error{ErrTimeout, ErrNetwork}
	case KindBadResponse:
		return []error{ErrBadResponse}
	case KindCancelled:
		return []error{ErrCancelled}
	case KindOfflineUnavailable:
		return []error{ErrOfflineUnavailable}
	case KindInvalidRequest:
		return []error{ErrInvalidRequest}
	default:
		return nil
	}
}

// Error describes a failed translation with its context.
type Error struct {
	Kind           Kind
	Op             string
	Text           string
	SourceLanguage string
	TargetLanguage string
	Err            error
}

// NewError returns an Error of kind for op wrapping err.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Op
	if msg == "" {
		msg = "translate"
	}
	msg += ": " + e.Kind.String()
	if e.SourceLanguage != "" || e.TargetLanguage != "" {
		msg += fmt.Sprintf(" (%s→%s", e.SourceLanguage, e.TargetLanguage)
		if e.Text != "" {
			msg += fmt.Sprintf(", %q", excerpt(e.Text, 40))
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the kind's sentinels and the cause.
func (e *Error) Unwrap() []error {
	errs := e.Kind.sentinels()
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf classifies err. Context errors map to KindCancelled and
// KindTimeout; anything unrecognized is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrBadResponse):
		return KindBadResponse
	}
	return KindUnknown
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
