// Package speech adapts command-line speech engines to the dubbing
// pipeline: whisper.cpp for transcription and piper for synthesis.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"dubber/logging"
	"dubber/translate"
)

// ErrEngineNotInstalled indicates a speech engine binary was not found.
var ErrEngineNotInstalled = errors.New("speech: engine not installed")

// whisperConfidence is reported for every segment; whisper.cpp's JSON
// output carries no per-segment confidence.
const whisperConfidence = 0.9

// Whisper transcribes audio files with the whisper.cpp CLI.
type Whisper struct {
	// Path is the whisper.cpp executable (default "whisper-cli").
	Path string
	// ModelPath is the ggml model file.
	ModelPath string
	Timeout   time.Duration
	Logger    logging.Logger
}

type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe returns timed segments for the speech in audioPath. lang is
// the spoken language or "auto".
func (w *Whisper) Transcribe(ctx context.Context, audioPath, lang string) ([]translate.TranscriptionSegment, error) {
	if w.ModelPath == "" {
		return nil, fmt.Errorf("transcribe: model path is required")
	}
	if lang == "" {
		lang = "auto"
	}

	tmp, err := os.MkdirTemp("", "dubber-whisper-")
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	defer os.RemoveAll(tmp)
	base := filepath.Join(tmp, "out")

	args := []string{
		"--model", w.ModelPath,
		"--language", lang,
		"--no-prints",
		"--output-json",
		"--output-file", base,
		audioPath,
	}
	if err := run(ctx, w.Path, "whisper-cli", w.Timeout, nil, args); err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	data, err := os.ReadFile(base + ".json")
	if err != nil {
		return nil, fmt.Errorf("transcribe: read output: %w", err)
	}
	segs, err := parseWhisperJSON(data)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	logging.OrNoOp(w.Logger).Info("transcription complete", "audio", audioPath, "segments", len(segs))
	return segs, nil
}

func parseWhisperJSON(data []byte) ([]translate.TranscriptionSegment, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}
	segs := make([]translate.TranscriptionSegment, 0, len(out.Transcription))
	for _, t := range out.Transcription {
		text := strings.TrimSpace(t.Text)
		if text == "" || text == "[BLANK_AUDIO]" {
			continue
		}
		segs = append(segs, translate.TranscriptionSegment{
			Text:       text,
			StartTime:  float64(t.Offsets.From) / 1000,
			EndTime:    float64(t.Offsets.To) / 1000,
			Confidence: whisperConfidence,
		})
	}
	return segs, nil
}

// run executes an engine binary, feeding stdin when set.
func run(ctx context.Context, path, fallback string, timeout time.Duration, stdin []byte, args []string) error {
	if path == "" {
		path = fallback
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrEngineNotInstalled, path)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s failed: %w, stderr: %s", filepath.Base(path), err, msg)
		}
		return fmt.Errorf("%s failed: %w", filepath.Base(path), err)
	}
	return nil
}
