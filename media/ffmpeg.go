// Package media drives ffmpeg for the audio side of dubbing: extracting a
// speech-recognition friendly track, laying synthesized clips onto a
// timeline and muxing the result back into the video.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dubber/logging"
)

// ErrFFmpegNotInstalled indicates the ffmpeg binary was not found.
var ErrFFmpegNotInstalled = errors.New("media: ffmpeg not installed")

// SpeechSampleRate is the rate speech recognizers expect.
const SpeechSampleRate = 16000

// FFmpeg runs ffmpeg commands.
type FFmpeg struct {
	// Path is the ffmpeg executable (default "ffmpeg").
	Path string
	// Timeout bounds a single invocation (0 = rely on the context).
	Timeout time.Duration
	Logger  logging.Logger
}

// Clip is a synthesized audio file placed at Start seconds.
type Clip struct {
	Path  string
	Start float64
}

// ExtractAudio writes input's audio as 16 kHz mono PCM WAV to output.
func (f *FFmpeg) ExtractAudio(ctx context.Context, input, output string) error {
	return f.run(ctx, "extract audio",
		"-i", input,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(SpeechSampleRate),
		"-c:a", "pcm_s16le",
		output,
	)
}

// AssembleTrack mixes clips into one track, delaying each to its start
// time. Overlapping clips are mixed, not truncated.
func (f *FFmpeg) AssembleTrack(ctx context.Context, clips []Clip, output string) error {
	if len(clips) == 0 {
		return fmt.Errorf("assemble track: no clips")
	}

	args := []string{}
	for _, c := range clips {
		args = append(args, "-i", c.Path)
	}
	args = append(args, "-filter_complex", trackFilter(clips), "-map", "[out]", output)
	return f.run(ctx, "assemble track", args...)
}

// trackFilter builds the adelay/amix graph for clips.
func trackFilter(clips []Clip) string {
	var b strings.Builder
	for i, c := range clips {
		ms := int64(c.Start*1000 + 0.5)
		if ms < 0 {
			ms = 0
		}
		fmt.Fprintf(&b, "[%d:a]adelay=%d:all=1[a%d];", i, ms, i)
	}
	for i := range clips {
		fmt.Fprintf(&b, "[a%d]", i)
	}
	fmt.Fprintf(&b, "amix=inputs=%d:duration=longest:normalize=0[out]", len(clips))
	return b.String()
}

// Mux copies video's picture and replaces its audio with audio.
func (f *FFmpeg) Mux(ctx context.Context, video, audio, output string) error {
	return f.run(ctx, "mux",
		"-i", video,
		"-i", audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		output,
	)
}

func (f *FFmpeg) run(ctx context.Context, op string, args ...string) error {
	path := f.Path
	if path == "" {
		path = "ffmpeg"
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	if out := args[len(args)-1]; filepath.Dir(out) != "." {
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("%s: create output directory: %w", op, err)
		}
	}

	full := append([]string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y"}, args...)
	logging.OrNoOp(f.Logger).Debug("running ffmpeg", "op", op, "args", strings.Join(full, " "))

	cmd := exec.CommandContext(ctx, path, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", op, ErrFFmpegNotInstalled)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", op, err, msg)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
