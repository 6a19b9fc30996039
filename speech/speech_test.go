package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script mocks require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// mockWhisper writes its JSON result to the --output-file base.
const mockWhisper = `
while [ $# -gt 0 ]; do
    case "$1" in
        --output-file) base="$2"; shift ;;
        --language) lang="$2"; shift ;;
    esac
    shift
done
cat > "$base.json" << JSON
{"transcription": [
  {"offsets": {"from": 0, "to": 2500}, "text": " Hello everyone ($lang)"},
  {"offsets": {"from": 2500, "to": 2600}, "text": " [BLANK_AUDIO]"},
  {"offsets": {"from": 2600, "to": 5000}, "text": " welcome back"}
]}
JSON
`

func TestWhisperTranscribe(t *testing.T) {
	w := &Whisper{Path: writeScript(t, "whisper-cli", mockWhisper), ModelPath: "ggml-base.bin"}

	segs, err := w.Transcribe(context.Background(), "audio.wav", "en")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("len(segments) = %d, want 2: %+v", len(segs), segs)
	}
	if segs[0].Text != "Hello everyone (en)" || segs[0].StartTime != 0 || segs[0].EndTime != 2.5 {
		t.Errorf("segments[0] = %+v", segs[0])
	}
	if segs[1].StartTime != 2.6 || segs[1].EndTime != 5 || segs[1].Confidence != whisperConfidence {
		t.Errorf("segments[1] = %+v", segs[1])
	}
}

func TestWhisperDefaultsToAutoLanguage(t *testing.T) {
	w := &Whisper{Path: writeScript(t, "whisper-cli", mockWhisper), ModelPath: "m.bin"}
	segs, err := w.Transcribe(context.Background(), "audio.wav", "")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if !strings.Contains(segs[0].Text, "(auto)") {
		t.Errorf("segments[0].Text = %q, want auto language", segs[0].Text)
	}
}

func TestWhisperErrors(t *testing.T) {
	if _, err := (&Whisper{}).Transcribe(context.Background(), "a.wav", "en"); err == nil {
		t.Error("Transcribe() without model returned nil error")
	}

	missing := &Whisper{Path: "dubber-test-no-such-whisper", ModelPath: "m.bin"}
	if _, err := missing.Transcribe(context.Background(), "a.wav", "en"); !errors.Is(err, ErrEngineNotInstalled) {
		t.Errorf("Transcribe() error = %v, want ErrEngineNotInstalled", err)
	}

	failing := &Whisper{Path: writeScript(t, "whisper-cli", "echo 'failed to load model' >&2; exit 3\n"), ModelPath: "m.bin"}
	if _, err := failing.Transcribe(context.Background(), "a.wav", "en"); err == nil || !strings.Contains(err.Error(), "failed to load model") {
		t.Errorf("Transcribe() error = %v, want stderr in message", err)
	}
}

func TestParseWhisperJSONMalformed(t *testing.T) {
	if _, err := parseWhisperJSON([]byte("not json")); err == nil {
		t.Error("parseWhisperJSON() error = nil")
	}
}

func TestPiperSynthesize(t *testing.T) {
	dir := t.TempDir()
	stdinFile := filepath.Join(dir, "stdin.txt")
	bin := writeScript(t, "piper", `
while [ $# -gt 0 ]; do
    case "$1" in
        --output_file) out="$2"; shift ;;
        --config) cfg="$2"; shift ;;
    esac
    shift
done
cat > "`+stdinFile+`"
echo "$cfg" >> "`+stdinFile+`"
touch "$out"
`)

	p := &Piper{Path: bin, ModelPath: "tr_TR-voice.onnx"}
	out := filepath.Join(dir, "clips", "0001.wav")
	if err := p.Synthesize(context.Background(), "Merhaba dünya", out); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not created: %v", err)
	}
	got, _ := os.ReadFile(stdinFile)
	if !strings.HasPrefix(string(got), "Merhaba dünya") || !strings.Contains(string(got), "tr_TR-voice.onnx.json") {
		t.Errorf("piper received %q", got)
	}
}

func TestPiperErrors(t *testing.T) {
	p := &Piper{Path: writeScript(t, "piper", "exec sleep 60\n"), ModelPath: "v.onnx", Timeout: 50 * time.Millisecond}
	out := filepath.Join(t.TempDir(), "x.wav")

	if err := p.Synthesize(context.Background(), "  ", out); err == nil {
		t.Error("Synthesize() with blank text returned nil error")
	}
	if err := p.Synthesize(context.Background(), "merhaba", out); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Synthesize() error = %v, want deadline exceeded", err)
	}
	if err := (&Piper{}).Synthesize(context.Background(), "x", out); err == nil {
		t.Error("Synthesize() without model returned nil error")
	}
}
