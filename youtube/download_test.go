package youtube

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

// writeMockYtdlp writes an executable shell script standing in for yt-dlp.
func writeMockYtdlp(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script mocks require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("failed to create mock yt-dlp: %v", err)
	}
	return path
}

const mockMetadata = `
for arg in "$@"; do
    if [ "$arg" = "-J" ]; then
        cat << 'METADATA'
{
  "id": "dQw4w9WgXcQ",
  "title": "Test Video",
  "duration": 212.5,
  "uploader": "Test Channel",
  "language": "en",
  "subtitles": {"en": [], "de": []},
  "automatic_captions": {"en": []}
}
METADATA
        exit 0
    fi
done
`

func TestNewDownloader(t *testing.T) {
	d := NewDownloader()
	if d.YtdlpPath != "yt-dlp" {
		t.Errorf("NewDownloader().YtdlpPath = %q, want %q", d.YtdlpPath, "yt-dlp")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean filename", "My Video Title", "My Video Title"},
		{"forward slash", "Video/Part 1", "Video_Part 1"},
		{"backslash", "Video\\Part 1", "Video_Part 1"},
		{"colon", "Video: Part 1", "Video_ Part 1"},
		{"multiple invalid chars", "Video: Part 1 - \"Best\" <2024>", "Video_ Part 1 - _Best_ _2024_"},
		{"question mark and asterisk", "What is this? * and more", "What is this_ _ and more"},
		{"pipe", "Video | Part 1", "Video _ Part 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeFilename(tt.input); got != tt.want {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDownloadMissingBinary(t *testing.T) {
	for _, path := range []string{"/nonexistent/path/to/yt-dlp", "dubber-test-no-such-ytdlp"} {
		d := &Downloader{YtdlpPath: path}
		_, err := d.Download(context.Background(), "dQw4w9WgXcQ", &DownloadOptions{OutputDir: t.TempDir()})
		if !errors.Is(err, ErrYtdlpNotInstalled) {
			t.Errorf("Download() with %q error = %v, want ErrYtdlpNotInstalled", path, err)
		}
	}
}

func TestDownloadWithMetadata(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "output")
	mock := writeMockYtdlp(t, mockMetadata+`
OUT="`+outputDir+`"
echo "[download] 50.0% of 10MiB"
touch "$OUT/intro.mp4"
echo "$OUT/intro.mp4"
`)

	var progress []string
	d := &Downloader{YtdlpPath: mock, Timeout: 30 * time.Second}
	result, err := d.Download(context.Background(), "dQw4w9WgXcQ", &DownloadOptions{
		OutputDir:       outputDir,
		Filename:        "intro",
		IncludeMetadata: true,
		OnProgress:      func(line string) { progress = append(progress, line) },
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if want := filepath.Join(outputDir, "intro.mp4"); result.VideoPath != want {
		t.Errorf("VideoPath = %q, want %q", result.VideoPath, want)
	}
	if result.Metadata == nil || result.Metadata.Title != "Test Video" || result.Metadata.Duration != 212.5 {
		t.Fatalf("Metadata = %+v", result.Metadata)
	}
	if !result.Metadata.HasCaptions("de") || result.Metadata.HasCaptions("tr") {
		t.Errorf("caption languages = %v / %v", result.Metadata.Subtitles, result.Metadata.AutomaticCaptions)
	}
	if result.MetadataPath == "" {
		t.Error("MetadataPath is empty")
	} else if data, err := os.ReadFile(result.MetadataPath); err != nil || !strings.Contains(string(data), "dQw4w9WgXcQ") {
		t.Errorf("metadata file = %s, %v", data, err)
	}
	if len(progress) == 0 || !strings.Contains(progress[0], "50.0%") {
		t.Errorf("progress lines = %v", progress)
	}
}

func TestDownloadAudioOnlyArgs(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	mock := writeMockYtdlp(t, `
echo "$@" > "`+argsFile+`"
touch "`+dir+`/dQw4w9WgXcQ.wav"
echo "`+dir+`/dQw4w9WgXcQ.wav"
`)

	d := &Downloader{YtdlpPath: mock}
	result, err := d.Download(context.Background(), "dQw4w9WgXcQ", &DownloadOptions{OutputDir: dir, AudioOnly: true})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if !strings.HasSuffix(result.VideoPath, "dQw4w9WgXcQ.wav") {
		t.Errorf("VideoPath = %q", result.VideoPath)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("failed to read args file: %v", err)
	}
	for _, want := range []string{"-x", "--audio-format wav", "-- https://www.youtube.com/watch?v=dQw4w9WgXcQ"} {
		if !strings.Contains(string(args), want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestDownloadCustomFormat(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	mock := writeMockYtdlp(t, `
echo "$@" > "`+argsFile+`"
echo "`+dir+`/v.webm"
`)

	d := &Downloader{YtdlpPath: mock}
	if _, err := d.Download(context.Background(), "dQw4w9WgXcQ", &DownloadOptions{OutputDir: dir, Format: "best[height<=720]"}); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	args, _ := os.ReadFile(argsFile)
	if !strings.Contains(string(args), "best[height<=720]") {
		t.Errorf("expected custom format in args: %s", args)
	}
}

func TestDownloadFailureIncludesStderr(t *testing.T) {
	mock := writeMockYtdlp(t, `
echo "ERROR: Video unavailable" >&2
exit 1
`)
	d := &Downloader{YtdlpPath: mock}
	_, err := d.Download(context.Background(), "dQw4w9WgXcQ", &DownloadOptions{OutputDir: t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "Video unavailable") {
		t.Errorf("Download() error = %v, want stderr in message", err)
	}
}

func TestDownloadNoOutputPath(t *testing.T) {
	mock := writeMockYtdlp(t, "exit 0\n")
	d := &Downloader{YtdlpPath: mock}
	if _, err := d.Download(context.Background(), "dQw4w9WgXcQ", &DownloadOptions{OutputDir: t.TempDir()}); err == nil {
		t.Error("Download() error = nil when yt-dlp printed no path")
	}
}

func TestDownloadTimeout(t *testing.T) {
	mock := writeMockYtdlp(t, "exec sleep 60\n")
	d := &Downloader{YtdlpPath: mock, Timeout: 100 * time.Millisecond}

	start := time.Now()
	_, err := d.Download(context.Background(), "dQw4w9WgXcQ", &DownloadOptions{OutputDir: t.TempDir()})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Download() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Error("Download() ignored the timeout")
	}
}

func TestFetchMetadataInvalidJSON(t *testing.T) {
	mock := writeMockYtdlp(t, `echo '{"id": ""}'`+"\n")
	if _, err := FetchMetadata(context.Background(), "dQw4w9WgXcQ", mock); err == nil {
		t.Error("FetchMetadata() error = nil for metadata without id")
	}
}
