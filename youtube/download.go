package youtube

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
	"sort"
	"strconv"
	"strings"
	"time"

	"dubber/logging"
)

// DownloadOptions configures video download behavior.
type DownloadOptions struct {
	// OutputDir is the directory to save the downloaded video.
	// Defaults to current directory if empty.
	OutputDir string
	// Format is a yt-dlp format string. Defaults to the best mp4-compatible
	// video up to 1080p so the result can be remuxed without re-encoding.
	Format string
	// AudioOnly extracts audio instead of downloading video.
	AudioOnly bool
	// AudioFormat is the extracted audio codec when AudioOnly is set (default wav,
	// which speech recognizers accept directly).
	AudioFormat string
	// IncludeMetadata saves video metadata to a JSON file alongside the video.
	IncludeMetadata bool
	// Filename specifies a custom output filename (without extension).
	// If empty, the video ID is used.
	Filename string
	// OnProgress receives yt-dlp's raw output lines.
	OnProgress func(line string)
}

// DownloadResult contains information about a completed download.
type DownloadResult struct {
	// VideoPath is the path of the downloaded video or audio file.
	VideoPath string
	// MetadataPath is set when IncludeMetadata was requested and succeeded.
	MetadataPath string
	Metadata     *VideoMetadata
}

// Downloader handles video downloads using yt-dlp.
type Downloader struct {
	// YtdlpPath is the path to the yt-dlp executable.
	YtdlpPath string
	// Timeout bounds a single download (0 = rely on the context).
	Timeout time.Duration
	Logger  logging.Logger
}

// NewDownloader creates a new Downloader with default settings.
func NewDownloader() *Downloader {
	return &Downloader{
		YtdlpPath: "yt-dlp",
	}
}

// Download downloads a video with the specified options.
func (d *Downloader) Download(ctx context.Context, videoID string, opts *DownloadOptions) (*DownloadResult, error) {
	if opts == nil {
		opts = &DownloadOptions{}
	}
	logger := logging.OrNoOp(d.Logger)

	ytdlpPath := d.YtdlpPath
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	result := &DownloadResult{}

	if opts.IncludeMetadata {
		metadata, err := FetchMetadata(ctx, videoID, ytdlpPath)
		if err != nil {
			if errors.Is(err, ErrYtdlpNotInstalled) {
				return nil, err
			}
			// Non-fatal: the download can proceed without metadata.
			logger.Warn("metadata fetch failed", "video_id", videoID, "error", err)
		} else {
			result.Metadata = metadata
		}
	}

	name := opts.Filename
	if name == "" {
		name = videoID
	}
	outputTemplate := filepath.Join(outputDir, sanitizeFilename(name)+".%(ext)s")
	args := []string{
		"-o", outputTemplate,
		"--no-warnings",
		"--newline",
		"--print", "after_move:filepath",
	}

	if opts.AudioOnly {
		audioFormat := opts.AudioFormat
		if audioFormat == "" {
			audioFormat = "wav"
		}
		args = append(args, "-f", "bestaudio/best", "-x", "--audio-format", audioFormat)
	} else {
		format := opts.Format
		if format == "" || format == "best" {
			format = "bestvideo[height<=1080][ext=mp4]+bestaudio[ext=m4a]/best[height<=1080]/best"
		}
		args = append(args, "-f", format, "--merge-output-format", "mp4")
	}
	args = append(args, "--", WatchURL(videoID))

	logger.Info("downloading video", "video_id", videoID, "audio_only", opts.AudioOnly, "dir", outputDir)
	cmd := exec.CommandContext(ctx, ytdlpPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &progressWriter{buf: &stdout, fn: opts.OnProgress}
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if missingBinary(err) {
			return nil, fmt.Errorf("download video: %w", ErrYtdlpNotInstalled)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("download video: %w", ctxErr)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("download video: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("download video: %w", err)
	}

	// --print after_move:filepath puts the final path on the last line.
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" && strings.ContainsRune(line, os.PathSeparator) {
			result.VideoPath = line
			break
		}
	}
	if result.VideoPath == "" {
		return nil, fmt.Errorf("download video: yt-dlp did not report an output file")
	}

	if result.Metadata != nil {
		metadataPath := filepath.Join(outputDir, sanitizeFilename(name)+".info.json")
		if err := saveMetadataToFile(result.Metadata, metadataPath); err != nil {
			logger.Warn("metadata save failed", "path", metadataPath, "error", err)
		} else {
			result.MetadataPath = metadataPath
		}
	}

	logger.Info("download complete", "video_id", videoID, "path", result.VideoPath)
	return result, nil
}

// progressWriter buffers yt-dlp output and forwards complete lines.
type progressWriter struct {
	buf     *bytes.Buffer
	fn      func(string)
	pending []byte
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	if w.fn == nil {
		return len(p), nil
	}
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		if line := strings.TrimSpace(string(w.pending[:i])); line != "" {
			w.fn(line)
		}
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

// sanitizeFilename removes/replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	replacements := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := s
	for _, char := range replacements {
		result = strings.ReplaceAll(result, char, "_")
	}
	return result
}

// saveMetadataToFile saves video metadata to a JSON file.
func saveMetadataToFile(metadata *VideoMetadata, path string) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write metadata file: %w", err)
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// missingBinary reports whether cmd.Run failed because the executable
// does not exist.
func missingBinary(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// formatSeconds renders seconds for log fields.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64) + "s"
}
