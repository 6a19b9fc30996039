package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// VideoMetadata is the subset of yt-dlp's info JSON the dubbing pipeline
// uses to name artifacts and pick the source language.
type VideoMetadata struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Uploader string  `json:"uploader"`
	// Language is yt-dlp's guess of the spoken language, often empty.
	Language string `json:"language"`
	// Subtitles lists the languages with creator-provided captions.
	Subtitles []string `json:"subtitles"`
	// AutomaticCaptions lists the languages with speech-recognized captions.
	AutomaticCaptions []string  `json:"automatic_captions"`
	FetchedAt         time.Time `json:"fetched_at"`
}

type ytdlpInfo struct {
	ID                string                     `json:"id"`
	Title             string                     `json:"title"`
	Duration          float64                    `json:"duration"`
	Uploader          string                     `json:"uploader"`
	Language          string                     `json:"language"`
	Subtitles         map[string]json.RawMessage `json:"subtitles"`
	AutomaticCaptions map[string]json.RawMessage `json:"automatic_captions"`
}

// FetchMetadata runs `yt-dlp -J` for videoID and decodes the result.
func FetchMetadata(ctx context.Context, videoID string, ytdlpPath string) (*VideoMetadata, error) {
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	cmd := exec.CommandContext(ctx, ytdlpPath, "-J", "--no-warnings", "--skip-download", WatchURL(videoID))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if missingBinary(err) {
			return nil, fmt.Errorf("fetch metadata: %w", ErrYtdlpNotInstalled)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("fetch metadata: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("parse metadata JSON: %w", err)
	}
	if info.ID == "" || info.Title == "" {
		return nil, fmt.Errorf("invalid metadata: missing id or title")
	}

	return &VideoMetadata{
		ID:                info.ID,
		Title:             info.Title,
		Duration:          info.Duration,
		Uploader:          info.Uploader,
		Language:          info.Language,
		Subtitles:         sortedKeys(info.Subtitles),
		AutomaticCaptions: sortedKeys(info.AutomaticCaptions),
		FetchedAt:         time.Now().UTC(),
	}, nil
}

// HasCaptions reports whether lang has creator or automatic captions.
func (m *VideoMetadata) HasCaptions(lang string) bool {
	for _, l := range m.Subtitles {
		if l == lang {
			return true
		}
	}
	for _, l := range m.AutomaticCaptions {
		if l == lang {
			return true
		}
	}
	return false
}
