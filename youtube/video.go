package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// videoIDRegex matches an 11-character YouTube video ID.
var videoIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// ParseVideoID extracts the video ID from a bare ID or a watch, youtu.be,
// shorts, embed or live URL.
func ParseVideoID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if videoIDRegex.MatchString(input) {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		if !strings.Contains(input, "://") {
			u, err = url.Parse("https://" + input)
		}
		if err != nil || u == nil || u.Host == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidURL, input)
		}
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
			break
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 {
			switch parts[0] {
			case "shorts", "embed", "live", "v":
				id = parts[1]
			}
		}
	}

	if !videoIDRegex.MatchString(id) {
		return "", fmt.Errorf("%w: cannot extract video ID from %q", ErrInvalidURL, input)
	}
	return id, nil
}

// WatchURL returns the canonical watch URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
