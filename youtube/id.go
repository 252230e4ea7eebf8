package youtube

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned for links that do not name a YouTube video.
var ErrInvalidURL = errors.New("not a valid YouTube video link")

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ValidID reports whether id has the shape of a YouTube video id.
func ValidID(id string) bool {
	return videoIDPattern.MatchString(id)
}

// ParseVideoID extracts the video id from the link shapes YouTube hands
// out: watch?v=, youtu.be/, /embed/, /shorts/, /live/ and /v/, on the
// www, m and music hosts.
func ParseVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	var id string
	switch host {
	case "youtu.be":
		id = firstSegment(u.Path)
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		switch {
		case segs[0] == "watch":
			id = u.Query().Get("v")
		case len(segs) >= 2 && (segs[0] == "embed" || segs[0] == "shorts" || segs[0] == "live" || segs[0] == "v"):
			id = segs[1]
		}
	default:
		return "", ErrInvalidURL
	}

	if !ValidID(id) {
		return "", ErrInvalidURL
	}
	return id, nil
}

func firstSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

// WatchURL is the canonical link stored for a YouTube video.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
