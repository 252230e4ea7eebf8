package youtube

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ"},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/live/dQw4w9WgXcQ?feature=share", "dQw4w9WgXcQ"},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}
	for _, tc := range tests {
		got, err := ParseVideoID(tc.url)
		if err != nil || got != tc.want {
			t.Errorf("ParseVideoID(%q) = %q, %v; want %q", tc.url, got, err, tc.want)
		}
	}
}

func TestParseVideoID_Invalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"https://vimeo.com/85923309",
		"https://www.youtube.com/watch?v=short",
		"https://www.youtube.com/channel/UC123",
		"https://youtu.be/",
		"not a url at all",
	} {
		if _, err := ParseVideoID(raw); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("ParseVideoID(%q) err = %v, want ErrInvalidURL", raw, err)
		}
	}
}

type fakeFetcher struct {
	calls     int
	durations map[string]string
	err       error
}

func (f *fakeFetcher) FetchDurations(ctx context.Context, ids []string) (map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]string{}
	for _, id := range ids {
		if d, ok := f.durations[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func TestClient_Durations(t *testing.T) {
	f := &fakeFetcher{durations: map[string]string{"aaaaaaaaaaa": "PT1M", "bbbbbbbbbbb": "PT2H"}}
	c := NewClient(f, nil, time.Second)

	got, err := c.Durations(context.Background(), []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "aaaaaaaaaaa", "ccccccccccc"})
	if err != nil {
		t.Fatalf("Durations: %v", err)
	}
	if got["aaaaaaaaaaa"] != "PT1M" || got["bbbbbbbbbbb"] != "PT2H" {
		t.Errorf("got %v", got)
	}
	if _, ok := got["ccccccccccc"]; ok {
		t.Error("unknown id should be absent")
	}
	if f.calls != 1 {
		t.Errorf("fetcher calls = %d, want 1 batch", f.calls)
	}
}

func TestClient_DurationErrorIsReported(t *testing.T) {
	c := NewClient(&fakeFetcher{err: errors.New("quota exceeded")}, nil, time.Second)
	if _, err := c.Duration(context.Background(), "aaaaaaaaaaa"); err == nil {
		t.Fatal("expected error")
	}
}

func TestClient_Unavailable(t *testing.T) {
	var c *Client
	if _, err := c.Durations(context.Background(), []string{"aaaaaaaaaaa"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("nil client err = %v, want ErrUnavailable", err)
	}
}
