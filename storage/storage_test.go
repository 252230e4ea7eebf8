package storage

import (
	"testing"
	"time"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"clip.mp4", "clip.mp4"},
		{"my holiday (1).mov", "my_holiday_1_.mov"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\vidéo.mp4`, "vid_o.mp4"},
		{"...", "file"},
		{"", "file"},
	}
	for _, tc := range tests {
		if got := SanitizeName(tc.in); got != tc.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestObjectName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	if got := ObjectName(now, "a b.mp4"); got != "1700000000123_a_b.mp4" {
		t.Errorf("ObjectName = %q", got)
	}
}

func TestPublicURL(t *testing.T) {
	if got := PublicURL("", BucketVideos, "k.mp4"); got != "/storage/videos/k.mp4" {
		t.Errorf("relative = %q", got)
	}
	if got := PublicURL("https://cdn.example", BucketThumbnails, "t.jpg"); got != "https://cdn.example/thumbnails/t.jpg" {
		t.Errorf("absolute = %q", got)
	}
	if got := PublicURL("https://cdn.example", BucketThumbnails, ""); got != "" {
		t.Errorf("empty key = %q", got)
	}
}
