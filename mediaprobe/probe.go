// Package mediaprobe reads the duration of a media file with ffprobe.
package mediaprobe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var (
	// ErrProbeTimeout means ffprobe did not finish within the timeout.
	ErrProbeTimeout = errors.New("media probe timed out")
	// ErrProbeDecode means ffprobe ran but reported no usable duration.
	ErrProbeDecode = errors.New("media duration could not be decoded")
)

// Prober returns a media file's duration in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// FFprobe shells out to ffprobe.
type FFprobe struct {
	Path    string
	Timeout time.Duration
	run     runFunc
}

func NewFFprobe(path string, timeout time.Duration) *FFprobe {
	if path == "" {
		path = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &FFprobe{Path: path, Timeout: timeout, run: execRun}
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (p *FFprobe) Duration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	out, err := p.run(ctx, p.Path,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	if ctx.Err() == context.DeadlineExceeded {
		return 0, ErrProbeTimeout
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbeDecode, err)
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbeDecode, err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return 0, fmt.Errorf("%w: duration %q", ErrProbeDecode, parsed.Format.Duration)
	}
	return secs, nil
}
