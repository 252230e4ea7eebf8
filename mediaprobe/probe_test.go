package mediaprobe

import (
	"context"
	"errors"
	"testing"
	"time"
)

func stubbed(run runFunc, timeout time.Duration) *FFprobe {
	p := NewFFprobe("ffprobe", timeout)
	p.run = run
	return p
}

func TestDuration_ParsesFormatDuration(t *testing.T) {
	p := stubbed(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if args[len(args)-1] != "/tmp/clip.mp4" {
			t.Errorf("path arg = %q", args[len(args)-1])
		}
		return []byte(`{"format":{"duration":"93.250000"}}`), nil
	}, time.Second)

	got, err := p.Duration(context.Background(), "/tmp/clip.mp4")
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if got != 93.25 {
		t.Errorf("Duration = %v, want 93.25", got)
	}
}

func TestDuration_Timeout(t *testing.T) {
	p := stubbed(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, 10*time.Millisecond)

	if _, err := p.Duration(context.Background(), "x.mp4"); !errors.Is(err, ErrProbeTimeout) {
		t.Errorf("err = %v, want ErrProbeTimeout", err)
	}
}

func TestDuration_DecodeFailure(t *testing.T) {
	for _, out := range []string{`not json`, `{"format":{}}`, `{"format":{"duration":"N/A"}}`} {
		p := stubbed(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte(out), nil
		}, time.Second)
		if _, err := p.Duration(context.Background(), "x.mp4"); !errors.Is(err, ErrProbeDecode) {
			t.Errorf("output %q: err = %v, want ErrProbeDecode", out, err)
		}
	}
}

func TestDuration_CommandFailureIsDecodeError(t *testing.T) {
	p := stubbed(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}, time.Second)
	if _, err := p.Duration(context.Background(), "x.mp4"); !errors.Is(err, ErrProbeDecode) {
		t.Errorf("err = %v, want ErrProbeDecode", err)
	}
}
