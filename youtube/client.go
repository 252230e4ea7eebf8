// Package youtube looks up video durations through the YouTube Data API.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"openstream/cache"
	"openstream/logging"
	"openstream/metrics"
)

// maxIDsPerCall is the Videos.List id limit.
const maxIDsPerCall = 50

// ErrUnavailable is returned when no API key is configured.
var ErrUnavailable = errors.New("youtube lookups are not configured")

// Fetcher fetches ISO-8601 durations keyed by video id. Ids without a
// result are absent from the map.
type Fetcher interface {
	FetchDurations(ctx context.Context, ids []string) (map[string]string, error)
}

// APIFetcher calls videos.list with part=contentDetails.
type APIFetcher struct {
	svc *yt.Service
}

func NewAPIFetcher(ctx context.Context, apiKey string) (*APIFetcher, error) {
	svc, err := yt.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &APIFetcher{svc: svc}, nil
}

func (f *APIFetcher) FetchDurations(ctx context.Context, ids []string) (map[string]string, error) {
	resp, err := f.svc.Videos.List([]string{"contentDetails"}).Id(strings.Join(ids, ",")).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(resp.Items))
	for _, item := range resp.Items {
		if item.ContentDetails != nil && item.ContentDetails.Duration != "" {
			out[item.Id] = item.ContentDetails.Duration
		}
	}
	return out, nil
}

// Client adds caching, a per-call timeout and a circuit breaker in front of
// a Fetcher. A nil Client or one without a Fetcher returns ErrUnavailable.
type Client struct {
	fetcher Fetcher
	cache   *cache.Cache
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[map[string]string]
}

func NewClient(f Fetcher, c *cache.Cache, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[map[string]string](gobreaker.Settings{
		Name:        "youtube-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return &Client{fetcher: f, cache: c, timeout: timeout, breaker: breaker}
}

func (c *Client) Available() bool { return c != nil && c.fetcher != nil }

// Durations resolves ISO-8601 durations for ids, consulting the cache first.
// The returned map may be partial; the error reports the first failed batch.
func (c *Client) Durations(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if !c.Available() {
		return out, ErrUnavailable
	}

	var missing []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if d, ok := c.cache.GetDuration(ctx, id); ok {
			out[id] = d
			continue
		}
		missing = append(missing, id)
	}

	var firstErr error
	for start := 0; start < len(missing); start += maxIDsPerCall {
		end := min(start+maxIDsPerCall, len(missing))
		batch := missing[start:end]

		got, err := c.breaker.Execute(func() (map[string]string, error) {
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			return c.fetcher.FetchDurations(callCtx, batch)
		})
		if err != nil {
			metrics.YouTubeLookups.WithLabelValues("error").Inc()
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics.YouTubeLookups.WithLabelValues("ok").Inc()
		for id, d := range got {
			out[id] = d
			c.cache.SetDuration(ctx, id, d)
		}
	}
	return out, firstErr
}

// Duration resolves a single id.
func (c *Client) Duration(ctx context.Context, id string) (string, error) {
	got, err := c.Durations(ctx, []string{id})
	if d, ok := got[id]; ok {
		return d, nil
	}
	if err == nil {
		err = fmt.Errorf("youtube video %s not found", id)
	}
	return "", err
}
