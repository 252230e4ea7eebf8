// Package worker holds the background jobs that run beside the HTTP server.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"

	"openstream/logging"
	"openstream/videos"
	"openstream/youtube"
)

// DefaultBatch is how many videos one backfill pass looks at.
const DefaultBatch = 200

type durationStore interface {
	MissingYouTubeDurations(ctx context.Context, limit int) ([]videos.Video, error)
	SetDuration(ctx context.Context, id, iso string) error
}

// DurationBackfill periodically stores durations for YouTube videos that
// were saved without one.
type DurationBackfill struct {
	Videos  durationStore
	YouTube *youtube.Client
	Every   time.Duration
	Batch   int
}

// RunOnce fills one batch and returns how many videos were updated.
func (b *DurationBackfill) RunOnce(ctx context.Context) (int, error) {
	batch := b.Batch
	if batch <= 0 {
		batch = DefaultBatch
	}
	list, err := b.Videos.MissingYouTubeDurations(ctx, batch)
	if err != nil {
		return 0, err
	}
	if len(list) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(list))
	for _, v := range list {
		ids = append(ids, *v.YouTubeID)
	}
	got, lookupErr := b.YouTube.Durations(ctx, ids)

	updated := 0
	for _, v := range list {
		iso, ok := got[*v.YouTubeID]
		if !ok {
			continue
		}
		if err := b.Videos.SetDuration(ctx, v.ID, iso); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, lookupErr
}

// Serve implements suture.Service.
func (b *DurationBackfill) Serve(ctx context.Context) error {
	if !b.YouTube.Available() {
		logging.Info().Msg("duration backfill disabled: no YouTube API key")
		return suture.ErrDoNotRestart
	}
	every := b.Every
	if every <= 0 {
		every = 15 * time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		n, err := b.RunOnce(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			return ctx.Err()
		case err != nil:
			logging.Warn().Err(err).Int("updated", n).Msg("duration backfill incomplete")
		case n > 0:
			logging.Info().Int("updated", n).Msg("duration backfill")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *DurationBackfill) String() string { return "duration-backfill" }
