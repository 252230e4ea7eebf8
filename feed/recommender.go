// Package feed ranks the published catalog for a viewer and serves the
// home feed and similar-video lists.
package feed

import (
	"context"

	"openstream/logging"
	"openstream/videos"
)

// Recommender ranks the published catalog by the viewer's liked themes and
// quality score.
type Recommender struct {
	Store *videos.Store
}

// Recommend returns the ranked catalog for userID. Fetch failures are logged
// and yield an empty list.
func (r *Recommender) Recommend(ctx context.Context, userID string) []Scored {
	log := logging.Ctx(ctx)
	catalog, err := r.Store.ListPublished(ctx, videos.NewestFirst, 0)
	if err != nil {
		log.Error().Err(err).Msg("recommend: catalog fetch failed")
		return []Scored{}
	}
	var liked []string
	if userID != "" {
		if liked, err = r.Store.LikedThemes(ctx, userID); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("recommend: liked themes fetch failed")
			return []Scored{}
		}
	}
	return Rank(catalog, liked)
}
