package feed

import (
	"math"
	"sort"

	"openstream/videos"
)

// ThemeWeight is the bonus for sharing at least one theme with the viewer's
// liked themes. It outweighs any possible rating.
const ThemeWeight = 10

// Scored is a video with its recommendation score.
type Scored struct {
	videos.Video
	Score float64 `json:"score"`
}

// Score returns ThemeWeight*themeMatch + quality_score. Themes match by exact
// string equality. Missing or negative quality scores count as 0.
func Score(v *videos.Video, liked map[string]bool) float64 {
	var theme float64
	for _, t := range videos.NormalizeThemes(v.Themes) {
		if liked[t] {
			theme = 1
			break
		}
	}
	var rating float64
	if q := v.QualityScore; q != nil && !math.IsNaN(*q) && *q > 0 {
		rating = *q
	}
	return theme*ThemeWeight + rating
}

func likedSet(themes []string) map[string]bool {
	set := make(map[string]bool, len(themes))
	for _, t := range themes {
		if t != "" {
			set[t] = true
		}
	}
	return set
}

// Rank scores the published videos of catalog against the liked themes and
// returns them best first. Equal scores keep catalog order; unpublished
// videos are dropped whatever their score.
func Rank(catalog []videos.Video, likedThemes []string) []Scored {
	liked := likedSet(likedThemes)
	out := make([]Scored, 0, len(catalog))
	for i := range catalog {
		v := &catalog[i]
		if !v.Published() {
			continue
		}
		out = append(out, Scored{Video: *v, Score: Score(v, liked)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// ThemeSimilarity is the cosine similarity of two theme sets seen as binary
// vectors: |a∩b| / sqrt(|a|·|b|).
func ThemeSimilarity(a, b []string) float64 {
	sa, sb := likedSet(a), likedSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	var shared int
	for t := range sa {
		if sb[t] {
			shared++
		}
	}
	return float64(shared) / math.Sqrt(float64(len(sa))*float64(len(sb)))
}

// Similar returns published videos sharing themes with ref, most similar
// first, then by quality. ref itself is excluded.
func Similar(ref videos.Video, catalog []videos.Video, limit int) []Scored {
	var out []Scored
	for i := range catalog {
		v := &catalog[i]
		if v.ID == ref.ID || !v.Published() {
			continue
		}
		sim := ThemeSimilarity(ref.Themes, v.Themes)
		if sim == 0 {
			continue
		}
		out = append(out, Scored{Video: *v, Score: math.Round(sim*1000) / 1000})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return quality(&out[i].Video) > quality(&out[j].Video)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []Scored{}
	}
	return out
}

func quality(v *videos.Video) float64 {
	if v.QualityScore == nil {
		return 0
	}
	return *v.QualityScore
}
