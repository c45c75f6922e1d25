package news

import (
	"log/slog"
	"math"
)

// DefaultThreshold is the title similarity at which two articles are the same story.
const DefaultThreshold = 0.75

// Cluster collapses near-identical titles and returns one representative per
// group, in the order the groups were first seen.
func Cluster(articles []ScoredArticle, threshold float64, debug bool) []ScoredArticle {
	groups := Groups(articles, threshold, debug)
	out := make([]ScoredArticle, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Representative)
	}
	return out
}

// Groups performs greedy single-linkage clustering against the current
// representatives. A member with a strictly higher combined score takes over
// as representative. Members lists every id in the group, representative included.
func Groups(articles []ScoredArticle, threshold float64, debug bool) []Group {
	if math.IsNaN(threshold) || threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}

	var clusters []Group
	for _, a := range articles {
		merged := false
		for i := range clusters {
			c := &clusters[i]
			sim := TitleSimilarity(c.Representative.Title, a.Title)
			if sim < threshold {
				continue
			}
			c.Members = append(c.Members, a.ID)
			if a.Combined() > c.Representative.Combined() {
				c.Representative = a
			}
			if debug {
				slog.Debug("cluster merge",
					"representative", c.Representative.Title,
					"merged", a.Title,
					"similarity", sim)
			}
			merged = true
			break
		}
		if !merged {
			clusters = append(clusters, Group{Representative: a, Members: []string{a.ID}})
		}
	}
	return clusters
}
