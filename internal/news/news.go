package news

import (
	"strings"
	"time"
)

// RawFeedItem is one entry as parsed from a feed document. Any field may be empty.
type RawFeedItem struct {
	Title       string
	Link        string
	GUID        string
	Description string
	Content     string
	PubDate     string
	PubDateISO  string
	PubDateTZ   string
	Source      string
}

// Article is the canonical record the pipeline operates on.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	PubDate     string    `json:"pubDate"`
	Source      string    `json:"source"`
	Category    string    `json:"category"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// Base returns the article itself so plain and scored articles share the Entry helpers.
func (a Article) Base() Article { return a }

// ScoredArticle is an Article annotated by a scorer.
type ScoredArticle struct {
	Article
	Keep            bool    `json:"keep"`
	RelevanceScore  float64 `json:"relevanceScore,omitempty"`
	ImportanceScore float64 `json:"importanceScore,omitempty"`
	Summary         string  `json:"summary"`
}

// Combined is the primary ranking key. Missing scores count as zero.
func (s ScoredArticle) Combined() float64 {
	return s.RelevanceScore + s.ImportanceScore
}

// Entry is anything carrying an Article.
type Entry interface {
	Base() Article
}

// Group is a representative plus the ids of the articles merged into it.
type Group struct {
	Representative ScoredArticle
	Members        []string
}

// containsAny reports whether text contains any of terms, case-folded.
// Text is expected to be lower-cased already.
func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
