package news

import (
	"strings"

	"github.com/deusflow/bizfeed/internal/vocab"
)

// Filter keeps the articles relevant to keyword. Blocklisted recruitment terms
// always exclude. Beauty categories require a hit in the beauty vocabulary;
// every other keyword requires a hit in its expansion set. An empty keyword
// matches every article that passes the block rule.
func Filter(articles []Article, keyword string, tables *vocab.Tables) []Article {
	if tables == nil {
		tables = &vocab.Tables{}
	}
	terms := tables.Terms(keyword)
	beauty := tables.IsBeautyCategory(keyword)
	matchAll := strings.TrimSpace(keyword) == ""

	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		text := strings.ToLower(a.Title + " " + a.Description)
		if containsAny(text, tables.Blocklist) {
			continue
		}
		if beauty {
			if !containsAny(text, tables.BeautyVocabulary) {
				continue
			}
		} else if !matchAll && !containsAny(text, terms) {
			continue
		}
		out = append(out, a)
	}
	return out
}
