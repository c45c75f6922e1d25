package news

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

const maxIDRunes = 100

// Fingerprint derives a stable article id from its link: path plus query,
// truncated. Links that do not parse fall back to the raw string.
func Fingerprint(link string) string {
	link = strings.TrimSpace(link)
	u, err := url.Parse(link)
	if err == nil {
		key := u.EscapedPath()
		if u.RawQuery != "" {
			key += "?" + u.RawQuery
		}
		if key != "" {
			return truncateRunes(key, maxIDRunes)
		}
	}
	return truncateRunes(link, maxIDRunes)
}

// Normalize converts a feed item into an Article. It reports false when the
// item has no usable title or link.
func Normalize(item RawFeedItem, category, fallbackSource string, fetchedAt time.Time) (Article, bool) {
	title := CleanText(item.Title)
	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = strings.TrimSpace(item.GUID)
	}
	if title == "" || link == "" {
		return Article{}, false
	}

	desc := CleanText(item.Description)
	if desc == "" {
		desc = CleanText(item.Content)
	}
	if desc == "" {
		desc = title
	}

	source := strings.TrimSpace(item.Source)
	if source == "" {
		source = strings.TrimSpace(fallbackSource)
	}

	return Article{
		ID:          Fingerprint(link),
		Title:       title,
		Link:        link,
		Description: desc,
		PubDate:     resolvePubDate(item, fetchedAt),
		Source:      source,
		Category:    category,
		FetchedAt:   fetchedAt,
	}, true
}

func resolvePubDate(item RawFeedItem, fetchedAt time.Time) string {
	for _, raw := range []string{item.PubDate, item.PubDateISO, item.PubDateTZ} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if t, err := ParseDate(raw); err == nil {
			return t.Format(time.RFC3339)
		}
		return raw
	}
	return fetchedAt.Format(time.RFC3339)
}

// ParseDate parses the date layouts seen in feeds (RFC1123, RFC3339, ...).
func ParseDate(s string) (time.Time, error) {
	return dateparse.ParseAny(strings.TrimSpace(s))
}

// CleanText strips tags and decodes entities when s carries markup, then
// collapses whitespace.
func CleanText(s string) string {
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}
