package rss

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	rssfeed "github.com/mmcdole/gofeed/rss"

	"github.com/deusflow/bizfeed/internal/news"
)

// Feed is a parsed payload: the channel title plus its raw entries.
type Feed struct {
	Title string
	Items []news.RawFeedItem
}

// envelope is the feed-to-JSON aggregator response shape.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Feed    struct {
		Title string `json:"title"`
	} `json:"feed"`
	Items []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		GUID        string `json:"guid"`
		Description string `json:"description"`
		Content     string `json:"content"`
		PubDate     string `json:"pubDate"`
		PubDateISO  string `json:"pubDate_iso"`
		PubDateTZ   string `json:"pubDate_tz"`
		Source      string `json:"source"`
	} `json:"items"`
}

// Parse detects whether body is a JSON envelope or feed markup and decodes it.
func Parse(body []byte, contentType string) (*Feed, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 {
		return nil, errors.New("empty payload")
	}
	if trimmed[0] == '{' || strings.Contains(strings.ToLower(contentType), "json") {
		return parseJSON(trimmed)
	}
	return parseMarkup(trimmed)
}

func parseJSON(body []byte) (*Feed, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	// No status field: a plain JSON Feed document rather than an aggregator envelope.
	if env.Status == "" {
		return parseUniversal(body)
	}
	if env.Status != "ok" {
		return nil, fmt.Errorf("envelope status %q: %s", env.Status, env.Message)
	}
	if len(env.Items) == 0 {
		return nil, ErrNoItems
	}

	feed := &Feed{Title: strings.TrimSpace(env.Feed.Title)}
	for _, it := range env.Items {
		feed.Items = append(feed.Items, news.RawFeedItem{
			Title:       it.Title,
			Link:        it.Link,
			GUID:        it.GUID,
			Description: it.Description,
			Content:     it.Content,
			PubDate:     it.PubDate,
			PubDateISO:  it.PubDateISO,
			PubDateTZ:   it.PubDateTZ,
			Source:      it.Source,
		})
	}
	return feed, nil
}

func parseMarkup(body []byte) (*Feed, error) {
	switch gofeed.DetectFeedType(bytes.NewReader(body)) {
	case gofeed.FeedTypeRSS:
		return parseRSS(body)
	case gofeed.FeedTypeAtom, gofeed.FeedTypeJSON:
		return parseUniversal(body)
	default:
		return nil, errors.New("unrecognized feed format")
	}
}

// parseRSS uses the RSS-specific parser so the per-item <source> survives.
func parseRSS(body []byte) (*Feed, error) {
	fp := &rssfeed.Parser{}
	f, err := fp.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rss: %w", err)
	}

	feed := &Feed{Title: strings.TrimSpace(f.Title)}
	for _, it := range f.Items {
		raw := news.RawFeedItem{
			Title:       it.Title,
			Link:        it.Link,
			Description: it.Description,
			Content:     it.Content,
			PubDate:     it.PubDate,
		}
		if it.GUID != nil {
			raw.GUID = it.GUID.Value
		}
		if it.Source != nil {
			raw.Source = it.Source.Title
		}
		feed.Items = append(feed.Items, raw)
	}
	return feed, nil
}

func parseUniversal(body []byte) (*Feed, error) {
	f, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}

	feed := &Feed{Title: strings.TrimSpace(f.Title)}
	for _, it := range f.Items {
		feed.Items = append(feed.Items, news.RawFeedItem{
			Title:       it.Title,
			Link:        it.Link,
			GUID:        it.GUID,
			Description: it.Description,
			Content:     it.Content,
			PubDate:     it.Published,
			PubDateISO:  it.Updated,
		})
	}
	return feed, nil
}
