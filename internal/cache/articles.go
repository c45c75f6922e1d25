package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deusflow/bizfeed/internal/news"
)

// Articles stores per-keyword results as JSON under the daily key.
type Articles struct {
	Store    Store
	TTL      time.Duration
	Location *time.Location
	Now      func() time.Time
}

func (a *Articles) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Load returns today's articles for keyword.
func (a *Articles) Load(ctx context.Context, keyword string) ([]news.ScoredArticle, bool, error) {
	return a.LoadForDate(ctx, keyword, a.now())
}

// LoadForDate returns the articles stored for keyword on the day containing t.
func (a *Articles) LoadForDate(ctx context.Context, keyword string, t time.Time) ([]news.ScoredArticle, bool, error) {
	key := Key(keyword, t, a.Location)
	raw, ok, err := a.Store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	var out []news.ScoredArticle
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return out, true, nil
}

// Save stores articles under today's key for keyword.
func (a *Articles) Save(ctx context.Context, keyword string, articles []news.ScoredArticle) error {
	key := Key(keyword, a.now(), a.Location)
	raw, err := json.Marshal(articles)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	ttl := a.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := a.Store.Put(ctx, key, raw, ttl); err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	return nil
}
