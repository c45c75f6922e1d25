package rss

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/bizfeed/internal/fallback"
	"github.com/deusflow/bizfeed/internal/vocab"
)

// recorder keeps the request URLs an httptest server saw.
type recorder struct {
	mu   sync.Mutex
	urls []*url.URL
}

func (r *recorder) add(u *url.URL) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, u)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.urls)
}

func (r *recorder) last() *url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.urls[len(r.urls)-1]
}

func serve(t *testing.T, rec *recorder, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.URL)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func rssBody(items ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>test feed</title>`)
	for _, it := range items {
		b.WriteString(it)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func rssItem(title, link, date string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><pubDate>%s</pubDate></item>`, title, link, date)
}

func newTestFetcher(cfg Config) *Fetcher {
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = 2 * time.Second
	}
	return New(cfg, vocab.Default(), nil, nil)
}

func TestQuery(t *testing.T) {
	assert.Equal(t, "カフェ OR 喫茶店 -採用 -求人", Query([]string{"カフェ", " ", "喫茶店"}, []string{"採用", "求人"}))
	assert.Equal(t, "バー", Query([]string{"バー"}, nil))
}

func TestFetchDirectPrimary(t *testing.T) {
	var google, yahoo recorder
	gs := serve(t, &google, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssBody(
			rssItem("カフェ開店", "https://example.com/1", "Wed, 01 May 2024 08:00:00 GMT"),
			rssItem("", "https://example.com/2", "Wed, 01 May 2024 09:00:00 GMT"),
			rssItem("カフェ値上げ", "https://example.com/3", "Thu, 02 May 2024 08:00:00 GMT"),
			rssItem("カフェ開店(重複)", "https://example.com/1", "Wed, 01 May 2024 08:00:00 GMT"),
		))
	})
	ys := serve(t, &yahoo, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	f := newTestFetcher(Config{GoogleURL: gs.URL, YahooURL: ys.URL, Proxies: []string{""}})
	got, err := f.Fetch(context.Background(), []string{"カフェ"}, "カフェ")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "カフェ値上げ", got[0].Title, "newest first")
	assert.Equal(t, "カフェ開店", got[1].Title)
	assert.Equal(t, "カフェ", got[0].Category)
	assert.Equal(t, "test feed", got[0].Source)
	assert.Equal(t, 0, yahoo.count(), "secondary must not be consulted")

	q := google.last().Query()
	assert.Contains(t, q.Get("q"), "-求人")
	assert.Equal(t, "JP", q.Get("gl"))
	assert.Equal(t, "JP:ja", q.Get("ceid"))
}

func TestFetchProxyFallbackToEnvelope(t *testing.T) {
	var broken, envProxy, yahoo recorder
	bs := serve(t, &broken, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	es := serve(t, &envProxy, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, envelopeFixture)
	})
	ys := serve(t, &yahoo, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	f := newTestFetcher(Config{
		GoogleURL: "https://news.example/rss/search",
		YahooURL:  ys.URL,
		Scope:     "global",
		Proxies:   []string{bs.URL + "/raw?url=", es.URL + "/api.json?rss_url="},
	})
	got, err := f.Fetch(context.Background(), []string{"ヨガスタジオ"}, "ヨガスタジオ")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "Google News", got[0].Source)
	assert.Equal(t, 1, broken.count())
	assert.Equal(t, 0, yahoo.count())

	target, err := url.Parse(envProxy.last().Query().Get("rss_url"))
	require.NoError(t, err)
	assert.Equal(t, "news.example", target.Host)
	assert.Equal(t, "US", target.Query().Get("gl"))
	assert.Contains(t, target.Query().Get("q"), "ヨガスタジオ")
}

func TestFetchFallsBackToSecondary(t *testing.T) {
	var google, yahoo recorder
	gs := serve(t, &google, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody())
	})
	ys := serve(t, &yahoo, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody(rssItem("パン屋の新店", "https://yahoo.example/1", "Wed, 01 May 2024 08:00:00 GMT")))
	})

	f := newTestFetcher(Config{GoogleURL: gs.URL, YahooURL: ys.URL, Proxies: []string{""}})
	got, err := f.Fetch(context.Background(), []string{"パン屋"}, "パン屋")
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, 1, google.count())
	q := yahoo.last().Query().Get("p")
	assert.Equal(t, "パン屋", q)
	assert.NotContains(t, q, "-")
}

func TestFetchTimeoutAdvances(t *testing.T) {
	var slow, fast recorder
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	ss := serve(t, &slow, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	fs := serve(t, &fast, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody(rssItem("バー特集", "https://example.com/bar", "Wed, 01 May 2024 08:00:00 GMT")))
	})

	f := newTestFetcher(Config{
		GoogleURL:      "https://news.example/rss/search",
		YahooURL:       "http://127.0.0.1:1/unused",
		Proxies:        []string{ss.URL + "/?u=", fs.URL + "/?u="},
		AttemptTimeout: 100 * time.Millisecond,
	})

	start := time.Now()
	got, err := f.Fetch(context.Background(), []string{"バー"}, "バー")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, fast.count())
}

func TestFetchExhausted(t *testing.T) {
	var rec recorder
	down := serve(t, &rec, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	f := newTestFetcher(Config{GoogleURL: down.URL, YahooURL: down.URL, Proxies: []string{"", down.URL + "/?u="}})
	_, err := f.Fetch(context.Background(), []string{"ヨガスタジオ"}, "ヨガスタジオ")

	require.Error(t, err)
	assert.ErrorIs(t, err, fallback.ErrExhausted)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 3, rec.count())
}

func TestFetchKeywordSynonymRetry(t *testing.T) {
	var google recorder
	gs := serve(t, &google, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Query().Get("q"), "美容院") {
			fmt.Fprint(w, rssBody(rssItem("美容院で予約増", "https://example.com/s", "Wed, 01 May 2024 08:00:00 GMT")))
			return
		}
		fmt.Fprint(w, rssBody())
	})
	var yahoo recorder
	ys := serve(t, &yahoo, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody())
	})

	f := newTestFetcher(Config{GoogleURL: gs.URL, YahooURL: ys.URL, Proxies: []string{""}})
	got, err := f.FetchKeyword(context.Background(), "美容室")
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "美容室", got[0].Category)
	assert.Equal(t, 2, google.count())
}

func TestFetchKeywordWithoutSynonymReturnsOriginalError(t *testing.T) {
	var rec recorder
	down := serve(t, &rec, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	f := newTestFetcher(Config{GoogleURL: down.URL, YahooURL: down.URL, Proxies: []string{""}})
	_, err := f.FetchKeyword(context.Background(), "ラーメン")
	assert.ErrorIs(t, err, fallback.ErrExhausted)
	assert.Equal(t, 2, rec.count())
}
