package rss

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/bizfeed/internal/fallback"
	"github.com/deusflow/bizfeed/internal/metrics"
	"github.com/deusflow/bizfeed/internal/news"
	"github.com/deusflow/bizfeed/internal/ratelimit"
	"github.com/deusflow/bizfeed/internal/vocab"
)

const (
	DefaultAttemptTimeout = 8 * time.Second
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultGoogleURL      = "https://news.google.com/rss/search"
	DefaultYahooURL       = "https://news.yahoo.co.jp/rss/search"

	maxBodyBytes = 8 << 20
)

// DefaultProxies are tried in order for the primary source.
var DefaultProxies = []string{
	"https://api.allorigins.win/raw?url=",
	"https://api.rss2json.com/v1/api.json?rss_url=",
}

// Source is one upstream news search feed.
type Source struct {
	Name string
	// Endpoint builds the feed URL for a search query.
	Endpoint func(query string) string
	// Proxies are URL prefixes the escaped endpoint is appended to. An empty
	// prefix requests the endpoint directly. No proxies means direct only.
	Proxies []string
	// Negative appends the recruitment exclusion terms to the query.
	Negative bool
}

// Config tunes a Fetcher.
type Config struct {
	GoogleURL         string
	YahooURL          string
	Scope             string // "jp" or "global"
	Proxies           []string
	AttemptTimeout    time.Duration
	UserAgent         string
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Fetcher retrieves articles for keywords, falling back across proxies and sources.
type Fetcher struct {
	client    *http.Client
	sources   []Source
	tables    *vocab.Tables
	hosts     *ratelimit.Hosts
	timeout   time.Duration
	userAgent string
	log       *slog.Logger
	now       func() time.Time
}

// GoogleNews builds the primary source.
func GoogleNews(baseURL, scope string, proxies []string) Source {
	if baseURL == "" {
		baseURL = DefaultGoogleURL
	}
	gl, ceid := "JP", "JP:ja"
	if scope == "global" {
		gl, ceid = "US", "US:en"
	}
	return Source{
		Name: "Google News",
		Endpoint: func(q string) string {
			return fmt.Sprintf("%s?q=%s&hl=ja&gl=%s&ceid=%s", baseURL, url.QueryEscape(q), gl, ceid)
		},
		Proxies:  proxies,
		Negative: true,
	}
}

// YahooNews builds the secondary source.
func YahooNews(baseURL string) Source {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	return Source{
		Name: "Yahoo!ニュース",
		Endpoint: func(q string) string {
			return baseURL + "?p=" + url.QueryEscape(q)
		},
	}
}

// New creates a Fetcher with the primary and secondary sources.
func New(cfg Config, tables *vocab.Tables, hosts *ratelimit.Hosts, log *slog.Logger) *Fetcher {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Proxies == nil {
		cfg.Proxies = DefaultProxies
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if tables == nil {
		tables = vocab.Default()
	}
	if hosts == nil {
		hosts = ratelimit.NewHosts(cfg.RequestsPerSecond, 1)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		client: cfg.HTTPClient,
		sources: []Source{
			GoogleNews(cfg.GoogleURL, cfg.Scope, cfg.Proxies),
			YahooNews(cfg.YahooURL),
		},
		tables:    tables,
		hosts:     hosts,
		timeout:   cfg.AttemptTimeout,
		userAgent: cfg.UserAgent,
		log:       log.With("component", "fetcher"),
		now:       time.Now,
	}
}

// Query ORs the keywords and appends "-term" exclusions.
func Query(keywords, negative []string) string {
	var kws []string
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			kws = append(kws, k)
		}
	}
	var b strings.Builder
	b.WriteString(strings.Join(kws, " OR "))
	for _, n := range negative {
		if n = strings.TrimSpace(n); n != "" {
			b.WriteString(" -")
			b.WriteString(n)
		}
	}
	return b.String()
}

// Fetch returns articles for keywords tagged with category. The secondary
// source is consulted only when the primary fails or comes back empty. The
// error is a *fallback.ExhaustedError when every path failed.
func (f *Fetcher) Fetch(ctx context.Context, keywords []string, category string) ([]news.Article, error) {
	strategies := make([]fallback.Strategy[[]news.Article], 0, len(f.sources))
	for _, src := range f.sources {
		src := src
		strategies = append(strategies, fallback.Strategy[[]news.Article]{
			Name: src.Name,
			Do: func(ctx context.Context) ([]news.Article, error) {
				return f.fetchSource(ctx, src, keywords, category)
			},
		})
	}
	return fallback.Run(ctx, f.log, strategies, isEmpty)
}

// FetchKeyword fetches a single keyword and retries once with its designated
// synonym when nothing comes back. If the retry also fails the original error
// is returned.
func (f *Fetcher) FetchKeyword(ctx context.Context, keyword string) ([]news.Article, error) {
	articles, err := f.Fetch(ctx, []string{keyword}, keyword)
	if err == nil && len(articles) > 0 {
		return articles, nil
	}

	syn, ok := f.tables.Synonym(keyword)
	if !ok || syn == keyword {
		return articles, err
	}
	f.log.Info("retrying with synonym", "keyword", keyword, "synonym", syn)

	retried, rerr := f.Fetch(ctx, []string{syn}, keyword)
	if rerr != nil {
		if err != nil {
			return nil, err
		}
		return nil, rerr
	}
	return retried, nil
}

func (f *Fetcher) fetchSource(ctx context.Context, src Source, keywords []string, category string) ([]news.Article, error) {
	var negative []string
	if src.Negative {
		negative = f.tables.NegativeTerms
	}
	target := src.Endpoint(Query(keywords, negative))

	proxies := src.Proxies
	if len(proxies) == 0 {
		proxies = []string{""}
	}

	strategies := make([]fallback.Strategy[[]news.Article], 0, len(proxies))
	for _, p := range proxies {
		reqURL := target
		if p != "" {
			reqURL = p + url.QueryEscape(target)
		}
		name := src.Name + " via " + proxyLabel(p)
		strategies = append(strategies, fallback.Strategy[[]news.Article]{
			Name: name,
			Do: func(ctx context.Context) ([]news.Article, error) {
				articles, err := f.attempt(ctx, src, reqURL, category)
				if err != nil {
					metrics.FetchAttemptFailures.WithLabelValues(name).Inc()
				}
				return articles, err
			},
		})
	}
	return fallback.Run(ctx, f.log, strategies, isEmpty)
}

// attempt performs one bounded GET and normalizes the payload.
func (f *Fetcher) attempt(ctx context.Context, src Source, reqURL, category string) ([]news.Article, error) {
	u, err := url.Parse(reqURL)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}
	if err := f.hosts.Wait(ctx, u.Host); err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{URL: reqURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}

	feed, err := Parse(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &ParseError{URL: reqURL, Err: err}
	}

	sourceName := feed.Title
	if sourceName == "" {
		sourceName = src.Name
	}
	fetchedAt := f.now()

	articles := make([]news.Article, 0, len(feed.Items))
	for _, it := range feed.Items {
		if a, ok := news.Normalize(it, category, sourceName, fetchedAt); ok {
			articles = append(articles, a)
		}
	}
	metrics.ArticlesFetched.WithLabelValues(src.Name).Add(float64(len(articles)))
	f.log.Debug("fetched", "source", src.Name, "keyword", category, "count", len(articles))

	return news.SortByDate(news.UniqueByID(articles)), nil
}

func proxyLabel(prefix string) string {
	if prefix == "" {
		return "direct"
	}
	if u, err := url.Parse(prefix); err == nil && u.Host != "" {
		return u.Host
	}
	return prefix
}

func isEmpty(a []news.Article) bool { return len(a) == 0 }
