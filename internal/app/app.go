// Package app wires configuration into a ready pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deusflow/bizfeed/internal/cache"
	"github.com/deusflow/bizfeed/internal/config"
	"github.com/deusflow/bizfeed/internal/gemini"
	"github.com/deusflow/bizfeed/internal/metrics"
	"github.com/deusflow/bizfeed/internal/news"
	"github.com/deusflow/bizfeed/internal/pipeline"
	"github.com/deusflow/bizfeed/internal/ratelimit"
	"github.com/deusflow/bizfeed/internal/rss"
	"github.com/deusflow/bizfeed/internal/scoring"
	"github.com/deusflow/bizfeed/internal/vocab"
)

type App struct {
	cfg      *config.Config
	tables   *vocab.Tables
	store    Store
	articles *cache.Articles
	pipeline *pipeline.Pipeline
	budget   *ratelimit.Budget
	closers  []func()
	log      *slog.Logger
}

// Option adjusts wiring before the pipeline is built. Tests use it to swap
// collaborators.
type Option func(*builder)

type builder struct {
	fetcher pipeline.Fetcher
	scorer  scoring.Scorer
	store   cache.Store
}

func WithFetcher(f pipeline.Fetcher) Option { return func(b *builder) { b.fetcher = f } }
func WithScorer(s scoring.Scorer) Option    { return func(b *builder) { b.scorer = s } }
func WithStore(s cache.Store) Option        { return func(b *builder) { b.store = s } }

// New builds every component named in cfg.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	var b builder
	for _, o := range opts {
		o(&b)
	}

	tables, err := vocab.Load(cfg.VocabPath)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, tables: tables, log: log}

	if b.store != nil {
		a.store = nopCloser{b.store}
	} else if a.store, err = OpenStore(ctx, cfg.Cache, log); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := a.store.Close(); err != nil {
			log.Warn("cache close failed", "err", err)
		}
	})
	a.articles = &cache.Articles{Store: a.store, TTL: cfg.Cache.TTL, Location: cfg.Location()}

	fetcher := b.fetcher
	if fetcher == nil {
		hosts := ratelimit.NewHosts(cfg.Fetch.RequestsPerSecond, 1)
		fetcher = rss.New(rss.Config{
			GoogleURL:         cfg.Fetch.GoogleURL,
			YahooURL:          cfg.Fetch.YahooURL,
			Scope:             cfg.Fetch.Scope,
			Proxies:           cfg.Fetch.Proxies,
			AttemptTimeout:    cfg.Fetch.AttemptTimeout,
			UserAgent:         cfg.Fetch.UserAgent,
			RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		}, tables, hosts, log)
	}

	inner := b.scorer
	if inner == nil {
		if inner, err = a.openScorer(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	batcher := scoring.NewBatcher(inner, log)
	batcher.BatchSize = cfg.Scorer.BatchSize
	batcher.MaxArticles = cfg.Scorer.MaxArticles
	batcher.Delay = cfg.Scorer.BatchDelay

	a.pipeline = pipeline.New(pipeline.Deps{
		Fetcher: fetcher,
		Scorer:  batcher,
		Cache:   a.articles,
		Vocab:   tables,
		Log:     log,
	}, pipeline.Options{
		Concurrency:      cfg.Pipeline.Concurrency,
		KeywordDelay:     cfg.Pipeline.KeywordDelay,
		ClusterThreshold: cfg.Pipeline.ClusterThreshold,
		MaxScored:        cfg.Scorer.MaxArticles,
		Debug:            cfg.Pipeline.Debug,
	})
	return a, nil
}

func (a *App) openScorer(ctx context.Context) (scoring.Scorer, error) {
	key := a.cfg.Scorer.GeminiAPIKey
	if key == "" {
		a.log.Warn("GEMINI_API_KEY not set, using local scorer")
		return scoring.Local{}, nil
	}
	a.budget = ratelimit.NewBudget("gemini", a.cfg.Scorer.DailyBudget)
	s, err := gemini.NewScorer(ctx, key, a.cfg.Scorer.Model, a.budget, a.log)
	if err != nil {
		return nil, fmt.Errorf("init gemini scorer: %w", err)
	}
	a.closers = append(a.closers, s.Close)
	a.log.Info("gemini scorer ready", "model", a.cfg.Scorer.Model, "key", config.MaskSecret(key))
	return s, nil
}

// Run executes the pipeline. Empty keywords fall back to the configured list,
// then to the preset list; a non-positive limit uses the configured one.
func (a *App) Run(ctx context.Context, keywords []string, limit int) (pipeline.Result, error) {
	if len(keywords) == 0 {
		keywords = a.cfg.Keywords
	}
	if len(keywords) == 0 {
		keywords = a.tables.PresetKeywords
	}
	if limit <= 0 {
		limit = a.cfg.Pipeline.LimitPerKeyword
	}

	res, err := a.pipeline.Run(ctx, keywords, limit)
	if err != nil {
		metrics.Global.SetError(err.Error())
		return res, err
	}
	if len(res.Articles) == 0 && len(res.Failures) > 0 {
		metrics.Global.SetError(errors.Join(failureErrors(res.Failures)...).Error())
	}
	return res, nil
}

// Purge removes expired cache entries.
func (a *App) Purge(ctx context.Context) (int, error) {
	return a.store.Purge(ctx)
}

// Cached returns what is stored for keyword on day without fetching. A zero
// day means today in the configured timezone.
func (a *App) Cached(ctx context.Context, keyword string, day time.Time) ([]news.ScoredArticle, bool, error) {
	if day.IsZero() {
		return a.articles.Load(ctx, keyword)
	}
	return a.articles.LoadForDate(ctx, keyword, day)
}

// Stats reports cache and scorer budget usage for the health payload.
func (a *App) Stats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{
		"cache_backend": a.cfg.Cache.Backend,
	}
	if cs, err := storeStats(ctx, a.store); err != nil {
		stats["cache_error"] = err.Error()
	} else if cs != nil {
		stats["cache"] = cs
	}
	if a.budget != nil {
		stats["scorer_budget"] = a.budget.GetStats()
	}
	return stats
}

func (a *App) Config() *config.Config { return a.cfg }

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func failureErrors(fs []pipeline.KeywordFailure) []error {
	out := make([]error, 0, len(fs))
	for _, f := range fs {
		out = append(out, fmt.Errorf("%s/%s: %w", f.Keyword, f.Stage, f.Err))
	}
	return out
}
