// Package pipeline runs fetch, filter, score, dedupe, cluster and rank for a
// set of keywords and merges the per-keyword results.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/bizfeed/internal/metrics"
	"github.com/deusflow/bizfeed/internal/news"
	"github.com/deusflow/bizfeed/internal/scoring"
	"github.com/deusflow/bizfeed/internal/vocab"
)

const (
	DefaultLimit     = 10
	DefaultMaxScored = 20
)

var (
	// ErrNoKeywords is the only error Run returns.
	ErrNoKeywords = errors.New("pipeline: no keywords given")
	// ErrNoArticles marks a keyword that produced nothing after filtering or scoring.
	ErrNoArticles = errors.New("no articles")
)

// Fetcher retrieves articles for a single keyword.
type Fetcher interface {
	FetchKeyword(ctx context.Context, keyword string) ([]news.Article, error)
}

// Cache holds finished per-keyword results.
type Cache interface {
	Load(ctx context.Context, keyword string) ([]news.ScoredArticle, bool, error)
	Save(ctx context.Context, keyword string, articles []news.ScoredArticle) error
}

// Deps are the collaborators a Pipeline needs. Cache is optional.
type Deps struct {
	Fetcher Fetcher
	Scorer  scoring.Scorer
	Cache   Cache
	Vocab   *vocab.Tables
	Log     *slog.Logger
}

type Options struct {
	// Concurrency caps keyword workers. 1 processes keywords in order.
	Concurrency int
	// KeywordDelay is the pause after one keyword finishes and before the
	// next starts, when Concurrency is 1.
	KeywordDelay     time.Duration
	ClusterThreshold float64
	MaxScored        int
	Debug            bool
}

type Stage string

const (
	StageFetch Stage = "fetch"
	StageScore Stage = "score"
	StageEmpty Stage = "empty"
)

// KeywordFailure explains why a keyword contributed no articles.
type KeywordFailure struct {
	Keyword string `json:"keyword"`
	Stage   Stage  `json:"stage"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

type Result struct {
	RunID     string               `json:"runId"`
	Articles  []news.ScoredArticle `json:"articles"`
	Failures  []KeywordFailure     `json:"partialFailures"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

type Pipeline struct {
	deps Deps
	opts Options
	log  *slog.Logger
	now  func() time.Time
}

func New(deps Deps, opts Options) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.MaxScored <= 0 {
		opts.MaxScored = DefaultMaxScored
	}
	if opts.ClusterThreshold <= 0 || opts.ClusterThreshold > 1 {
		opts.ClusterThreshold = news.DefaultThreshold
	}
	if deps.Scorer == nil {
		deps.Scorer = scoring.Local{}
	}
	if deps.Vocab == nil {
		deps.Vocab = vocab.Default()
	}
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{deps: deps, opts: opts, log: log.With("component", "pipeline"), now: time.Now}
}

type keywordResult struct {
	articles []news.ScoredArticle
	failure  *KeywordFailure
}

// Run processes every keyword independently, then dedupes, clusters and
// ranks the concatenation. Per-keyword failures are reported in the result.
func (p *Pipeline) Run(ctx context.Context, keywords []string, limitPerKeyword int) (Result, error) {
	kws := cleanKeywords(keywords)
	if len(kws) == 0 {
		return Result{}, ErrNoKeywords
	}
	if limitPerKeyword <= 0 {
		limitPerKeyword = DefaultLimit
	}

	start := p.now()
	runID := uuid.NewString()
	log := p.log.With("run", runID)
	log.Info("run started", "keywords", len(kws), "limit", limitPerKeyword)

	results := make([]keywordResult, len(kws))
	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	pause := p.opts.Concurrency == 1 && p.opts.KeywordDelay > 0
	for i, kw := range kws {
		g.Go(func() error {
			results[i] = p.processKeyword(ctx, log, kw, limitPerKeyword)
			// the next g.Go blocks on this worker, so the pause falls between keywords
			if pause && i < len(kws)-1 {
				sleep(ctx, p.opts.KeywordDelay)
			}
			return nil
		})
	}
	_ = g.Wait()

	var all []news.ScoredArticle
	var failures []KeywordFailure
	for _, r := range results {
		all = append(all, r.articles...)
		if r.failure != nil {
			failures = append(failures, *r.failure)
			metrics.KeywordFailures.WithLabelValues(string(r.failure.Stage)).Inc()
		}
	}

	merged := p.refine(all)
	if max := limitPerKeyword * len(kws); len(merged) > max {
		merged = merged[:max]
	}
	if merged == nil {
		merged = []news.ScoredArticle{}
	}

	elapsed := p.now().Sub(start)
	metrics.RunDuration.Observe(elapsed.Seconds())
	metrics.Global.SetLastRun(elapsed, len(merged), len(failures))
	log.Info("run finished", "articles", len(merged), "failures", len(failures), "elapsed", elapsed)

	return Result{
		RunID:     runID,
		Articles:  merged,
		Failures:  failures,
		UpdatedAt: p.now(),
	}, nil
}

func (p *Pipeline) processKeyword(ctx context.Context, log *slog.Logger, kw string, limit int) keywordResult {
	log = log.With("keyword", kw)

	if p.deps.Cache != nil {
		cached, ok, err := p.deps.Cache.Load(ctx, kw)
		switch {
		case err != nil:
			log.Warn("cache read failed", "err", err)
		case ok && len(cached) > 0:
			log.Info("served from cache", "count", len(cached))
			return keywordResult{articles: head(cached, limit)}
		}
	}

	fetched, err := p.deps.Fetcher.FetchKeyword(ctx, kw)
	if err != nil {
		log.Warn("fetch failed", "err", err)
		return failed(kw, StageFetch, err)
	}

	filtered := news.Filter(fetched, kw, p.deps.Vocab)
	metrics.ArticlesFiltered.Add(float64(len(fetched) - len(filtered)))
	filtered = head(filtered, p.opts.MaxScored)
	log.Debug("filtered", "fetched", len(fetched), "kept", len(filtered))
	if len(filtered) == 0 {
		return failed(kw, StageEmpty, ErrNoArticles)
	}

	scored, err := p.deps.Scorer.Evaluate(ctx, filtered, kw)
	if err != nil {
		log.Warn("scoring failed, dropping keyword", "err", err)
		return failed(kw, StageScore, err)
	}

	kept := make([]news.ScoredArticle, 0, len(scored))
	for _, s := range scored {
		if s.Keep {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return failed(kw, StageEmpty, ErrNoArticles)
	}

	final := head(p.refine(kept), limit)
	if p.deps.Cache != nil {
		if err := p.deps.Cache.Save(ctx, kw, final); err != nil {
			log.Warn("cache write failed", "err", err)
		}
	}
	log.Info("keyword done", "count", len(final))
	return keywordResult{articles: final}
}

// refine dedupes, ranks, clusters and ranks again.
func (p *Pipeline) refine(in []news.ScoredArticle) []news.ScoredArticle {
	byID := news.UniqueByID(in)
	byTitle := news.UniqueByTitle(byID)
	byLink := news.UniqueByLink(byTitle)
	metrics.DuplicatesRemoved.WithLabelValues("id").Add(float64(len(in) - len(byID)))
	metrics.DuplicatesRemoved.WithLabelValues("title").Add(float64(len(byID) - len(byTitle)))
	metrics.DuplicatesRemoved.WithLabelValues("link").Add(float64(len(byTitle) - len(byLink)))

	ranked := news.Rank(byLink)
	clustered := news.Cluster(ranked, p.opts.ClusterThreshold, p.opts.Debug)
	metrics.ClustersMerged.Add(float64(len(ranked) - len(clustered)))
	return news.Rank(clustered)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func failed(kw string, stage Stage, err error) keywordResult {
	return keywordResult{failure: &KeywordFailure{Keyword: kw, Stage: stage, Message: err.Error(), Err: err}}
}

func head[T any](s []T, n int) []T {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	return s
}

func cleanKeywords(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
