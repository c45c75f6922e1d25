// Package scoring defines the contract for annotating articles with a keep
// decision, relevance and importance scores and a summary.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/deusflow/bizfeed/internal/news"
)

const (
	DefaultBatchSize   = 5
	DefaultMaxArticles = 20
	DefaultDelay       = time.Second
	summaryRunes       = 60
)

// ErrScorer matches any *ScorerError.
var ErrScorer = errors.New("scorer failure")

// Scorer annotates articles for keyword. Implementations must return the
// same number of results in the same order as the input.
type Scorer interface {
	Evaluate(ctx context.Context, articles []news.Article, keyword string) ([]news.ScoredArticle, error)
}

// ScorerError reports a failed or malformed scoring call.
type ScorerError struct {
	Keyword string
	Batch   int
	Err     error
}

func (e *ScorerError) Error() string {
	return fmt.Sprintf("score %q batch %d: %v", e.Keyword, e.Batch, e.Err)
}

func (e *ScorerError) Unwrap() error { return e.Err }

func (e *ScorerError) Is(target error) bool { return target == ErrScorer }

// Batcher caps the input and calls the inner scorer in fixed-size batches
// with a pause between them. Any batch failure fails the whole call.
type Batcher struct {
	Inner       Scorer
	BatchSize   int
	MaxArticles int
	Delay       time.Duration
	Log         *slog.Logger
}

// NewBatcher wraps inner with the default batch size, cap and delay.
func NewBatcher(inner Scorer, log *slog.Logger) *Batcher {
	if log == nil {
		log = slog.Default()
	}
	return &Batcher{
		Inner:       inner,
		BatchSize:   DefaultBatchSize,
		MaxArticles: DefaultMaxArticles,
		Delay:       DefaultDelay,
		Log:         log.With("component", "scorer"),
	}
}

func (b *Batcher) Evaluate(ctx context.Context, articles []news.Article, keyword string) ([]news.ScoredArticle, error) {
	size := b.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	if b.MaxArticles > 0 && len(articles) > b.MaxArticles {
		articles = articles[:b.MaxArticles]
	}

	out := make([]news.ScoredArticle, 0, len(articles))
	for start, batch := 0, 0; start < len(articles); start, batch = start+size, batch+1 {
		if start > 0 && b.Delay > 0 {
			select {
			case <-ctx.Done():
				return nil, &ScorerError{Keyword: keyword, Batch: batch, Err: ctx.Err()}
			case <-time.After(b.Delay):
			}
		}

		end := min(start+size, len(articles))
		in := articles[start:end]
		res, err := b.Inner.Evaluate(ctx, in, keyword)
		if err != nil {
			return nil, &ScorerError{Keyword: keyword, Batch: batch, Err: err}
		}
		if err := checkBatch(in, res); err != nil {
			return nil, &ScorerError{Keyword: keyword, Batch: batch, Err: err}
		}
		if b.Log != nil {
			b.Log.Debug("batch scored", "keyword", keyword, "batch", batch, "count", len(res))
		}
		out = append(out, res...)
	}
	return out, nil
}

func checkBatch(in []news.Article, out []news.ScoredArticle) error {
	if len(in) != len(out) {
		return fmt.Errorf("got %d results for %d articles", len(out), len(in))
	}
	for i := range in {
		if in[i].ID != out[i].ID {
			return fmt.Errorf("result %d is for %q, want %q", i, out[i].ID, in[i].ID)
		}
	}
	return nil
}

// Local is the deterministic scorer used when no model credential is
// configured. It keeps everything, assigns no scores and summarizes with the
// first sentence of the description.
type Local struct{}

func (Local) Evaluate(_ context.Context, articles []news.Article, _ string) ([]news.ScoredArticle, error) {
	out := make([]news.ScoredArticle, len(articles))
	for i, a := range articles {
		out[i] = news.ScoredArticle{Article: a, Keep: true, Summary: FallbackSummary(a.Description)}
	}
	return out, nil
}

// FallbackSummary returns the first sentence of text, or its leading runes
// when no sentence break exists, capped with an ellipsis.
func FallbackSummary(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	sentence := text
	if i := strings.IndexAny(text, "。."); i >= 0 {
		sentence = strings.TrimSpace(text[:i])
	}
	if sentence == "" {
		sentence = truncate(text, summaryRunes)
	}

	if len([]rune(sentence)) > summaryRunes {
		return truncate(sentence, summaryRunes-3) + "..."
	}
	return sentence
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
