package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/deusflow/bizfeed/internal/news"
	"github.com/deusflow/bizfeed/internal/ratelimit"
	"github.com/deusflow/bizfeed/internal/retry"
	"github.com/deusflow/bizfeed/internal/scoring"
)

const DefaultModel = "gemini-1.5-flash"

const maxDescriptionRunes = 500

// generator is the single model call the scorer needs.
type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type genaiGenerator struct {
	model *genai.GenerativeModel
}

func (g genaiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from Gemini")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

// Scorer implements scoring.Scorer on a Gemini model.
type Scorer struct {
	client *genai.Client
	gen    generator
	budget *ratelimit.Budget
	retry  retry.Config
	log    *slog.Logger
}

var _ scoring.Scorer = (*Scorer)(nil)

// NewScorer connects to Gemini. budget may be nil for unlimited calls.
func NewScorer(ctx context.Context, apiKey, model string, budget *ratelimit.Budget, log *slog.Logger) (*Scorer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}

	m := client.GenerativeModel(model)
	m.ResponseMIMEType = "application/json"
	m.SetTemperature(0.2)

	s := newScorer(genaiGenerator{model: m}, budget, log)
	s.client = client
	return s, nil
}

func newScorer(gen generator, budget *ratelimit.Budget, log *slog.Logger) *Scorer {
	if log == nil {
		log = slog.Default()
	}
	return &Scorer{
		gen:    gen,
		budget: budget,
		retry:  retry.Config{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true},
		log:    log.With("component", "gemini"),
	}
}

func (s *Scorer) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// Evaluate asks the model to grade articles for keyword in one call.
func (s *Scorer) Evaluate(ctx context.Context, articles []news.Article, keyword string) ([]news.ScoredArticle, error) {
	if len(articles) == 0 {
		return nil, nil
	}
	prompt := buildPrompt(articles, keyword)

	var out []news.ScoredArticle
	err := retry.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		if s.budget != nil {
			if err := s.budget.Use(); err != nil {
				return retry.Permanent(err)
			}
		}
		text, err := s.gen.Generate(ctx, prompt)
		if err != nil {
			s.log.Warn("generate failed", "keyword", keyword, "err", err)
			return err
		}
		scored, err := parseResponse(text, articles)
		if err != nil {
			s.log.Warn("unparsable response", "keyword", keyword, "err", err)
			return err
		}
		out = scored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func buildPrompt(articles []news.Article, keyword string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `あなたは「%s」業界の経営者向けにニュースを選別する編集者です。
以下の記事それぞれについて評価してください。

- keep: 業界の経営者にとって有益なら true、求人広告や無関係な記事なら false
- relevance: 「%s」との関連度 (0〜10)
- importance: 経営判断への重要度 (0〜10)
- summary: 日本語で60文字以内の1文要約

記事と同じ順番・同じ件数の JSON 配列のみを出力してください。
形式: [{"index":0,"keep":true,"relevance":7,"importance":5,"summary":"..."}]

`, keyword, keyword)

	for i, a := range articles {
		desc := a.Description
		if utf8.RuneCountInString(desc) > maxDescriptionRunes {
			desc = string([]rune(desc)[:maxDescriptionRunes])
		}
		fmt.Fprintf(&b, "[%d]\nタイトル: %s\n本文: %s\n\n", i, a.Title, desc)
	}
	return b.String()
}

type verdict struct {
	Index      *int    `json:"index"`
	Keep       bool    `json:"keep"`
	Relevance  float64 `json:"relevance"`
	Importance float64 `json:"importance"`
	Summary    string  `json:"summary"`
}

func parseResponse(text string, articles []news.Article) ([]news.ScoredArticle, error) {
	text = stripFence(text)

	var verdicts []verdict
	if err := json.Unmarshal([]byte(text), &verdicts); err != nil {
		return nil, fmt.Errorf("decode verdicts: %w", err)
	}
	if len(verdicts) != len(articles) {
		return nil, fmt.Errorf("got %d verdicts for %d articles", len(verdicts), len(articles))
	}

	out := make([]news.ScoredArticle, len(articles))
	for i, v := range verdicts {
		if v.Index != nil && *v.Index != i {
			return nil, fmt.Errorf("verdict %d carries index %d", i, *v.Index)
		}
		summary := strings.TrimSpace(v.Summary)
		if summary == "" {
			summary = scoring.FallbackSummary(articles[i].Description)
		}
		out[i] = news.ScoredArticle{
			Article:         articles[i],
			Keep:            v.Keep,
			RelevanceScore:  clamp(v.Relevance),
			ImportanceScore: clamp(v.Importance),
			Summary:         summary,
		}
	}
	return out, nil
}

// stripFence removes a ```json ... ``` wrapper if the model added one.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 10:
		return 10
	default:
		return v
	}
}
