package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/bizfeed/internal/app"
	"github.com/deusflow/bizfeed/internal/config"
	"github.com/deusflow/bizfeed/internal/metrics"
	"github.com/deusflow/bizfeed/internal/news"
	"github.com/deusflow/bizfeed/internal/scoring"
)

type stubFetcher struct {
	calls    atomic.Int32
	articles []news.Article
	err      error
}

func (f *stubFetcher) FetchKeyword(context.Context, string) ([]news.Article, error) {
	f.calls.Add(1)
	return f.articles, f.err
}

func newTestApp(t *testing.T, cfg *config.Config, f *stubFetcher) *app.App {
	t.Helper()
	cfg.Pipeline.KeywordDelay = 0
	cfg.Scorer.BatchDelay = 0
	a, err := app.New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)),
		app.WithFetcher(f), app.WithScorer(scoring.Local{}))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestHealthMasksKey(t *testing.T) {
	cfg := config.Default()
	cfg.Scorer.GeminiAPIKey = "AIzaSyExampleKey1234"
	a := newTestApp(t, cfg, &stubFetcher{})
	metrics.Global.SetLastRun(time.Second, 3, 0)

	rec := httptest.NewRecorder()
	newMux(a).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Env    map[string]string `json:"env"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "AIza...1234", body.Env["gemini_api_key"])
	assert.NotContains(t, rec.Body.String(), "SyExampleKey")
}

func TestHealthReportsError(t *testing.T) {
	a := newTestApp(t, config.Default(), &stubFetcher{})
	metrics.Global.SetError("カフェ/fetch: all sources exhausted")
	defer metrics.Global.SetLastRun(0, 0, 0)

	rec := httptest.NewRecorder()
	newMux(a).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "exhausted")
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestApp(t, config.Default(), &stubFetcher{})
	metrics.ClustersMerged.Add(0)

	rec := httptest.NewRecorder()
	newMux(a).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "bizfeed_clusters_merged_total"))
}

func TestRunLoopFillsHealth(t *testing.T) {
	f := &stubFetcher{articles: []news.Article{
		{ID: "/1", Title: "駅前のカフェが開業", Link: "https://example.jp/1", Description: "カフェ", PubDate: "2024-05-01"},
	}}
	a := newTestApp(t, config.Default(), f)
	metrics.Global.SetLastRun(0, 0, 0)

	runLoop(context.Background(), a, slog.New(slog.NewTextHandler(io.Discard, nil)), []string{"カフェ"}, 5, 0)
	assert.Equal(t, int32(1), f.calls.Load(), "zero interval runs once")

	rec := httptest.NewRecorder()
	newMux(a).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		LastArticles int `json:"last_articles"`
		Stats        struct {
			Backend string         `json:"cache_backend"`
			Cache   map[string]int `json:"cache"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.LastArticles)
	assert.Equal(t, "memory", body.Stats.Backend)
	assert.Equal(t, 1, body.Stats.Cache["total_items"])
}

func TestRunLoopRepeatsUntilCancelled(t *testing.T) {
	f := &stubFetcher{err: errors.New("upstream down")}
	a := newTestApp(t, config.Default(), f)
	defer metrics.Global.SetLastRun(0, 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		runLoop(ctx, a, slog.New(slog.NewTextHandler(io.Discard, nil)), []string{"カフェ"}, 5, 10*time.Millisecond)
	}()

	require.Eventually(t, func() bool { return f.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runLoop did not stop after cancel")
	}
}
