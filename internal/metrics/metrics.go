package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ArticlesFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizfeed_articles_fetched_total",
		Help: "Articles normalized from upstream feeds.",
	}, []string{"source"})

	ArticlesFiltered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bizfeed_articles_filtered_total",
		Help: "Articles removed by the keyword filter.",
	})

	DuplicatesRemoved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizfeed_duplicates_removed_total",
		Help: "Articles removed by deduplication.",
	}, []string{"pass"})

	ClustersMerged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bizfeed_clusters_merged_total",
		Help: "Articles folded into another story's cluster.",
	})

	FetchAttemptFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizfeed_fetch_attempt_failures_total",
		Help: "Failed fetch attempts by strategy.",
	}, []string{"strategy"})

	KeywordFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizfeed_keyword_failures_total",
		Help: "Keywords that produced no articles, by stage.",
	}, []string{"stage"})

	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bizfeed_run_duration_seconds",
		Help:    "Wall time of a pipeline run.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)

// Registry holds every collector above.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		ArticlesFetched,
		ArticlesFiltered,
		DuplicatesRemoved,
		ClustersMerged,
		FetchAttemptFailures,
		KeywordFailures,
		RunDuration,
	)
}

// Health is the last-run snapshot served on /health.
type Health struct {
	mu sync.RWMutex

	LastRunTime     time.Time
	LastRunDuration time.Duration
	LastArticles    int
	LastFailures    int
	LastErrorTime   time.Time
	LastError       string
	IsHealthy       bool
}

var Global = &Health{IsHealthy: true}

func (m *Health) SetLastRun(d time.Duration, articles, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.LastRunDuration = d
	m.LastArticles = articles
	m.LastFailures = failures
	m.IsHealthy = true
}

func (m *Health) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Health) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"last_run_time":        formatTime(m.LastRunTime),
		"last_run_duration_ms": m.LastRunDuration.Milliseconds(),
		"last_articles":        m.LastArticles,
		"last_failures":        m.LastFailures,
		"last_error_time":      formatTime(m.LastErrorTime),
		"last_error":           m.LastError,
		"is_healthy":           m.IsHealthy,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
