package news

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(id, title string, rel, imp float64) ScoredArticle {
	return ScoredArticle{
		Article:         Article{ID: id, Title: title, Link: "https://example.com/" + id},
		Keep:            true,
		RelevanceScore:  rel,
		ImportanceScore: imp,
	}
}

func TestTitleSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, TitleSimilarity("新店舗オープン", "新店舗オープン"))
	assert.Equal(t, 1.0, TitleSimilarity("ＡＢＣ　ニュース", "abc ニュース"))
	assert.Equal(t, 0.0, TitleSimilarity("カフェ開店", "書籍販売"))
	assert.Equal(t, 0.0, TitleSimilarity("", "カフェ"))

	ab := TitleSimilarity("カフェが値上げ", "カフェ一斉値上げ")
	ba := TitleSimilarity("カフェ一斉値上げ", "カフェが値上げ")
	assert.Equal(t, ab, ba)
	assert.Greater(t, ab, 0.0)
	assert.Less(t, ab, 1.0)
}

func TestTitleSimilarityKeepsParticlesInsideWords(t *testing.T) {
	// "は" inside "はじめて" is part of a hiragana run and must survive.
	assert.Equal(t, []rune("はじめてカフェ"), normalizeTitle("はじめてカフェ"))
	assert.Equal(t, []rune("a社新店舗オープン"), normalizeTitle("A社が新店舗オープン"))
}

func TestClusterScenarioParaphrasedHeadlines(t *testing.T) {
	in := []ScoredArticle{
		scored("1", "A社が新店舗オープン", 0, 0),
		scored("2", "A社、新店舗をオープンへ", 0, 0),
	}
	require.GreaterOrEqual(t, TitleSimilarity(in[0].Title, in[1].Title), DefaultThreshold)

	got := Cluster(in, DefaultThreshold, false)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

func TestClusterPrefersHigherScore(t *testing.T) {
	in := []ScoredArticle{
		scored("1", "A社が新店舗オープン", 1, 1),
		scored("2", "A社、新店舗をオープンへ", 5, 3),
		scored("3", "B社が撤退", 0, 0),
	}
	var groups []Group = Groups(in, 0.75, true)
	require.Len(t, groups, 2)
	assert.Equal(t, "2", groups[0].Representative.ID)
	assert.Equal(t, []string{"1", "2"}, groups[0].Members)
	assert.Equal(t, "3", groups[1].Representative.ID)
}

func TestClusterTieKeepsFirstSeen(t *testing.T) {
	in := []ScoredArticle{
		scored("1", "新店舗オープン", 2, 2),
		scored("2", "新店舗オープン", 3, 1),
	}
	got := Cluster(in, 0.75, false)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

func TestClusterThresholdBoundaries(t *testing.T) {
	same := []ScoredArticle{scored("1", "同一見出し", 0, 0), scored("2", "同一見出し", 0, 0)}
	for _, th := range []float64{0.01, 0.5, 0.75, 1.0} {
		assert.Len(t, Cluster(same, th, false), 1, "threshold %v", th)
	}

	disjoint := []ScoredArticle{scored("1", "カフェ開店", 0, 0), scored("2", "書籍販売", 0, 0)}
	for _, th := range []float64{0.01, 0.5, 1.0} {
		assert.Len(t, Cluster(disjoint, th, false), 2, "threshold %v", th)
	}
}

func TestClusterEdgeCases(t *testing.T) {
	assert.Empty(t, Cluster(nil, 0.75, false))

	one := []ScoredArticle{scored("1", "単独", 0, 0)}
	assert.Equal(t, one, Cluster(one, 0.75, false))

	// Out-of-range thresholds fall back to the default.
	pair := []ScoredArticle{scored("1", "A社が新店舗オープン", 0, 0), scored("2", "A社、新店舗をオープンへ", 0, 0)}
	assert.Len(t, Cluster(pair, 0, false), 1)
	assert.Len(t, Cluster(pair, 1.5, false), 1)
}
