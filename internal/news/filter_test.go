package news

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/deusflow/bizfeed/internal/vocab"
)

func art(id, title, desc string) Article {
	return Article{ID: id, Title: title, Link: "https://example.com/" + id, Description: desc}
}

func TestFilterBlocksJobAds(t *testing.T) {
	tables := vocab.Default()
	in := []Article{
		art("1", "人気カフェがスタッフ求人", "カフェで働こう"),
		art("2", "カフェの新メニュー", "春限定"),
	}

	got := Filter(in, "カフェ", tables)
	assert.Equal(t, []Article{in[1]}, got)
}

func TestFilterBlockIsCaseFolded(t *testing.T) {
	got := Filter([]Article{art("1", "カフェ特集", "Indeed掲載")}, "カフェ", vocab.Default())
	assert.Empty(t, got)
}

func TestFilterGenericUsesExpansions(t *testing.T) {
	in := []Article{
		art("1", "老舗の喫茶店が閉店", ""),
		art("2", "駅前の書店が閉店", ""),
	}
	got := Filter(in, "カフェ", vocab.Default())
	assert.Equal(t, []Article{in[0]}, got)
}

func TestFilterUnknownKeywordUsesSubstring(t *testing.T) {
	in := []Article{
		art("1", "ラーメン店が新装開店", ""),
		art("2", "うどん店が新装開店", ""),
	}
	got := Filter(in, "ラーメン", vocab.Default())
	assert.Equal(t, []Article{in[0]}, got)
}

func TestFilterBeautyCategoryNeedsVocabulary(t *testing.T) {
	in := []Article{
		art("1", "美容室の業界動向", "市場規模"),
		art("2", "美容室で予約が増加", ""),
		art("3", "話題のパーマ", "若年層に人気"),
	}
	got := Filter(in, "美容室", vocab.Default())
	assert.Equal(t, []Article{in[1], in[2]}, got)
}

func TestFilterIdempotent(t *testing.T) {
	in := []Article{
		art("1", "カフェ開店", ""),
		art("2", "カフェ求人", ""),
		art("3", "書店", ""),
		art("4", "喫茶店の値上げ", ""),
	}
	once := Filter(in, "カフェ", vocab.Default())
	twice := Filter(once, "カフェ", vocab.Default())
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("filter not idempotent (-once +twice):\n%s", diff)
	}
}

func TestFilterNilTables(t *testing.T) {
	got := Filter([]Article{art("1", "カフェ", "")}, "カフェ", nil)
	assert.Len(t, got, 1)
}

func TestFilterEmptyKeywordKeepsAllButBlocked(t *testing.T) {
	in := []Article{
		art("1", "書店の新刊フェア", ""),
		art("2", "倉庫スタッフ募集", ""),
		art("3", "カフェ開店", ""),
	}
	for _, kw := range []string{"", "  "} {
		assert.Equal(t, []Article{in[0], in[2]}, Filter(in, kw, vocab.Default()), "keyword %q", kw)
	}
}
