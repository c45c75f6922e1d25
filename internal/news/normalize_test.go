package news

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fetchedAt = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name string
		link string
		want string
	}{
		{"path and query", "https://example.com/news/1?id=2", "/news/1?id=2"},
		{"path only", "https://example.com/news/1", "/news/1"},
		{"fragment ignored", "https://example.com/news/1#top", "/news/1"},
		{"unparsable", "http://[::1", "http://[::1"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fingerprint(tt.link))
			assert.Equal(t, Fingerprint(tt.link), Fingerprint(tt.link))
		})
	}
}

func TestFingerprintTruncates(t *testing.T) {
	long := "https://example.com/" + strings.Repeat("あ", 150)
	id := Fingerprint(long)
	assert.Len(t, []rune(id), maxIDRunes)

	bad := "http://[::1/" + strings.Repeat("x", 150)
	assert.Len(t, []rune(Fingerprint(bad)), maxIDRunes)
}

func TestFingerprintDistinguishesPaths(t *testing.T) {
	a := Fingerprint("https://example.com/a?x=1")
	b := Fingerprint("https://example.com/b?x=1")
	c := Fingerprint("https://other.example/a?x=1")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)
}

func TestNormalizeScenarioDropsEmptyTitle(t *testing.T) {
	items := []RawFeedItem{
		{Title: "駅前にカフェが開店", Link: "https://example.com/1", PubDate: "Wed, 01 May 2024 08:00:00 GMT"},
		{Title: "   ", Link: "https://example.com/2"},
		{Title: "カフェ新メニュー", GUID: "https://example.com/3"},
	}

	var got []Article
	for _, it := range items {
		if a, ok := Normalize(it, "カフェ", "Google News", fetchedAt); ok {
			got = append(got, a)
		}
	}

	require.Len(t, got, 2)
	assert.Equal(t, "https://example.com/3", got[1].Link)
	assert.Equal(t, "/3", got[1].ID)
}

func TestNormalizeFields(t *testing.T) {
	item := RawFeedItem{
		Title:      "<b>新店舗</b> &amp; 改装",
		Link:       " https://example.com/a?b=1 ",
		Content:    "<p>本文&nbsp;です</p>",
		PubDateISO: "2024-04-30T10:00:00+09:00",
		Source:     "日経",
	}

	a, ok := Normalize(item, "カフェ", "fallback", fetchedAt)
	require.True(t, ok)

	assert.Equal(t, "新店舗 & 改装", a.Title)
	assert.Equal(t, "https://example.com/a?b=1", a.Link)
	assert.Equal(t, "本文 です", a.Description)
	assert.Equal(t, "2024-04-30T10:00:00+09:00", a.PubDate)
	assert.Equal(t, "日経", a.Source)
	assert.Equal(t, "カフェ", a.Category)
	assert.Equal(t, fetchedAt, a.FetchedAt)
}

func TestNormalizeDefaults(t *testing.T) {
	a, ok := Normalize(RawFeedItem{Title: "見出し", Link: "https://example.com/x"}, "バー", "Yahoo!ニュース", fetchedAt)
	require.True(t, ok)

	assert.Equal(t, "見出し", a.Description)
	assert.Equal(t, "Yahoo!ニュース", a.Source)
	assert.Equal(t, fetchedAt.Format(time.RFC3339), a.PubDate)
}

func TestNormalizeKeepsUnparsableDate(t *testing.T) {
	a, ok := Normalize(RawFeedItem{Title: "t", Link: "https://e.com/x", PubDate: "昨日"}, "バー", "", fetchedAt)
	require.True(t, ok)
	assert.Equal(t, "昨日", a.PubDate)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b", CleanText("  a \n\t b "))
	assert.Equal(t, `"quoted" <tag> 'x'`, CleanText("&quot;quoted&quot; &lt;tag&gt; &#39;x&#39;"))
	assert.Equal(t, "link text source", CleanText(`<a href="https://e.com">link text</a>&nbsp;&nbsp;<font>source</font>`))
}
