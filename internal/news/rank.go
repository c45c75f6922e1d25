package news

import (
	"sort"
	"time"
)

type dated[T any] struct {
	item T
	at   time.Time
	ok   bool
}

func withDates[T Entry](items []T) []dated[T] {
	out := make([]dated[T], len(items))
	for i, it := range items {
		t, err := ParseDate(it.Base().PubDate)
		out[i] = dated[T]{item: it, at: t, ok: err == nil}
	}
	return out
}

// newer reports whether a sorts before b by date. Parsable dates come before
// unparsable ones, and two unparsable dates keep their input order.
func newer[T any](a, b dated[T]) bool {
	if a.ok != b.ok {
		return a.ok
	}
	return a.ok && a.at.After(b.at)
}

func unwrap[T any](ds []dated[T]) []T {
	out := make([]T, len(ds))
	for i, d := range ds {
		out[i] = d.item
	}
	return out
}

// Rank orders by combined score descending, then publication date descending.
// The sort is stable and returns a new slice.
func Rank(articles []ScoredArticle) []ScoredArticle {
	ds := withDates(articles)
	sort.SliceStable(ds, func(i, j int) bool {
		si, sj := ds[i].item.Combined(), ds[j].item.Combined()
		if si != sj {
			return si > sj
		}
		return newer(ds[i], ds[j])
	})
	return unwrap(ds)
}

// SortByDate orders newest first. Unparsable dates go last, in input order.
func SortByDate[T Entry](items []T) []T {
	ds := withDates(items)
	sort.SliceStable(ds, func(i, j int) bool {
		return newer(ds[i], ds[j])
	})
	return unwrap(ds)
}
