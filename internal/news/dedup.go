package news

import "strings"

// UniqueByID keeps the first article per id. Articles without an id are dropped.
func UniqueByID[T Entry](items []T) []T {
	return uniqueBy(items, func(a Article) string { return a.ID })
}

// UniqueByTitle keeps the first article per trimmed title.
func UniqueByTitle[T Entry](items []T) []T {
	return uniqueBy(items, func(a Article) string { return strings.TrimSpace(a.Title) })
}

// UniqueByLink keeps the first article per full link.
func UniqueByLink[T Entry](items []T) []T {
	return uniqueBy(items, func(a Article) string { return a.Link })
}

// Dedupe runs the id, title and link passes in that order.
func Dedupe[T Entry](items []T) []T {
	return UniqueByLink(UniqueByTitle(UniqueByID(items)))
}

func uniqueBy[T Entry](items []T, key func(Article) string) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it.Base())
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}
