package news

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Single-kana particles that paraphrased headlines add or drop freely.
var particles = map[rune]bool{
	'が': true, 'を': true, 'へ': true, 'に': true, 'は': true,
	'の': true, 'で': true, 'と': true, 'も': true, 'や': true,
}

// TitleSimilarity scores two titles in [0,1] with the Dice coefficient over
// character bigrams of their normalized forms. Identical titles score 1.
func TitleSimilarity(a, b string) float64 {
	na, nb := normalizeTitle(a), normalizeTitle(b)
	if len(na) == 0 || len(nb) == 0 {
		if len(na) == 0 && len(nb) == 0 && strings.TrimSpace(a) == strings.TrimSpace(b) {
			return 1
		}
		return 0
	}
	if string(na) == string(nb) {
		return 1
	}

	size := 2
	if len(na) < 2 || len(nb) < 2 {
		size = 1
	}
	ga, ca := grams(na, size)
	gb, cb := grams(nb, size)

	shared := 0
	for g, n := range ga {
		shared += min(n, gb[g])
	}
	return 2 * float64(shared) / float64(ca+cb)
}

// normalizeTitle folds width and case, keeps letters and digits, and drops
// particles that stand alone between non-hiragana runes.
func normalizeTitle(s string) []rune {
	s = strings.ToLower(norm.NFKC.String(s))

	kept := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			kept = append(kept, r)
		}
	}

	out := make([]rune, 0, len(kept))
	for i, r := range kept {
		if particles[r] && !hiraganaAt(kept, i-1) && !hiraganaAt(kept, i+1) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func hiraganaAt(rs []rune, i int) bool {
	return i >= 0 && i < len(rs) && unicode.Is(unicode.Hiragana, rs[i])
}

func grams(rs []rune, size int) (map[string]int, int) {
	m := make(map[string]int, len(rs))
	total := 0
	for i := 0; i+size <= len(rs); i++ {
		m[string(rs[i:i+size])]++
		total++
	}
	return m, total
}
