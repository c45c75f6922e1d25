// Package vocab holds the keyword tables that drive query building and filtering.
package vocab

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vocab.yaml
var defaultYAML []byte

// Tables is the YAML layout of a vocabulary file.
type Tables struct {
	Expansions       map[string][]string `yaml:"expansions"`
	Synonyms         map[string][]string `yaml:"synonyms"`
	Blocklist        []string            `yaml:"blocklist"`
	NegativeTerms    []string            `yaml:"negativeTerms"`
	BeautyVocabulary []string            `yaml:"beautyVocabulary"`
	BeautyCategories []string            `yaml:"beautyCategories"`
	PresetKeywords   []string            `yaml:"presetKeywords"`
}

// Default returns the embedded tables.
func Default() *Tables {
	t, err := Decode(bytes.NewReader(defaultYAML))
	if err != nil {
		panic(fmt.Sprintf("vocab: embedded tables are invalid: %v", err))
	}
	return t
}

// Load reads tables from a YAML file. An empty path yields the embedded default.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab %s: %w", path, err)
	}
	defer f.Close()

	t, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("vocab %s: %w", path, err)
	}
	return t, nil
}

// Decode parses tables from r.
func Decode(r io.Reader) (*Tables, error) {
	var t Tables
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &t, nil
}

// Terms returns the expansion set for keyword, always including the keyword itself.
func (t *Tables) Terms(keyword string) []string {
	keyword = strings.TrimSpace(keyword)
	terms, ok := t.Expansions[keyword]
	if !ok || len(terms) == 0 {
		return []string{keyword}
	}
	for _, term := range terms {
		if term == keyword {
			return terms
		}
	}
	return append([]string{keyword}, terms...)
}

// Synonym returns the designated retry synonym for keyword.
func (t *Tables) Synonym(keyword string) (string, bool) {
	syns := t.Synonyms[strings.TrimSpace(keyword)]
	for _, s := range syns {
		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
	}
	return "", false
}

// IsBeautyCategory reports whether keyword needs the stricter beauty vocabulary rule.
func (t *Tables) IsBeautyCategory(keyword string) bool {
	keyword = strings.TrimSpace(keyword)
	for _, c := range t.BeautyCategories {
		if c == keyword {
			return true
		}
	}
	return false
}
