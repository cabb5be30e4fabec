// Package knowledge answers mining questions from an embedded knowledge base
package knowledge

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"warpmine/ports"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"gopkg.in/yaml.v3"
)

//go:embed base.yaml
var defaultBase []byte

type variant struct {
	Words  []string `yaml:"words"`
	Answer string   `yaml:"answer"`
}

type topic struct {
	Name     string    `yaml:"name"`
	Phrases  []string  `yaml:"phrases"`
	Variants []variant `yaml:"variants"`
	Answer   string    `yaml:"answer"`
}

type base struct {
	Fallback string  `yaml:"fallback"`
	Topics   []topic `yaml:"topics"`
}

// Local is a rule-based KnowledgeClient. It never fails on a loaded base.
type Local struct {
	kb      base
	ac      *ahocorasick.Matcher
	phrases []int // dictionary index -> topic index
}

var _ ports.KnowledgeClient = (*Local)(nil)

// NewLocal loads the embedded knowledge base
func NewLocal() (*Local, error) {
	return Parse(defaultBase)
}

// Parse builds a responder from YAML
func Parse(raw []byte) (*Local, error) {
	var kb base
	if err := yaml.Unmarshal(raw, &kb); err != nil {
		return nil, fmt.Errorf("parse knowledge base: %w", err)
	}
	if strings.TrimSpace(kb.Fallback) == "" {
		return nil, fmt.Errorf("knowledge base: fallback answer is required")
	}

	var dict []string
	var owners []int
	for i, t := range kb.Topics {
		if strings.TrimSpace(t.Answer) == "" {
			return nil, fmt.Errorf("knowledge base: topic %q has no answer", t.Name)
		}
		for _, p := range t.Phrases {
			dict = append(dict, normalize(p))
			owners = append(owners, i)
		}
	}
	return &Local{kb: kb, ac: ahocorasick.NewStringMatcher(dict), phrases: owners}, nil
}

// Topics lists topic names in priority order
func (l *Local) Topics() []string {
	names := make([]string, len(l.kb.Topics))
	for i, t := range l.kb.Topics {
		names[i] = t.Name
	}
	return names
}

// Answer picks the earliest topic with a matching phrase, then the first
// variant whose words appear in the question
func (l *Local) Answer(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text := normalize(question)

	best := -1
	for _, idx := range l.ac.Match([]byte(text)) {
		if t := l.phrases[idx]; best < 0 || t < best {
			best = t
		}
	}
	if best < 0 {
		return strings.TrimSpace(l.kb.Fallback), nil
	}

	t := l.kb.Topics[best]
	for _, v := range t.Variants {
		for _, w := range v.Words {
			if strings.Contains(text, normalize(w)) {
				return strings.TrimSpace(v.Answer), nil
			}
		}
	}
	return strings.TrimSpace(t.Answer), nil
}

// normalize lowercases and collapses non-alphanumerics to single spaces,
// with one leading and one trailing space
func normalize(s string) string {
	var b strings.Builder
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}
