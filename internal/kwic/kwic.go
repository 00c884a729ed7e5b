// Package kwic locates keyword occurrences in a corpus, keyword-in-context
// style. It feeds lexical dispersion plots.
package kwic

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

const defaultWindow = 5

// Options controls Locate.
type Options struct {
	// Window is the number of context tokens kept on each side. Zero means 5;
	// a negative value keeps no context.
	Window int
}

// Hit is one occurrence of a pattern.
type Hit struct {
	Docname  string `json:"docname"`
	DocIndex int    `json:"doc_index"`
	// Position is the 0-based index of the first matched token in the
	// document's full token stream.
	Position int `json:"position"`
	// NTokens is the length of that token stream.
	NTokens int    `json:"ntokens"`
	Keyword string `json:"keyword"`
	Pattern string `json:"pattern"`
	Pre     string `json:"pre"`
	Post    string `json:"post"`
}

// Locate finds every occurrence of the patterns. A pattern may be a glob
// ("american*") or a phrase of several globs ("united states"). Matching
// ignores case. Hits are ordered by document, position and pattern. A pattern
// that matches nowhere is an unknown-feature error.
func Locate(c *corpus.Corpus, patterns []string, opts Options) ([]Hit, error) {
	if len(patterns) == 0 {
		return nil, apperrors.InvalidInput("no patterns given")
	}
	window := opts.Window
	switch {
	case window == 0:
		window = defaultWindow
	case window < 0:
		window = 0
	}

	phrases := make([][]string, len(patterns))
	for p, pattern := range patterns {
		phrases[p] = tokenizer.SplitPhrase(pattern)
		if len(phrases[p]) == 0 {
			return nil, apperrors.InvalidInput("pattern %d is empty", p)
		}
	}

	matched := make([]bool, len(patterns))
	var hits []Hit
	for i, tokens := range c.Tokens(tokenizer.Options{}) {
		name := c.Doc(i).Name
		for pos := range tokens {
			for p, phrase := range phrases {
				if !matchAt(tokens, pos, phrase) {
					continue
				}
				matched[p] = true
				end := pos + len(phrase)
				hits = append(hits, Hit{
					Docname:  name,
					DocIndex: i,
					Position: tokens[pos].Position,
					NTokens:  len(tokens),
					Keyword:  join(tokens[pos:end]),
					Pattern:  patterns[p],
					Pre:      join(tokens[max(0, pos-window):pos]),
					Post:     join(tokens[end:min(len(tokens), end+window)]),
				})
			}
		}
	}

	for p, ok := range matched {
		if !ok {
			return nil, apperrors.UnknownFeature("%q does not occur in any document", patterns[p])
		}
	}
	return hits, nil
}

func matchAt(tokens []tokenizer.Token, pos int, phrase []string) bool {
	if pos+len(phrase) > len(tokens) {
		return false
	}
	for k, part := range phrase {
		tok := tokens[pos+k]
		if tok.Kind == tokenizer.KindPunct || !tokenizer.Match(part, tok.Text) {
			return false
		}
	}
	return true
}

func join(tokens []tokenizer.Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}
