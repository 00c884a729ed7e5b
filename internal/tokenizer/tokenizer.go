// Package tokenizer splits document text into typed tokens for the feature
// matrix builder and the keyword-in-context locator. Every token keeps its
// position in the unfiltered token stream, so removing punctuation or
// stopwords never shifts where a word occurs.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind classifies a token.
type Kind uint8

const (
	KindWord Kind = iota
	KindNumber
	KindPunct
	KindSymbol
)

func (k Kind) String() string {
	switch k {
	case KindWord:
		return "word"
	case KindNumber:
		return "number"
	case KindPunct:
		return "punct"
	case KindSymbol:
		return "symbol"
	default:
		return "unknown"
	}
}

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Text     string
	Kind     Kind
	Position int
}

// Options controls normalisation and removal. The zero value lowercases and
// keeps every token.
type Options struct {
	KeepCase      bool
	RemovePunct   bool
	RemoveNumbers bool
	RemoveSymbols bool
	Stopwords     StopwordSet
	Stem          bool
	// MinLength drops words shorter than this many runes.
	MinLength int
}

// Tokenize breaks text into Tokens and applies opts. Positions refer to the
// full token stream, including tokens that opts removes.
func Tokenize(text string, opts Options) []Token {
	raw := scan(text)
	tokens := make([]Token, 0, len(raw))
	for _, tok := range raw {
		if !opts.KeepCase {
			tok.Text = strings.ToLower(tok.Text)
		}
		switch tok.Kind {
		case KindPunct:
			if opts.RemovePunct {
				continue
			}
		case KindSymbol:
			if opts.RemoveSymbols {
				continue
			}
		case KindNumber:
			if opts.RemoveNumbers {
				continue
			}
		case KindWord:
			if opts.MinLength > 0 && utf8.RuneCountInString(tok.Text) < opts.MinLength {
				continue
			}
			word := tok.Text
			if opts.KeepCase {
				word = strings.ToLower(word)
			}
			if opts.Stopwords.Contains(word) {
				continue
			}
			if opts.Stem {
				tok.Text = Stem(tok.Text)
			}
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Count returns the number of tokens in text before any removal.
func Count(text string) int {
	return len(scan(text))
}

// scan produces the unfiltered, case-preserving token stream.
func scan(text string) []Token {
	tokens := make([]Token, 0, len(text)/5)
	runes := []rune(text)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r) || unicode.IsControl(r):
			i++
		case isWordRune(r):
			start := i
			numeric := true
			for i < len(runes) {
				c := runes[i]
				if isWordRune(c) {
					if !unicode.IsDigit(c) {
						numeric = false
					}
					i++
					continue
				}
				// Joiners stay inside a token only between two word runes:
				// "fellow-citizens", "don't", "3.14", "1,000".
				if isJoiner(c, numeric) && i+1 < len(runes) && isWordRune(runes[i+1]) {
					i++
					continue
				}
				break
			}
			kind := KindWord
			if numeric {
				kind = KindNumber
			}
			tokens = append(tokens, Token{Text: string(runes[start:i]), Kind: kind, Position: len(tokens)})
		case unicode.IsPunct(r):
			tokens = append(tokens, Token{Text: string(r), Kind: KindPunct, Position: len(tokens)})
			i++
		default:
			tokens = append(tokens, Token{Text: string(r), Kind: KindSymbol, Position: len(tokens)})
			i++
		}
	}
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func isJoiner(r rune, numeric bool) bool {
	switch r {
	case '-', '\'', '’':
		return true
	case '.', ',':
		return numeric
	}
	return false
}
