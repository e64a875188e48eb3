package ranking

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Tokenizer turns free text into terms. The engine treats it as a pure
// function; normalization and stemming rules live behind this interface.
type Tokenizer interface {
	Tokenize(text string) []string
}

// TokenizerFunc adapts a plain function to Tokenizer.
type TokenizerFunc func(text string) []string

// Tokenize calls f(text).
func (f TokenizerFunc) Tokenize(text string) []string {
	return f(text)
}

var (
	nonWordRegex = regexp.MustCompile(`[^\p{L}\p{N}_\x{200C}\s]+`)
	diacritics   = regexp.MustCompile(`[\x{064B}-\x{0652}\x{0670}\x{0640}]`)
	charFolding  = strings.NewReplacer(
		"ي", "ی", // Arabic yeh -> Persian yeh
		"ى", "ی", // alef maksura -> Persian yeh
		"ك", "ک", // Arabic kaf -> keheh
		"ة", "ه", // teh marbuta -> heh
	)
)

// TextTokenizer is the default tokenizer: Unicode NFKC normalization,
// Arabic/Persian letter folding, punctuation stripping, lowercasing and a
// minimum token length. It does no stemming.
type TextTokenizer struct {
	MinRunes int
}

// NewTextTokenizer returns a tokenizer that drops single-character tokens.
func NewTextTokenizer() *TextTokenizer {
	return &TextTokenizer{MinRunes: 2}
}

// Normalize applies the character-level normalization without splitting.
func (t *TextTokenizer) Normalize(text string) string {
	if text == "" {
		return ""
	}
	s := norm.NFKC.String(text)
	s = charFolding.Replace(s)
	s = diacritics.ReplaceAllString(s, "")
	s = nonWordRegex.ReplaceAllString(s, " ")
	return strings.ToLower(s)
}

// Tokenize implements Tokenizer.
func (t *TextTokenizer) Tokenize(text string) []string {
	s := t.Normalize(text)
	if s == "" {
		return nil
	}
	fields := strings.Fields(s)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "\u200c")
		if utf8.RuneCountInString(f) < t.MinRunes {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// tokenizeAll tokenizes each text and concatenates the results.
func tokenizeAll(tok Tokenizer, texts ...string) []string {
	var out []string
	for _, text := range texts {
		if text == "" {
			continue
		}
		out = append(out, tok.Tokenize(text)...)
	}
	return out
}
