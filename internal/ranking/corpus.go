package ranking

import (
	"strings"

	"github.com/temcen/glowrank/pkg/models"
)

// TokenSourceKind tags where an item's tokens come from.
type TokenSourceKind int

const (
	// NeedsTokenization means no usable cache exists; the tokenizer runs
	// over the item's text fields.
	NeedsTokenization TokenSourceKind = iota
	// CachedTokens means the flattened token list is used verbatim.
	CachedTokens
	// PerFieldTokens means the per-field token lists are concatenated.
	PerFieldTokens
)

func (k TokenSourceKind) String() string {
	switch k {
	case CachedTokens:
		return "cached"
	case PerFieldTokens:
		return "per_field"
	default:
		return "tokenize"
	}
}

// TokenSource is the resolved origin of one item's tokens.
type TokenSource struct {
	Kind   TokenSourceKind
	Tokens []string
	Fields []models.FieldTokens
}

// Text fields tokenized, in order, when an item carries no cached tokens.
var (
	corpusTextFields = []string{"name", "description", "brand", "category"}
	corpusListFields = []string{"tags", "suitable_for", "skin_type"}
)

// ResolveTokenSource picks the token source for an item: the cached flat
// list, else the concatenated per-field lists, else fresh tokenization.
// Empty caches fall through to the next source.
func ResolveTokenSource(item *models.Item) TokenSource {
	bag := item.TokenBag
	if bag == nil {
		return TokenSource{Kind: NeedsTokenization}
	}
	if len(bag.Tokens) > 0 {
		return TokenSource{Kind: CachedTokens, Tokens: bag.Tokens}
	}
	for _, f := range bag.Fields {
		if len(f.Tokens) > 0 {
			return TokenSource{Kind: PerFieldTokens, Fields: bag.Fields}
		}
	}
	return TokenSource{Kind: NeedsTokenization}
}

// Resolve materializes the token list for an item from its resolved source.
func (s TokenSource) Resolve(item *models.Item, tok Tokenizer) []string {
	switch s.Kind {
	case CachedTokens:
		return s.Tokens
	case PerFieldTokens:
		var out []string
		for _, f := range s.Fields {
			out = append(out, f.Tokens...)
		}
		return out
	default:
		// Same deduplicated list TokenBag persists, so a refit from the
		// stored bag reproduces this fit.
		return BuildTokenBag(item, tok).Tokens
	}
}

// BuildTokenBag tokenizes the fixed field set of an item. The flattened
// Tokens list is deduplicated in first-seen order.
func BuildTokenBag(item *models.Item, tok Tokenizer) *models.TokenBag {
	bag := &models.TokenBag{}
	all := NewOrderedSet()
	for _, field := range corpusTextFields {
		tokens := tok.Tokenize(textField(item, field))
		bag.Fields = append(bag.Fields, models.FieldTokens{Field: field, Tokens: tokens})
		all.Add(tokens...)
	}
	for _, field := range corpusListFields {
		tokens := tokenizeAll(tok, listField(item, field)...)
		bag.Fields = append(bag.Fields, models.FieldTokens{Field: field, Tokens: tokens})
		all.Add(tokens...)
	}
	bag.Tokens = all.Values()
	return bag
}

// Corpus is the catalog rendered as one space-joined token document per
// item, aligned with the catalog order.
type Corpus struct {
	IDs       []string
	Documents []string
	Sources   []TokenSourceKind
}

// BuildCorpus assembles the corpus for items, preserving their order.
func BuildCorpus(items []models.Item, tok Tokenizer) *Corpus {
	c := &Corpus{
		IDs:       make([]string, len(items)),
		Documents: make([]string, len(items)),
		Sources:   make([]TokenSourceKind, len(items)),
	}
	for i := range items {
		item := &items[i]
		src := ResolveTokenSource(item)
		c.IDs[i] = item.ID
		c.Documents[i] = strings.Join(src.Resolve(item, tok), " ")
		c.Sources[i] = src.Kind
	}
	return c
}

// Len returns the number of documents.
func (c *Corpus) Len() int {
	return len(c.Documents)
}

func textField(item *models.Item, field string) string {
	switch field {
	case "name":
		return item.Name
	case "description":
		return item.Description
	case "brand":
		return item.Brand
	case "category":
		return item.Category
	}
	return ""
}

func listField(item *models.Item, field string) []string {
	switch field {
	case "tags":
		return item.Tags
	case "suitable_for":
		return item.SuitableFor
	case "skin_type":
		return item.SkinType
	}
	return nil
}
