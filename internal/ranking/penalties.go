package ranking

import (
	"math"

	"github.com/temcen/glowrank/pkg/models"
)

// BudgetPenalty returns the soft penalty for a price outside the band:
// distance to the nearest edge over the band midpoint, times scale, capped.
// An unknown price, a missing band or a band without bounds is penalty free.
// A missing lower bound is read as 0.
func BudgetPenalty(price *float64, band *models.BudgetRange, scale, cap float64) float64 {
	if price == nil || band == nil || (band.Min == nil && band.Max == nil) {
		return 0
	}
	p := *price
	lo := 0.0
	if band.Min != nil {
		lo = *band.Min
	}

	var distance, mid float64
	if band.Max == nil {
		if p >= lo {
			return 0
		}
		distance = lo - p
		mid = math.Max(1, lo)
	} else {
		hi := *band.Max
		switch {
		case p < lo:
			distance = lo - p
		case p > hi:
			distance = p - hi
		default:
			return 0
		}
		mid = math.Max(1, (lo+hi)/2)
	}
	return math.Max(0, math.Min(cap, distance/mid*scale))
}

// ForbiddenTokenSet tokenizes the user's "must not contain" answers and
// removes negation particles.
func ForbiddenTokenSet(tok Tokenizer, forbidden []string) *OrderedSet {
	set := NewOrderedSet()
	for _, text := range forbidden {
		for _, t := range tok.Tokenize(text) {
			if !isNegation(t) {
				set.Add(t)
			}
		}
	}
	return set
}

// PenaltyTokens is the token set an item is checked against for forbidden
// ingredients: name, description, brand and tags.
func PenaltyTokens(item *models.Item, tok Tokenizer) *OrderedSet {
	texts := append([]string{item.Name, item.Description, item.Brand}, item.Tags...)
	return NewOrderedSet(tokenizeAll(tok, texts...)...)
}

// ForbiddenPenalty returns min(cap, perMatch · distinct matches).
func ForbiddenPenalty(itemTokens, forbidden *OrderedSet, perMatch, cap float64) float64 {
	if forbidden == nil || forbidden.Len() == 0 {
		return 0
	}
	matches := itemTokens.IntersectionSize(forbidden)
	if matches == 0 {
		return 0
	}
	return math.Max(0, math.Min(cap, perMatch*float64(matches)))
}
