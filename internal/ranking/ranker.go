package ranking

import (
	"sort"

	"github.com/temcen/glowrank/pkg/models"
)

// Candidate is a scored catalog item awaiting filtering and ordering.
type Candidate struct {
	Position int // catalog position
	Item     *models.Item
	Base     float64
	Final    float64
	Signals  ItemSignals
}

// HardFilter excludes items outright.
type HardFilter interface {
	Name() string
	Keep(item *models.Item) bool
}

// BrandFilter keeps only items of one brand, compared exactly.
type BrandFilter struct {
	Brand string
}

func (f BrandFilter) Name() string { return "brand" }

func (f BrandFilter) Keep(item *models.Item) bool {
	return item.Brand == f.Brand
}

// InStockFilter drops items with no stock.
type InStockFilter struct{}

func (InStockFilter) Name() string { return "in_stock" }

func (InStockFilter) Keep(item *models.Item) bool {
	return item.Stock > 0
}

// FiltersFor returns the hard filters a user context asks for.
func FiltersFor(user *models.UserContext) []HardFilter {
	if user == nil {
		return nil
	}
	var filters []HardFilter
	if user.HasBrandPreference() {
		filters = append(filters, BrandFilter{Brand: user.BrandPreference})
	}
	if user.InStockOnly {
		filters = append(filters, InStockFilter{})
	}
	return filters
}

// Ranker applies hard filters and orders candidates.
type Ranker struct{}

// Rank filters candidates and sorts them by final score, descending, with
// ties left in catalog order. When the filters would remove every
// candidate they are dropped and fallback is true.
func (Ranker) Rank(candidates []Candidate, filters []HardFilter) (ranked []Candidate, fallback bool) {
	ranked = make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if keepAll(filters, c.Item) {
			ranked = append(ranked, c)
		}
	}
	if len(ranked) == 0 && len(candidates) > 0 {
		ranked = append(ranked, candidates...)
		fallback = len(filters) > 0
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Final > ranked[j].Final
	})
	return ranked, fallback
}

func keepAll(filters []HardFilter, item *models.Item) bool {
	for _, f := range filters {
		if !f.Keep(item) {
			return false
		}
	}
	return true
}

// filterNames lists the names of filters in order.
func filterNames(filters []HardFilter) []string {
	if len(filters) == 0 {
		return nil
	}
	names := make([]string, len(filters))
	for i, f := range filters {
		names[i] = f.Name()
	}
	return names
}
