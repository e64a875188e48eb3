package preferences

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/temcen/glowrank/pkg/models"
)

type budgetBand struct {
	label    string
	min, max float64
	open     bool // no upper bound
}

var budgetBands = []budgetBand{
	{label: "زیر 200 هزار تومان", min: 0, max: 200_000},
	{label: "200 تا 400 هزار تومان", min: 200_000, max: 400_000},
	{label: "400 تا 700 هزار تومان", min: 400_000, max: 700_000},
	{label: "700 هزار تا 1 میلیون تومان", min: 700_000, max: 1_000_000},
	{label: "بالاتر از 1 میلیون تومان", min: 1_000_000, open: true},
}

func budgetLabels() []string {
	labels := make([]string, len(budgetBands))
	for i, b := range budgetBands {
		labels[i] = b.label
	}
	return labels
}

func (b budgetBand) rangeOf() *models.BudgetRange {
	lo := b.min
	r := &models.BudgetRange{Min: &lo}
	if !b.open {
		hi := b.max
		r.Max = &hi
	}
	return r
}

// BudgetBand returns the price band of a 1-based budget answer.
func BudgetBand(index int) (*models.BudgetRange, bool) {
	if index < 1 || index > len(budgetBands) {
		return nil, false
	}
	return budgetBands[index-1].rangeOf(), true
}

// BudgetIndex is the inverse of BudgetBand; 0 when the range is not one
// of the fixed bands.
func BudgetIndex(r *models.BudgetRange) int {
	if r == nil || r.Min == nil {
		return 0
	}
	for i, b := range budgetBands {
		if *r.Min != b.min {
			continue
		}
		if (b.open && r.Max == nil) || (!b.open && r.Max != nil && *r.Max == b.max) {
			return i + 1
		}
	}
	return 0
}

// ParseBudget reads a stored budget answer: a band index, a band label, or
// an explicit {min, max} object. Anything else means no budget.
func ParseBudget(v interface{}) *models.BudgetRange {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		if val != float64(int(val)) {
			return nil
		}
		r, _ := BudgetBand(int(val))
		return r
	case int:
		r, _ := BudgetBand(val)
		return r
	case json.Number:
		i, err := val.Int64()
		if err != nil {
			return nil
		}
		r, _ := BudgetBand(int(i))
		return r
	case string:
		s := strings.TrimSpace(val)
		if i, err := strconv.Atoi(s); err == nil {
			r, _ := BudgetBand(i)
			return r
		}
		for _, b := range budgetBands {
			if b.label == s {
				return b.rangeOf()
			}
		}
		return nil
	case map[string]interface{}:
		r := &models.BudgetRange{Min: toFloat(val["min"]), Max: toFloat(val["max"])}
		if r.Min == nil && r.Max == nil {
			return nil
		}
		return r
	case *models.BudgetRange:
		return val
	}
	return nil
}

func toFloat(v interface{}) *float64 {
	var f float64
	switch val := v.(type) {
	case *float64:
		return val
	case float64:
		f = val
	case int:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}
