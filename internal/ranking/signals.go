package ranking

import (
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/temcen/glowrank/pkg/models"
)

// NegationParticles are stripped from query and forbidden-ingredient text
// so that "must not contain" phrasing does not leak into the term sets.
var NegationParticles = []string{"نباشد", "نیست", "نیابد"}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 style timestamp. Timestamps with an
// offset are converted to UTC; naive timestamps are read as UTC. The bool is
// false when no layout matches, in which case the event should be skipped.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// AgeDays returns the fractional age of t at now. Future events have age 0.
func AgeDays(now, t time.Time) float64 {
	d := now.Sub(t).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// DecayWeight returns exp(-ln2/halfLife * ageDays).
func DecayWeight(ageDays, halfLifeDays float64) float64 {
	if ageDays <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 / halfLifeDays * ageDays)
}

// NormalizeRating maps a 1-5 star rating to [0,1]; 0 (unrated) maps to 0.
func NormalizeRating(rating float64) float64 {
	return clamp01((rating - 1) / 4)
}

// VisitMass returns W_visit per catalog position: ln(1 + Σ decayed weight).
// Events for unknown items are ignored; unparseable timestamps are counted
// in skipped.
func VisitMass(visits []models.VisitEvent, positions map[string]int, n int, now time.Time, halfLifeDays float64) (mass []float64, counts []int, skipped int) {
	sums := make([]float64, n)
	counts = make([]int, n)
	for _, v := range visits {
		idx, ok := positions[v.ItemID]
		if !ok {
			continue
		}
		at, ok := ParseTimestamp(v.At)
		if !ok {
			skipped++
			continue
		}
		sums[idx] += DecayWeight(AgeDays(now, at), halfLifeDays)
		counts[idx]++
	}
	mass = make([]float64, n)
	for i, s := range sums {
		mass[i] = math.Log1p(s)
	}
	return mass, counts, skipped
}

// PurchaseMass returns W_buy per catalog position: Σ quantity · decay over
// the purchases of userID. Other users' purchases are ignored.
func PurchaseMass(purchases []models.PurchaseEvent, userID string, positions map[string]int, n int, now time.Time, halfLifeDays float64) (mass []float64, skipped int) {
	mass = make([]float64, n)
	for _, p := range purchases {
		if p.UserID != userID {
			continue
		}
		idx, ok := positions[p.ItemID]
		if !ok {
			continue
		}
		at, ok := ParseTimestamp(p.At)
		if !ok {
			skipped++
			continue
		}
		qty := p.Quantity
		if qty < 1 {
			qty = 1
		}
		mass[idx] += float64(qty) * DecayWeight(AgeDays(now, at), halfLifeDays)
	}
	return mass, skipped
}

// UserVisitVector is the visit-mass weighted sum of item rows, L2
// normalized. It is all zero when nothing was visited.
func UserVisitVector(vs *VectorSpace, mass []float64) []float64 {
	vec := make([]float64, vs.Dim())
	if len(vec) == 0 {
		return vec
	}
	for i, w := range mass {
		if w > 0 {
			floats.AddScaled(vec, w, vs.Row(i))
		}
	}
	if norm := floats.Norm(vec, 2); norm > 0 {
		floats.Scale(1/norm, vec)
	}
	return vec
}

// QueryText builds the text-match query from a user context: every
// keyword term outside the forbidden group, else the free preference text.
// Negation particles are dropped. The bool is false when nothing is left.
func QueryText(user *models.UserContext) (string, bool) {
	if user == nil {
		return "", false
	}
	var parts []string
	for _, group := range user.Keywords {
		if group.Topic == models.ForbiddenTopic {
			continue
		}
		parts = append(parts, group.Terms...)
	}
	if len(parts) == 0 {
		parts = append(parts, user.PreferenceText...)
	}
	parts = dropNegations(parts)
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " "), true
}

// FallbackQueryText builds a synthetic query from the n most visited items
// (name and tags). Ties keep catalog order, so when fewer than n items have
// visits the remaining slots go to the earliest unvisited items in the
// catalog, and a user with no visits at all gets the first n items.
func FallbackQueryText(items []models.Item, visitCounts []int, n int) string {
	if n <= 0 || len(items) == 0 {
		return ""
	}
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return visitCounts[order[a]] > visitCounts[order[b]]
	})
	if n > len(order) {
		n = len(order)
	}
	parts := make([]string, 0, 2*n)
	for _, i := range order[:n] {
		if name := items[i].Name; name != "" {
			parts = append(parts, name)
		}
		if len(items[i].Tags) > 0 {
			parts = append(parts, strings.Join(items[i].Tags, " "))
		}
	}
	return strings.Join(dropNegations(parts), " ")
}

func dropNegations(parts []string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || isNegation(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func isNegation(s string) bool {
	for _, w := range NegationParticles {
		if s == w {
			return true
		}
	}
	return false
}

// sumNeighborhood adds values over the indexes in q.
func sumNeighborhood(values []float64, q []int) float64 {
	total := 0.0
	for _, j := range q {
		total += values[j]
	}
	return total
}
