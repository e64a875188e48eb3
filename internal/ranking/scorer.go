package ranking

import "github.com/temcen/glowrank/pkg/models"

// ItemSignals are the raw per-item signals before combination.
type ItemSignals struct {
	TextMatch        float64
	SeasonMatch      float64
	VisitSimilarity  float64
	VisitRatio       float64
	NeighborRating   float64
	FavoriteRatio    float64
	PurchaseRatio    float64
	BudgetPenalty    float64
	ForbiddenPenalty float64
}

// Breakdown converts the signals into their audit form.
func (s ItemSignals) Breakdown() models.SignalBreakdown {
	return models.SignalBreakdown{
		TextMatch:        s.TextMatch,
		SeasonMatch:      s.SeasonMatch,
		VisitSimilarity:  s.VisitSimilarity,
		VisitRatio:       s.VisitRatio,
		NeighborRating:   s.NeighborRating,
		FavoriteRatio:    s.FavoriteRatio,
		PurchaseRatio:    s.PurchaseRatio,
		BudgetPenalty:    s.BudgetPenalty,
		ForbiddenPenalty: s.ForbiddenPenalty,
	}
}

// Scorer combines item signals into a final score.
type Scorer struct {
	params Params
}

// NewScorer returns a scorer using params.
func NewScorer(params Params) *Scorer {
	return &Scorer{params: params}
}

// Base is the convex combination of the five base signals.
func (sc *Scorer) Base(s ItemSignals) float64 {
	w := sc.params.Weights
	return w.Text*s.TextMatch +
		w.Season*s.SeasonMatch +
		w.VisitSimilarity*s.VisitSimilarity +
		w.VisitRatio*s.VisitRatio +
		w.Rating*s.NeighborRating
}

// Score returns the base score and the final score. Boosts multiply the
// base, penalties shrink it, and the result is clamped to [0,1].
func (sc *Scorer) Score(s ItemSignals) (base, final float64) {
	base = sc.Base(s)
	boosted := base *
		(1 + sc.params.FavoriteBoost*s.FavoriteRatio) *
		(1 + sc.params.PurchaseBoost*s.PurchaseRatio)
	penalized := boosted * (1 - s.BudgetPenalty) * (1 - s.ForbiddenPenalty)
	return base, clamp01(penalized)
}
