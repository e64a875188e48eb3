package ranking

import (
	"fmt"
	"math"
	"time"

	"github.com/temcen/glowrank/pkg/models"
)

// Weights are the coefficients of the five base signals. They are expected
// to sum to 1 so that the base score is a convex combination.
type Weights struct {
	Text            float64
	Season          float64
	VisitSimilarity float64
	VisitRatio      float64
	Rating          float64
}

// Sum returns the total of all base weights.
func (w Weights) Sum() float64 {
	return w.Text + w.Season + w.VisitSimilarity + w.VisitRatio + w.Rating
}

// Params is the full configuration surface of the engine.
type Params struct {
	SimilarityThreshold  float64
	Kappa                float64
	VisitHalfLifeDays    float64
	PurchaseHalfLifeDays float64
	Weights              Weights
	FavoriteBoost        float64
	PurchaseBoost        float64
	ForbiddenPerMatch    float64
	ForbiddenCap         float64
	BudgetScale          float64
	BudgetCap            float64
	FallbackQueryItems   int
	SublinearTF          bool
	// DecayReference pins the "now" used for event ages. Zero means the
	// run clock.
	DecayReference time.Time
}

// DefaultParams returns the reference constants.
func DefaultParams() Params {
	return Params{
		SimilarityThreshold:  0.4,
		Kappa:                1.0,
		VisitHalfLifeDays:    14.0,
		PurchaseHalfLifeDays: 60.0,
		Weights: Weights{
			Text:            0.30,
			Season:          0.10,
			VisitSimilarity: 0.20,
			VisitRatio:      0.10,
			Rating:          0.30,
		},
		FavoriteBoost:      0.25,
		PurchaseBoost:      0.40,
		ForbiddenPerMatch:  0.06,
		ForbiddenCap:       0.25,
		BudgetScale:        0.2,
		BudgetCap:          0.12,
		FallbackQueryItems: 6,
		SublinearTF:        true,
	}
}

// Validate rejects parameter sets that would make the scores meaningless.
func (p Params) Validate() error {
	if p.SimilarityThreshold < 0 || p.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold %.3f outside [0,1]", p.SimilarityThreshold)
	}
	if p.Kappa <= 0 {
		return fmt.Errorf("kappa must be positive, got %.3f", p.Kappa)
	}
	if p.VisitHalfLifeDays <= 0 || p.PurchaseHalfLifeDays <= 0 {
		return fmt.Errorf("half-lives must be positive")
	}
	if math.Abs(p.Weights.Sum()-1.0) > 1e-6 {
		return fmt.Errorf("base weights must sum to 1, got %.4f", p.Weights.Sum())
	}
	if p.ForbiddenCap < 0 || p.ForbiddenCap > 1 || p.BudgetCap < 0 || p.BudgetCap > 1 {
		return fmt.Errorf("penalty caps must be within [0,1]")
	}
	if p.FallbackQueryItems < 0 {
		return fmt.Errorf("fallback query items must not be negative")
	}
	return nil
}

// Export converts the parameters into the audit form carried by results.
func (p Params) Export() models.RankingParams {
	return models.RankingParams{
		SimilarityThreshold:  p.SimilarityThreshold,
		Kappa:                p.Kappa,
		VisitHalfLifeDays:    p.VisitHalfLifeDays,
		PurchaseHalfLifeDays: p.PurchaseHalfLifeDays,
		Weights: map[string]float64{
			"W_T":      p.Weights.Text,
			"W_S":      p.Weights.Season,
			"W_VSIM":   p.Weights.VisitSimilarity,
			"W_VRATIO": p.Weights.VisitRatio,
			"W_R":      p.Weights.Rating,
		},
		Boosts: map[string]float64{
			"BETA_FAV": p.FavoriteBoost,
			"BETA_BUY": p.PurchaseBoost,
		},
		ForbiddenPerMatch: p.ForbiddenPerMatch,
		ForbiddenCap:      p.ForbiddenCap,
		BudgetScale:       p.BudgetScale,
		BudgetCap:         p.BudgetCap,
	}
}
