package models

import "time"

// SignalBreakdown is the per-signal audit trail for one ranked item.
type SignalBreakdown struct {
	TextMatch        float64 `json:"T"`
	SeasonMatch      float64 `json:"S"`
	VisitSimilarity  float64 `json:"V_sim"`
	VisitRatio       float64 `json:"ratio_visit"`
	NeighborRating   float64 `json:"R_Q"`
	FavoriteRatio    float64 `json:"ratio_fav"`
	PurchaseRatio    float64 `json:"ratio_buy"`
	BudgetPenalty    float64 `json:"budget_penalty"`
	ForbiddenPenalty float64 `json:"forbidden_penalty"`
}

// RankedItem is one entry of a ranking, already sorted by FinalScore.
type RankedItem struct {
	ItemID     string          `json:"product_id"`
	Name       string          `json:"name"`
	Brand      string          `json:"brand"`
	Category   string          `json:"category"`
	Price      *float64        `json:"price,omitempty"`
	Currency   string          `json:"currency,omitempty"`
	Position   int             `json:"position"`
	ScoreBase  float64         `json:"score_base"`
	FinalScore float64         `json:"final_score"`
	Details    SignalBreakdown `json:"details"`
}

// RankingParams echoes the constants a run was scored with.
type RankingParams struct {
	SimilarityThreshold  float64            `json:"SIM_THRESHOLD"`
	Kappa                float64            `json:"KAPPA"`
	VisitHalfLifeDays    float64            `json:"HALF_LIFE_VISITS"`
	PurchaseHalfLifeDays float64            `json:"HALF_LIFE_BUY"`
	Weights              map[string]float64 `json:"weights"`
	Boosts               map[string]float64 `json:"boosts"`
	ForbiddenPerMatch    float64            `json:"forbidden_per_match"`
	ForbiddenCap         float64            `json:"forbidden_penalty_cap"`
	BudgetScale          float64            `json:"budget_penalty_scale"`
	BudgetCap            float64            `json:"budget_penalty_cap"`
}

// RunMetadata describes one ranking run.
type RunMetadata struct {
	RunID          string        `json:"run_id"`
	UserID         string        `json:"user"`
	GeneratedAt    time.Time     `json:"generated_at"`
	DecayReference time.Time     `json:"decay_reference"`
	Season         string        `json:"season_used"`
	SeasonKeywords []string      `json:"season_keywords"`
	IndexVersion   string        `json:"index_version,omitempty"`
	Params         RankingParams `json:"params"`
	FiltersApplied []string      `json:"filters_applied,omitempty"`
	FilterFallback bool          `json:"filter_fallback"`
	SkippedItems   int           `json:"skipped_items"`
	TextQuery      string        `json:"text_query_source"`
}

// RankingResult is the output of a ranking run.
type RankingResult struct {
	Metadata        RunMetadata  `json:"metadata"`
	Recommendations []RankedItem `json:"recommendations"`
	CacheHit        bool         `json:"cache_hit"`
}

// ItemScore is the single-item score lookup response.
type ItemScore struct {
	UserID     string          `json:"user_id"`
	ItemID     string          `json:"product_id"`
	FinalScore float64         `json:"score"`
	Position   int             `json:"position"`
	Details    SignalBreakdown `json:"details"`
}

// SimilarItemsResponse lists an item's similarity neighborhood.
type SimilarItemsResponse struct {
	ItemID      string     `json:"product_id"`
	Threshold   float64    `json:"similarity_threshold"`
	Neighbors   []Neighbor `json:"similar_products"`
	Source      string     `json:"source"`
	GeneratedAt time.Time  `json:"generated_at"`
}
