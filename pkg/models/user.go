package models

// NoBrandPreference is the quiz answer meaning "brand doesn't matter".
const NoBrandPreference = "برند مهم نیست"

// ForbiddenTopic is the keyword topic holding "must not contain" answers.
const ForbiddenTopic = "forbidden_ingredients"

// VisitEvent is one observed view of an item. At is kept as the raw stored
// string so that malformed timestamps can be skipped instead of failing a load.
type VisitEvent struct {
	ItemID string `json:"product_id"`
	At     string `json:"visit_time"`
}

// PurchaseEvent is one purchased order line.
type PurchaseEvent struct {
	UserID   string `json:"user"`
	ItemID   string `json:"productId"`
	At       string `json:"date"`
	Quantity int    `json:"quantity"`
}

// BudgetRange is a price band. A nil bound is unbounded on that side.
type BudgetRange struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// KeywordGroup is the keyword list extracted from one free-text answer.
type KeywordGroup struct {
	Topic string   `json:"topic"`
	Terms []string `json:"terms"`
}

// UserContext is everything the engine knows about the user's stated
// preferences. Forbidden holds the raw "must not contain" answers; they are
// tokenized by the engine and never mixed into the keyword query.
type UserContext struct {
	UserID          string         `json:"user_id"`
	Keywords        []KeywordGroup `json:"keywords,omitempty"`
	PreferenceText  []string       `json:"preference_text,omitempty"`
	Budget          *BudgetRange   `json:"budget,omitempty"`
	BrandPreference string         `json:"brand_preference,omitempty"`
	InStockOnly     bool           `json:"only_in_stock"`
	Forbidden       []string       `json:"forbidden_ingredients,omitempty"`
}

// HasBrandPreference reports whether a brand hard filter applies.
func (u *UserContext) HasBrandPreference() bool {
	return u.BrandPreference != "" && u.BrandPreference != NoBrandPreference
}

// StoredProfile is the persisted form of the preference quiz.
type StoredProfile struct {
	UserID      string                 `json:"user_id"`
	Preferences map[string]interface{} `json:"user_preferences"`
	Keywords    map[string][]string    `json:"keywords"`
}
