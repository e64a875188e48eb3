package preferences

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/temcen/glowrank/internal/ranking"
	"github.com/temcen/glowrank/pkg/models"
)

// minKeywordRunes drops short particles from free-text keywords.
const minKeywordRunes = 3

// Answers are raw quiz answers keyed by question key, as decoded from JSON.
type Answers map[string]interface{}

// Extractor turns quiz answers into a stored profile and stored profiles
// into ranking contexts.
type Extractor struct {
	tokenizer ranking.Tokenizer
	logger    *logrus.Logger
}

// NewExtractor creates an extractor using tok for free-text answers.
func NewExtractor(tok ranking.Tokenizer, logger *logrus.Logger) *Extractor {
	if tok == nil {
		tok = ranking.NewTextTokenizer()
	}
	return &Extractor{tokenizer: tok, logger: logger}
}

// Extract maps answers onto the quiz. Choice answers are 1-based option
// indexes; indexes out of range keep the raw value for single-choice
// questions and are dropped from multi-choice lists. Free-text answers are
// stored verbatim and reduced to keyword lists. Unknown keys are ignored
// apart from the in-stock flag.
func (e *Extractor) Extract(userID string, answers Answers) (*models.StoredProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	profile := &models.StoredProfile{
		UserID:      userID,
		Preferences: make(map[string]interface{}),
		Keywords:    make(map[string][]string),
	}

	for _, q := range Questions {
		raw, ok := answers[q.Key]
		if !ok || raw == nil {
			continue
		}
		switch {
		case q.FreeText():
			text := strings.TrimSpace(fmt.Sprint(raw))
			profile.Preferences[q.Key] = text
			if kws := e.Keywords(text); len(kws) > 0 {
				profile.Keywords[q.Key] = kws
			}
		case q.Multi:
			profile.Preferences[q.Key] = mapChoices(q, raw)
		case q.Key == KeyBudget:
			if r := ParseBudget(raw); r != nil {
				profile.Preferences[q.Key] = map[string]interface{}{"min": r.Min, "max": r.Max}
			}
		default:
			profile.Preferences[q.Key] = mapChoice(q, raw)
		}
	}

	if v, ok := answers[KeyInStockOnly]; ok {
		profile.Preferences[KeyInStockOnly] = truthy(v)
	}

	if e.logger != nil {
		e.logger.WithFields(logrus.Fields{
			"user_id":        userID,
			"answers":        len(profile.Preferences),
			"keyword_groups": len(profile.Keywords),
		}).Debug("Extracted quiz preferences")
	}
	return profile, nil
}

// Keywords tokenizes free text into keywords: alphabetic tokens of three or
// more characters, deduplicated in first-seen order.
func (e *Extractor) Keywords(text string) []string {
	set := ranking.NewOrderedSet()
	for _, tok := range e.tokenizer.Tokenize(text) {
		if utf8.RuneCountInString(tok) < minKeywordRunes || !isAlphabetic(tok) {
			continue
		}
		set.Add(tok)
	}
	if set.Len() == 0 {
		return nil
	}
	return set.Values()
}

// ToUserContext converts a stored profile into the engine's user context.
func (e *Extractor) ToUserContext(profile *models.StoredProfile) *models.UserContext {
	if profile == nil {
		return nil
	}
	uc := &models.UserContext{UserID: profile.UserID}
	prefs := profile.Preferences

	for _, q := range Questions {
		kws := profile.Keywords[q.Key]
		if len(kws) == 0 {
			continue
		}
		if q.Key == KeyForbidden {
			uc.Forbidden = append(uc.Forbidden, kws...)
			continue
		}
		uc.Keywords = append(uc.Keywords, models.KeywordGroup{Topic: q.Key, Terms: kws})
	}
	if len(uc.Forbidden) == 0 {
		if text, ok := prefs[KeyForbidden].(string); ok && strings.TrimSpace(text) != "" {
			uc.Forbidden = []string{text}
		}
	}

	for _, q := range Questions {
		if !q.Descriptive {
			continue
		}
		for _, s := range stringValues(prefs[q.Key]) {
			if s != "" && s != noneOption {
				uc.PreferenceText = append(uc.PreferenceText, s)
			}
		}
	}

	uc.Budget = ParseBudget(prefs[KeyBudget])
	if brand, ok := prefs[KeyBrand].(string); ok {
		uc.BrandPreference = strings.TrimSpace(brand)
	}
	uc.InStockOnly = truthy(prefs[KeyInStockOnly])
	return uc
}

func mapChoice(q Question, raw interface{}) interface{} {
	if i, ok := choiceIndex(raw); ok {
		if i >= 1 && i <= len(q.Options) {
			return q.Options[i-1]
		}
	}
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s)
	}
	return raw
}

func mapChoices(q Question, raw interface{}) []string {
	var values []interface{}
	switch v := raw.(type) {
	case []interface{}:
		values = v
	case []string:
		for _, s := range v {
			values = append(values, s)
		}
	default:
		values = []interface{}{v}
	}

	out := make([]string, 0, len(values))
	for _, v := range values {
		if i, ok := choiceIndex(v); ok {
			if i >= 1 && i <= len(q.Options) {
				out = append(out, q.Options[i-1])
			}
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func choiceIndex(v interface{}) (int, bool) {
	switch val := v.(type) {
	case float64:
		if val == float64(int(val)) {
			return int(val), true
		}
	case int:
		return val, true
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i), true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func stringValues(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return []string{strings.TrimSpace(val)}
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, x := range val {
			if s, ok := x.(string); ok {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		return err == nil && b
	case float64:
		return val != 0
	}
	return false
}

func isAlphabetic(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && r != '\u200c' {
			return false
		}
	}
	return true
}
