package ranking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/glowrank/pkg/models"
)

// Text query provenance reported in run metadata.
const (
	QueryFromPreferences = "preferences"
	QueryFromVisits      = "visit_fallback"
	QueryNone            = "none"
)

// RankRequest carries one user's history snapshot for a ranking run.
type RankRequest struct {
	User      *models.UserContext
	Visits    []models.VisitEvent
	Purchases []models.PurchaseEvent
	// Favorites are item ids the user has favorited, in addition to items
	// flagged IsFavorite in the catalog snapshot.
	Favorites []string
	// Ratings overrides item ratings, e.g. with comment averages.
	Ratings map[string]float64
	Seasons SeasonTable
	// Now is the run clock. Zero means time.Now.
	Now time.Time
}

func (r *RankRequest) userID() string {
	if r.User == nil {
		return ""
	}
	return r.User.UserID
}

// Engine fits catalog indexes and scores users against them. It holds no
// mutable state.
type Engine struct {
	params    Params
	tokenizer Tokenizer
	scorer    *Scorer
	ranker    Ranker
	seasons   SeasonTable
	logger    *logrus.Logger
}

// NewEngine validates params and returns an engine. A nil tokenizer selects
// the default TextTokenizer.
func NewEngine(params Params, tokenizer Tokenizer, logger *logrus.Logger) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ranking params: %w", err)
	}
	if tokenizer == nil {
		tokenizer = NewTextTokenizer()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		params:    params,
		tokenizer: tokenizer,
		scorer:    NewScorer(params),
		seasons:   DefaultSeasonTable(),
		logger:    logger,
	}, nil
}

// Params returns the engine parameters.
func (e *Engine) Params() Params { return e.params }

// Tokenizer returns the tokenizer used for corpus and queries.
func (e *Engine) Tokenizer() Tokenizer { return e.tokenizer }

// BuildIndex fits an index over items. An empty version gets a random one.
func (e *Engine) BuildIndex(items []models.Item, version string) (*Index, error) {
	if version == "" {
		version = uuid.NewString()
	}
	idx, err := newIndex(items, version, e.tokenizer, e.params.SimilarityThreshold, e.params.SublinearTF)
	if err != nil {
		return nil, err
	}
	summary := idx.Summary()
	e.logger.WithFields(logrus.Fields{
		"version":        summary.Version,
		"items":          summary.Items,
		"vocabulary":     summary.Vocabulary,
		"neighbor_links": summary.NeighborLinks,
		"duration":       summary.BuildDuration,
	}).Info("Catalog index built")
	return idx, nil
}

// runState is the per-user signal context shared by every item of a run.
type runState struct {
	now            time.Time
	decayRef       time.Time
	season         Season
	seasonKeywords []string
	textQuery      string
	querySource    string
	queryVec       []float64
	seasonVec      []float64
	visitMass      []float64
	visitTotal     float64
	visitVec       []float64
	buyMass        []float64
	buyTotal       float64
	favorites      []bool
	favTotal       int
	ratingNorm     []float64
	forbidden      *OrderedSet
	budget         *models.BudgetRange
	skippedEvents  int
}

func (e *Engine) prepare(idx *Index, req *RankRequest) *runState {
	n := idx.Len()
	st := &runState{now: req.Now}
	if st.now.IsZero() {
		st.now = time.Now().UTC()
	}
	st.decayRef = e.params.DecayReference
	if st.decayRef.IsZero() {
		st.decayRef = st.now
	}

	seasons := req.Seasons
	if seasons == nil {
		seasons = e.seasons
	}
	st.season = SeasonAt(st.now)
	st.seasonKeywords = seasons.Keywords(st.season)

	var counts []int
	var skipped int
	st.visitMass, counts, skipped = VisitMass(req.Visits, idx.positions, n, st.decayRef, e.params.VisitHalfLifeDays)
	st.skippedEvents += skipped
	st.buyMass, skipped = PurchaseMass(req.Purchases, req.userID(), idx.positions, n, st.decayRef, e.params.PurchaseHalfLifeDays)
	st.skippedEvents += skipped
	for i := 0; i < n; i++ {
		st.visitTotal += st.visitMass[i]
		st.buyTotal += st.buyMass[i]
	}

	if text, ok := QueryText(req.User); ok {
		st.textQuery, st.querySource = text, QueryFromPreferences
	} else if text := FallbackQueryText(idx.items, counts, e.params.FallbackQueryItems); text != "" {
		st.textQuery, st.querySource = text, QueryFromVisits
	} else {
		st.querySource = QueryNone
	}
	st.queryVec = idx.space.Transform(st.textQuery)
	st.seasonVec = idx.space.Transform(joinNonEmpty(st.seasonKeywords))
	st.visitVec = UserVisitVector(idx.space, st.visitMass)

	favSet := NewOrderedSet(req.Favorites...)
	st.favorites = make([]bool, n)
	st.ratingNorm = make([]float64, n)
	for i := range idx.items {
		item := &idx.items[i]
		if item.IsFavorite || favSet.Contains(item.ID) {
			st.favorites[i] = true
			st.favTotal++
		}
		rating := item.AverageRating
		if r, ok := req.Ratings[item.ID]; ok {
			rating = r
		}
		st.ratingNorm[i] = NormalizeRating(rating)
	}

	if req.User != nil {
		st.forbidden = ForbiddenTokenSet(e.tokenizer, req.User.Forbidden)
		st.budget = req.User.Budget
	}
	return st
}

func (e *Engine) signals(idx *Index, st *runState, p int) ItemSignals {
	cfg := e.params
	row := idx.space.Row(p)
	q := idx.neighborhoods[p]

	s := ItemSignals{
		TextMatch:   Cosine(st.queryVec, row),
		SeasonMatch: Cosine(st.seasonVec, row),
	}
	if st.visitTotal > 0 {
		s.VisitSimilarity = Cosine(st.visitVec, row)
		s.VisitRatio = sumNeighborhood(st.visitMass, q) / (st.visitTotal + cfg.Kappa)
	}

	var num, den float64
	for _, j := range q {
		sim := idx.sims.At(p, j)
		num += sim * st.ratingNorm[j]
		den += sim
	}
	if den > 0 {
		s.NeighborRating = num / den
	}

	if st.favTotal > 0 {
		count := 0
		for _, j := range q {
			if st.favorites[j] {
				count++
			}
		}
		s.FavoriteRatio = float64(count) / (float64(st.favTotal) + cfg.Kappa)
	}
	if st.buyTotal > 0 {
		s.PurchaseRatio = sumNeighborhood(st.buyMass, q) / (st.buyTotal + cfg.Kappa)
	}

	s.BudgetPenalty = BudgetPenalty(idx.items[p].Price, st.budget, cfg.BudgetScale, cfg.BudgetCap)
	s.ForbiddenPenalty = ForbiddenPenalty(idx.penaltyTokens[p], st.forbidden, cfg.ForbiddenPerMatch, cfg.ForbiddenCap)
	return s
}

// scoreItem scores position p. A panic while scoring is recovered and
// reported as an error so that the rest of the batch continues.
func (e *Engine) scoreItem(idx *Index, st *runState, p int) (c Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scoring item %s: %v", idx.items[p].ID, r)
		}
	}()
	s := e.signals(idx, st, p)
	base, final := e.scorer.Score(s)
	return Candidate{Position: p, Item: &idx.items[p], Base: base, Final: final, Signals: s}, nil
}

func (e *Engine) scoreAll(idx *Index, st *runState, userID string) ([]Candidate, int) {
	candidates := make([]Candidate, 0, idx.Len())
	failed := 0
	for p := range idx.items {
		c, err := e.scoreItem(idx, st, p)
		if err != nil {
			failed++
			e.logger.WithFields(logrus.Fields{
				"user_id": userID,
				"item_id": idx.items[p].ID,
				"error":   err.Error(),
			}).Warn("Skipping item that failed to score")
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, failed
}

// Rank scores every indexed item for the request's user, applies hard
// filters and returns the ordered result with its run metadata.
func (e *Engine) Rank(idx *Index, req *RankRequest) (*models.RankingResult, error) {
	if idx == nil {
		return nil, ErrIndexNotReady
	}
	if idx.Len() == 0 {
		return nil, ErrEmptyCatalog
	}
	if req == nil {
		req = &RankRequest{}
	}
	start := time.Now()
	userID := req.userID()
	st := e.prepare(idx, req)

	candidates, failed := e.scoreAll(idx, st, userID)
	filters := FiltersFor(req.User)
	ranked, fallback := e.ranker.Rank(candidates, filters)

	result := &models.RankingResult{
		Metadata: models.RunMetadata{
			RunID:          uuid.NewString(),
			UserID:         userID,
			GeneratedAt:    st.now,
			DecayReference: st.decayRef,
			Season:         string(st.season),
			SeasonKeywords: st.seasonKeywords,
			IndexVersion:   idx.version,
			Params:         e.params.Export(),
			FiltersApplied: filterNames(filters),
			FilterFallback: fallback,
			SkippedItems:   failed,
			TextQuery:      st.querySource,
		},
		Recommendations: make([]models.RankedItem, len(ranked)),
	}
	for i, c := range ranked {
		result.Recommendations[i] = rankedItem(c, i+1)
	}

	e.logger.WithFields(logrus.Fields{
		"run_id":          result.Metadata.RunID,
		"user_id":         userID,
		"items":           len(ranked),
		"season":          st.season,
		"query_source":    st.querySource,
		"skipped_events":  st.skippedEvents,
		"skipped_items":   failed,
		"filter_fallback": fallback,
		"duration":        time.Since(start),
	}).Debug("Ranking completed")
	return result, nil
}

// ScoreItem returns one item's score for the request's user. Position is
// the item's place in the filtered ranking, or 0 when a hard filter
// excluded it.
func (e *Engine) ScoreItem(idx *Index, req *RankRequest, itemID string) (*models.ItemScore, error) {
	if idx == nil {
		return nil, ErrIndexNotReady
	}
	p, ok := idx.Position(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if req == nil {
		req = &RankRequest{}
	}
	st := e.prepare(idx, req)
	candidates, _ := e.scoreAll(idx, st, req.userID())
	ranked, _ := e.ranker.Rank(candidates, FiltersFor(req.User))

	for _, c := range candidates {
		if c.Position != p {
			continue
		}
		score := &models.ItemScore{
			UserID:     req.userID(),
			ItemID:     itemID,
			FinalScore: c.Final,
			Details:    c.Signals.Breakdown(),
		}
		for i, r := range ranked {
			if r.Position == p {
				score.Position = i + 1
				break
			}
		}
		return score, nil
	}
	return nil, fmt.Errorf("%w: %s could not be scored", ErrUnknownItem, itemID)
}

func rankedItem(c Candidate, position int) models.RankedItem {
	return models.RankedItem{
		ItemID:     c.Item.ID,
		Name:       c.Item.Name,
		Brand:      c.Item.Brand,
		Category:   c.Item.Category,
		Price:      c.Item.Price,
		Currency:   c.Item.Currency,
		Position:   position,
		ScoreBase:  c.Base,
		FinalScore: c.Final,
		Details:    c.Signals.Breakdown(),
	}
}

func joinNonEmpty(parts []string) string {
	return strings.Join(dropNegations(parts), " ")
}
