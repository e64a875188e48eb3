package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/temcen/glowrank/internal/preferences"
	"github.com/temcen/glowrank/pkg/models"
)

// PreferenceService stores quiz answers.
type PreferenceService struct {
	extractor   *preferences.Extractor
	history     HistoryStore
	recommender *RecommendationService
	logger      *logrus.Logger
}

func NewPreferenceService(extractor *preferences.Extractor, history HistoryStore, recommender *RecommendationService, logger *logrus.Logger) *PreferenceService {
	return &PreferenceService{
		extractor:   extractor,
		history:     history,
		recommender: recommender,
		logger:      logger,
	}
}

// SaveAnswers extracts and stores the quiz answers of userID, drops the
// user's cached rankings and returns the resulting ranking context.
func (s *PreferenceService) SaveAnswers(ctx context.Context, userID string, answers map[string]interface{}) (*models.UserContext, error) {
	profile, err := s.extractor.Extract(userID, preferences.Answers(answers))
	if err != nil {
		return nil, err
	}
	if err := s.history.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	if s.recommender != nil {
		s.recommender.InvalidateUser(ctx, userID)
	}

	uc := s.extractor.ToUserContext(profile)
	s.logger.WithFields(logrus.Fields{
		"user_id":        userID,
		"keyword_groups": len(uc.Keywords),
		"forbidden":      len(uc.Forbidden),
	}).Info("Preferences updated")
	return uc, nil
}
