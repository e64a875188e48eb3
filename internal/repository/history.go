package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/temcen/glowrank/internal/ranking"
	"github.com/temcen/glowrank/pkg/models"
)

// GetProfile returns the stored quiz profile of a user.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*models.StoredProfile, error) {
	var prefs, keywords []byte
	err := r.db.QueryRow(ctx,
		`SELECT user_preferences, keywords FROM profiles WHERE user_id = $1`, userID,
	).Scan(&prefs, &keywords)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile query failed: %w", err)
	}

	profile := &models.StoredProfile{UserID: userID}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &profile.Preferences); err != nil {
			return nil, fmt.Errorf("failed to decode preferences for %s: %w", userID, err)
		}
	}
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &profile.Keywords); err != nil {
			return nil, fmt.Errorf("failed to decode keywords for %s: %w", userID, err)
		}
	}
	return profile, nil
}

// SaveProfile replaces the stored quiz answers of a user. Visit history is
// kept.
func (r *Repository) SaveProfile(ctx context.Context, profile *models.StoredProfile) error {
	prefs, err := json.Marshal(profile.Preferences)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	keywords, err := json.Marshal(profile.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO profiles (user_id, user_preferences, keywords, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE SET
			user_preferences = EXCLUDED.user_preferences,
			keywords = EXCLUDED.keywords,
			updated_at = now()`,
		profile.UserID, prefs, keywords,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile for %s: %w", profile.UserID, err)
	}
	r.logger.WithFields(logrus.Fields{
		"user_id": profile.UserID,
		"answers": len(profile.Preferences),
	}).Info("Preference profile saved")
	return nil
}

// GetVisits returns the visit log stored on the profile. A user without a
// profile has no visits.
func (r *Repository) GetVisits(ctx context.Context, userID string) ([]models.VisitEvent, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, `SELECT visited_items FROM profiles WHERE user_id = $1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("visits query failed: %w", err)
	}
	var visits []models.VisitEvent
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &visits); err != nil {
			return nil, fmt.Errorf("failed to decode visits for %s: %w", userID, err)
		}
	}
	return visits, nil
}

// GetPurchases returns the user's order lines. A line without its own date
// inherits the order timestamp.
func (r *Repository) GetPurchases(ctx context.Context, userID string) ([]models.PurchaseEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT oi.product_id, COALESCE(oi.date, o.created_at), oi.quantity
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.user_id = $1
		ORDER BY o.created_at, oi.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("purchases query failed: %w", err)
	}
	defer rows.Close()

	var purchases []models.PurchaseEvent
	for rows.Next() {
		var (
			itemID   string
			at       time.Time
			quantity int
		)
		if err := rows.Scan(&itemID, &at, &quantity); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, models.PurchaseEvent{
			UserID:   userID,
			ItemID:   itemID,
			At:       at.UTC().Format(time.RFC3339),
			Quantity: quantity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("purchase rows failed: %w", err)
	}
	return purchases, nil
}

// GetFavorites returns the ids of the user's favorited items.
func (r *Repository) GetFavorites(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT product_id FROM favorites WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("favorites query failed: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetCommentRatings returns the mean comment rating per product.
func (r *Repository) GetCommentRatings(ctx context.Context) (map[string]float64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT product_id, AVG(rating)::float8 FROM comments GROUP BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("ratings query failed: %w", err)
	}
	defer rows.Close()

	ratings := make(map[string]float64)
	for rows.Next() {
		var (
			id  string
			avg float64
		)
		if err := rows.Scan(&id, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		ratings[id] = avg
	}
	return ratings, rows.Err()
}

// GetSeasonalKeywords returns the keyword table maintained in the
// database. Every season is present in the result, possibly with no
// keywords. Rows naming an unknown season are skipped.
func (r *Repository) GetSeasonalKeywords(ctx context.Context) (ranking.SeasonTable, error) {
	rows, err := r.db.Query(ctx, `SELECT season, keyword FROM seasonal_keywords ORDER BY season, id`)
	if err != nil {
		return nil, fmt.Errorf("seasonal keywords query failed: %w", err)
	}
	defer rows.Close()

	table := make(ranking.SeasonTable, len(ranking.AllSeasons))
	for _, s := range ranking.AllSeasons {
		table[s] = []string{}
	}
	for rows.Next() {
		var season, keyword string
		if err := rows.Scan(&season, &keyword); err != nil {
			return nil, fmt.Errorf("failed to scan seasonal keyword: %w", err)
		}
		s, err := ranking.ParseSeason(season)
		if err != nil {
			r.logger.WithField("season", season).Warn("Skipping keyword for unknown season")
			continue
		}
		table[s] = append(table[s], keyword)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("seasonal keyword rows failed: %w", err)
	}
	return table, nil
}

// HasSeasonalKeywords reports whether the keyword table has any rows.
func (r *Repository) HasSeasonalKeywords(ctx context.Context) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM seasonal_keywords)`).Scan(&exists); err != nil {
		return false, fmt.Errorf("seasonal keywords check failed: %w", err)
	}
	return exists, nil
}
