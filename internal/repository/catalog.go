package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/temcen/glowrank/pkg/models"
)

const itemColumns = `id, name, description, brand, category, tags, suitable_for, skin_type,
		price, currency, stock, rating, products_tokens, updated_at`

// ItemArtifacts are the per-item outputs of an index build that are
// persisted next to the product row.
type ItemArtifacts struct {
	ItemID    string
	TokenBag  *models.TokenBag
	Neighbors []models.Neighbor
}

// LoadCatalog returns every product in catalog order.
func (r *Repository) LoadCatalog(ctx context.Context) ([]models.Item, error) {
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM products ORDER BY seq, id`)
	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog rows failed: %w", err)
	}
	return items, nil
}

// GetItem returns one product.
func (r *Repository) GetItem(ctx context.Context, id string) (*models.Item, error) {
	row := r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM products WHERE id = $1`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return item, err
}

// CatalogVersion fingerprints the catalog by row count and latest update,
// so that any product change yields a new version.
func (r *Repository) CatalogVersion(ctx context.Context) (string, error) {
	var count int64
	var latest *time.Time
	err := r.db.QueryRow(ctx, `SELECT count(*), max(updated_at) FROM products`).Scan(&count, &latest)
	if err != nil {
		return "", fmt.Errorf("catalog version query failed: %w", err)
	}
	if latest == nil {
		return fmt.Sprintf("%d-0", count), nil
	}
	return fmt.Sprintf("%d-%d", count, latest.UnixNano()), nil
}

// UpsertItem inserts or replaces a product. Cached tokens are cleared so
// that the next index build re-tokenizes the new text.
func (r *Repository) UpsertItem(ctx context.Context, item *models.Item) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO products (id, name, description, brand, category, tags, suitable_for, skin_type,
			price, currency, stock, rating, products_tokens, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULL, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			brand = EXCLUDED.brand,
			category = EXCLUDED.category,
			tags = EXCLUDED.tags,
			suitable_for = EXCLUDED.suitable_for,
			skin_type = EXCLUDED.skin_type,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			stock = EXCLUDED.stock,
			rating = EXCLUDED.rating,
			products_tokens = NULL,
			updated_at = now()`,
		item.ID, item.Name, item.Description, item.Brand, item.Category,
		nonNil(item.Tags), nonNil(item.SuitableFor), nonNil(item.SkinType),
		item.Price, currencyOrDefault(item.Currency), item.Stock, item.AverageRating,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", item.ID, err)
	}
	return nil
}

// SaveIndexArtifacts stores token bags and similarity neighbors for every
// item in one transaction. updated_at is left untouched so the catalog
// version does not change.
func (r *Repository) SaveIndexArtifacts(ctx context.Context, artifacts []ItemArtifacts, threshold float64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range artifacts {
		tokens, err := json.Marshal(a.TokenBag)
		if err != nil {
			return fmt.Errorf("failed to encode tokens for %s: %w", a.ItemID, err)
		}
		neighbors := a.Neighbors
		if neighbors == nil {
			neighbors = []models.Neighbor{}
		}
		similar, err := json.Marshal(neighbors)
		if err != nil {
			return fmt.Errorf("failed to encode neighbors for %s: %w", a.ItemID, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE products SET products_tokens = $2, similar_products = $3, similarity_threshold = $4 WHERE id = $1`,
			a.ItemID, tokens, similar, threshold,
		); err != nil {
			return fmt.Errorf("failed to save artifacts for %s: %w", a.ItemID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit index artifacts: %w", err)
	}
	r.logger.WithFields(logrus.Fields{
		"items":     len(artifacts),
		"threshold": threshold,
	}).Info("Index artifacts persisted")
	return nil
}

// GetSimilar returns the neighbors persisted by the last index build.
func (r *Repository) GetSimilar(ctx context.Context, id string) ([]models.Neighbor, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, `SELECT similar_products FROM products WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("similar products query failed: %w", err)
	}
	var neighbors []models.Neighbor
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &neighbors); err != nil {
			return nil, fmt.Errorf("failed to decode similar products for %s: %w", id, err)
		}
	}
	return neighbors, nil
}

func scanItem(row pgx.Row) (*models.Item, error) {
	var item models.Item
	var tokens []byte
	err := row.Scan(
		&item.ID, &item.Name, &item.Description, &item.Brand, &item.Category,
		&item.Tags, &item.SuitableFor, &item.SkinType,
		&item.Price, &item.Currency, &item.Stock, &item.AverageRating,
		&tokens, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	if len(tokens) > 0 {
		var bag models.TokenBag
		if err := json.Unmarshal(tokens, &bag); err == nil {
			item.TokenBag = &bag
		}
	}
	return &item, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func currencyOrDefault(c string) string {
	if c == "" {
		return "IRR"
	}
	return c
}
