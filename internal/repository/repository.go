package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrItemNotFound = errors.New("item not found")
)

//go:embed schema.sql
var schemaSQL string

// Querier is the subset of pgxpool.Pool the repository needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository reads the catalog and user history from PostgreSQL and
// persists preference profiles and index artifacts.
type Repository struct {
	db     Querier
	logger *logrus.Logger
}

// New creates a repository over db.
func New(db Querier, logger *logrus.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Migrate creates the tables when they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	r.logger.Info("Database schema applied")
	return nil
}
