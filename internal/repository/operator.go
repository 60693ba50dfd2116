package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lottodesk/platform/internal/domain"
)

// PgOperatorRepository implements OperatorRepository using pgx.
type PgOperatorRepository struct{}

// NewPgOperatorRepository creates a new PgOperatorRepository.
func NewPgOperatorRepository() *PgOperatorRepository {
	return &PgOperatorRepository{}
}

// FindByID returns an operator by ID, or nil if not found.
func (r *PgOperatorRepository) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Operator, error) {
	row := db.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at
		 FROM operators WHERE id = $1`, id)
	return scanOperator(row)
}

// FindByUsername returns an operator by username (case-insensitive), or nil if not found.
func (r *PgOperatorRepository) FindByUsername(ctx context.Context, db DBTX, username string) (*domain.Operator, error) {
	row := db.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at
		 FROM operators WHERE lower(username) = lower($1)`, username)
	return scanOperator(row)
}

// Create inserts a new operator and fills CreatedAt.
func (r *PgOperatorRepository) Create(ctx context.Context, db DBTX, op *domain.Operator) error {
	err := db.QueryRow(ctx,
		`INSERT INTO operators (id, username, password_hash) VALUES ($1, $2, $3)
		 RETURNING created_at`,
		op.ID, op.Username, op.PasswordHash).Scan(&op.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert operator: %w", err)
	}
	return nil
}

func scanOperator(row pgx.Row) (*domain.Operator, error) {
	op := &domain.Operator{}
	err := row.Scan(&op.ID, &op.Username, &op.PasswordHash, &op.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan operator: %w", err)
	}
	return op, nil
}
