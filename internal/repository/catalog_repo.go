package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/greenbox-dev/greenbox/internal/domain"
)

// GetBoxType is the read-only catalog lookup used for price capture at
// checkout. Prices are copied onto order lines, never referenced live.
func (r *Repository) GetBoxType(ctx context.Context, id uuid.UUID) (*domain.BoxType, error) {
	query := `SELECT id, name, price, is_active, created_at, updated_at
	          FROM box_types WHERE id = $1 AND is_active = TRUE`

	var b domain.BoxType
	err := r.Handle(ctx).QueryRowContext(ctx, query, id).Scan(
		&b.ID,
		&b.Name,
		&b.Price,
		&b.IsActive,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBoxTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query box type: %w", err)
	}
	return &b, nil
}
