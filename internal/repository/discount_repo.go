package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/greenbox-dev/greenbox/internal/domain"
)

func (r *Repository) GetDiscountByCode(ctx context.Context, code string) (*domain.Discount, error) {
	query := `SELECT id, code, value, is_percentage, start_date, end_date, is_active, created_at, updated_at
	          FROM discounts WHERE code = $1`

	var d domain.Discount
	err := r.Handle(ctx).QueryRowContext(ctx, query, domain.NormalizeCode(code)).Scan(
		&d.ID,
		&d.Code,
		&d.Value,
		&d.IsPercentage,
		&d.StartDate,
		&d.EndDate,
		&d.IsActive,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDiscountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query discount by code: %w", err)
	}
	return &d, nil
}

// ReserveDiscountForUser inserts the (user, discount) usage fact. The primary
// key on the pair is the final arbiter of at-most-once redemption: when two
// checkouts race, exactly one insert succeeds and the loser gets
// ErrDiscountAlreadyUsed.
func (r *Repository) ReserveDiscountForUser(ctx context.Context, userID, discountID uuid.UUID) error {
	query := `INSERT INTO user_discount_usages (user_id, discount_id, used_at) VALUES ($1, $2, NOW())`

	_, err := r.Handle(ctx).ExecContext(ctx, query, userID, discountID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDiscountAlreadyUsed
		}
		return fmt.Errorf("insert discount usage: %w", err)
	}
	return nil
}

func (r *Repository) HasUserUsedDiscount(ctx context.Context, userID, discountID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM user_discount_usages WHERE user_id = $1 AND discount_id = $2)`

	var used bool
	if err := r.Handle(ctx).QueryRowContext(ctx, query, userID, discountID).Scan(&used); err != nil {
		return false, fmt.Errorf("query discount usage: %w", err)
	}
	return used, nil
}
