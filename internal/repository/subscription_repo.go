package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/greenbox-dev/greenbox/internal/domain"
)

func (r *Repository) CreateSubscription(ctx context.Context, sub *domain.WeeklySubscription) error {
	query := `INSERT INTO weekly_subscriptions (id, user_id, box_type_id, start_date, end_date,
	            duration_weeks, price_per_week, total_price, price_per_box, first_day, second_day,
	            status, address, recipient_name, recipient_phone, notes, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())`

	_, err := r.Handle(ctx).ExecContext(ctx, query,
		sub.ID,
		sub.UserID,
		sub.BoxTypeID,
		sub.StartDate,
		sub.EndDate,
		sub.DurationWeeks,
		sub.PricePerWeek,
		sub.TotalPrice,
		sub.PricePerBox,
		int(sub.FirstDay),
		int(sub.SecondDay),
		sub.Status,
		sub.Address,
		sub.RecipientName,
		sub.RecipientPhone,
		sub.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (r *Repository) GetSubscriptionByID(ctx context.Context, id uuid.UUID) (*domain.WeeklySubscription, error) {
	query := `SELECT id, user_id, box_type_id, start_date, end_date, duration_weeks, price_per_week,
	            total_price, price_per_box, first_day, second_day, status, address, recipient_name,
	            recipient_phone, notes, created_at, updated_at
	          FROM weekly_subscriptions WHERE id = $1 AND deleted_at IS NULL`

	var sub domain.WeeklySubscription
	var firstDay, secondDay int
	err := r.Handle(ctx).QueryRowContext(ctx, query, id).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.BoxTypeID,
		&sub.StartDate,
		&sub.EndDate,
		&sub.DurationWeeks,
		&sub.PricePerWeek,
		&sub.TotalPrice,
		&sub.PricePerBox,
		&firstDay,
		&secondDay,
		&sub.Status,
		&sub.Address,
		&sub.RecipientName,
		&sub.RecipientPhone,
		&sub.Notes,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query subscription: %w", err)
	}
	sub.FirstDay = time.Weekday(firstDay)
	sub.SecondDay = time.Weekday(secondDay)
	return &sub, nil
}

func (r *Repository) UpdateSubscriptionStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus) error {
	query := `UPDATE weekly_subscriptions SET status = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.Handle(ctx).ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	return requireRow(res, ErrSubscriptionNotFound)
}

// ExtendSubscription moves end_date forward and bumps the duration on renewal.
func (r *Repository) ExtendSubscription(ctx context.Context, id uuid.UUID, newEndDate time.Time, additionalWeeks int) error {
	query := `UPDATE weekly_subscriptions
	          SET end_date = $2, duration_weeks = duration_weeks + $3, status = $4, updated_at = NOW()
	          WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.Handle(ctx).ExecContext(ctx, query, id, newEndDate, additionalWeeks, domain.SubscriptionStatusActive)
	if err != nil {
		return fmt.Errorf("extend subscription: %w", err)
	}
	return requireRow(res, ErrSubscriptionNotFound)
}

// ExpireSubscriptions flips every Active/Paused subscription whose end date
// has passed. Used by the administrative sweep.
func (r *Repository) ExpireSubscriptions(ctx context.Context, asOf time.Time) (int64, error) {
	query := `UPDATE weekly_subscriptions SET status = $1, updated_at = NOW()
	          WHERE status IN ($2, $3) AND end_date < $4 AND deleted_at IS NULL`
	res, err := r.Handle(ctx).ExecContext(ctx, query,
		domain.SubscriptionStatusExpired,
		domain.SubscriptionStatusActive,
		domain.SubscriptionStatusPaused,
		asOf,
	)
	if err != nil {
		return 0, fmt.Errorf("expire subscriptions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

const scheduleColumns = `id, subscription_id, week_start_date, week_end_date,
	first_delivery_date, first_delivered, first_delivered_at,
	second_delivery_date, second_delivered, second_delivered_at,
	is_paused, pause_reason, created_at, updated_at`

// CreateScheduleWeek inserts one week row. The unique pair
// (subscription_id, week_start_date) makes generation idempotent: a replayed
// insert returns ErrDuplicateWeek instead of a second row.
func (r *Repository) CreateScheduleWeek(ctx context.Context, week *domain.WeeklyDeliverySchedule) error {
	query := `INSERT INTO weekly_delivery_schedules (id, subscription_id, week_start_date, week_end_date,
	            first_delivery_date, second_delivery_date, is_paused, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW(), NOW())`

	_, err := r.Handle(ctx).ExecContext(ctx, query,
		week.ID,
		week.SubscriptionID,
		week.WeekStartDate,
		week.WeekEndDate,
		week.FirstDeliveryDate,
		week.SecondDeliveryDate,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateWeek
		}
		return fmt.Errorf("insert schedule week: %w", err)
	}
	return nil
}

func (r *Repository) GetScheduleByID(ctx context.Context, id uuid.UUID) (*domain.WeeklyDeliverySchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM weekly_delivery_schedules WHERE id = $1`
	return scanSchedule(r.Handle(ctx).QueryRowContext(ctx, query, id))
}

func (r *Repository) GetScheduleByWeek(ctx context.Context, subscriptionID uuid.UUID, weekStart time.Time) (*domain.WeeklyDeliverySchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM weekly_delivery_schedules
	          WHERE subscription_id = $1 AND week_start_date = $2`
	return scanSchedule(r.Handle(ctx).QueryRowContext(ctx, query, subscriptionID, weekStart))
}

// GetLastScheduleWeek returns the latest week row, used by renewal to continue
// the weekday pattern.
func (r *Repository) GetLastScheduleWeek(ctx context.Context, subscriptionID uuid.UUID) (*domain.WeeklyDeliverySchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM weekly_delivery_schedules
	          WHERE subscription_id = $1 ORDER BY week_start_date DESC LIMIT 1`
	return scanSchedule(r.Handle(ctx).QueryRowContext(ctx, query, subscriptionID))
}

func scanSchedule(row *sql.Row) (*domain.WeeklyDeliverySchedule, error) {
	var w domain.WeeklyDeliverySchedule
	err := row.Scan(
		&w.ID,
		&w.SubscriptionID,
		&w.WeekStartDate,
		&w.WeekEndDate,
		&w.FirstDeliveryDate,
		&w.FirstDelivered,
		&w.FirstDeliveredAt,
		&w.SecondDeliveryDate,
		&w.SecondDelivered,
		&w.SecondDeliveredAt,
		&w.IsPaused,
		&w.PauseReason,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	return &w, nil
}

func (r *Repository) ListSchedulesBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*domain.WeeklyDeliverySchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM weekly_delivery_schedules
	          WHERE subscription_id = $1 ORDER BY week_start_date`
	return r.listSchedules(ctx, query, subscriptionID)
}

// ListDueSchedules returns unpaused weeks with an undelivered slot planned on
// or before asOf. Paused weeks are not due until resumed.
func (r *Repository) ListDueSchedules(ctx context.Context, asOf time.Time) ([]*domain.WeeklyDeliverySchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM weekly_delivery_schedules
	          WHERE is_paused = FALSE
	            AND ((first_delivered = FALSE AND first_delivery_date <= $1)
	              OR (second_delivered = FALSE AND second_delivery_date <= $1))
	          ORDER BY week_start_date`
	return r.listSchedules(ctx, query, asOf)
}

// ListPausedWeeksEndingBefore finds paused weeks whose window has already
// closed; the sweep resumes them into a later week.
func (r *Repository) ListPausedWeeksEndingBefore(ctx context.Context, asOf time.Time) ([]*domain.WeeklyDeliverySchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM weekly_delivery_schedules
	          WHERE is_paused = TRUE AND week_end_date < $1
	          ORDER BY week_start_date`
	return r.listSchedules(ctx, query, asOf)
}

func (r *Repository) listSchedules(ctx context.Context, query string, args ...any) ([]*domain.WeeklyDeliverySchedule, error) {
	rows, err := r.Handle(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.WeeklyDeliverySchedule
	for rows.Next() {
		var w domain.WeeklyDeliverySchedule
		if err := rows.Scan(
			&w.ID,
			&w.SubscriptionID,
			&w.WeekStartDate,
			&w.WeekEndDate,
			&w.FirstDeliveryDate,
			&w.FirstDelivered,
			&w.FirstDeliveredAt,
			&w.SecondDeliveryDate,
			&w.SecondDelivered,
			&w.SecondDeliveredAt,
			&w.IsPaused,
			&w.PauseReason,
			&w.CreatedAt,
			&w.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan schedule row: %w", err)
		}
		schedules = append(schedules, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return schedules, nil
}

// MarkSlotDelivered flips one slot's delivered flag. The WHERE guard makes the
// flip one-way: a second attempt affects zero rows and is reported as
// ErrAlreadyDelivered, leaving the original delivered_at untouched.
func (r *Repository) MarkSlotDelivered(ctx context.Context, id uuid.UUID, slot int, deliveredAt time.Time) error {
	var query string
	switch slot {
	case 1:
		query = `UPDATE weekly_delivery_schedules
		         SET first_delivered = TRUE, first_delivered_at = $2, updated_at = NOW()
		         WHERE id = $1 AND first_delivered = FALSE`
	case 2:
		query = `UPDATE weekly_delivery_schedules
		         SET second_delivered = TRUE, second_delivered_at = $2, updated_at = NOW()
		         WHERE id = $1 AND second_delivered = FALSE`
	default:
		return ErrInvalidSlot
	}

	res, err := r.Handle(ctx).ExecContext(ctx, query, id, deliveredAt)
	if err != nil {
		return fmt.Errorf("mark slot delivered: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.GetScheduleByID(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyDelivered
	}
	return nil
}

// PauseWeek pauses exactly one week row; neighboring weeks are untouched.
func (r *Repository) PauseWeek(ctx context.Context, subscriptionID uuid.UUID, weekStart time.Time, reason *string) error {
	query := `UPDATE weekly_delivery_schedules
	          SET is_paused = TRUE, pause_reason = $3, updated_at = NOW()
	          WHERE subscription_id = $1 AND week_start_date = $2`
	res, err := r.Handle(ctx).ExecContext(ctx, query, subscriptionID, weekStart, reason)
	if err != nil {
		return fmt.Errorf("pause week: %w", err)
	}
	return requireRow(res, ErrScheduleNotFound)
}

// ResumeWeek clears the pause. Non-nil dates substitute new planned dates so a
// skipped week can be rescheduled without creating a duplicate row.
func (r *Repository) ResumeWeek(ctx context.Context, id uuid.UUID, newFirst, newSecond *time.Time) error {
	query := `UPDATE weekly_delivery_schedules
	          SET is_paused = FALSE, pause_reason = NULL,
	              first_delivery_date = COALESCE($2, first_delivery_date),
	              second_delivery_date = COALESCE($3, second_delivery_date),
	              updated_at = NOW()
	          WHERE id = $1`
	res, err := r.Handle(ctx).ExecContext(ctx, query, id, newFirst, newSecond)
	if err != nil {
		return fmt.Errorf("resume week: %w", err)
	}
	return requireRow(res, ErrScheduleNotFound)
}
