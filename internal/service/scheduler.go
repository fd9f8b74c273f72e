package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/greenbox-dev/greenbox/internal/domain"
	"github.com/greenbox-dev/greenbox/internal/notifier"
	"github.com/greenbox-dev/greenbox/internal/repository"
)

type SchedulerStore interface {
	Run(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, q repository.DBTX) error) error
	GetBoxType(ctx context.Context, id uuid.UUID) (*domain.BoxType, error)
	CreateSubscription(ctx context.Context, sub *domain.WeeklySubscription) error
	GetSubscriptionByID(ctx context.Context, id uuid.UUID) (*domain.WeeklySubscription, error)
	UpdateSubscriptionStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus) error
	ExtendSubscription(ctx context.Context, id uuid.UUID, newEndDate time.Time, additionalWeeks int) error
	ExpireSubscriptions(ctx context.Context, asOf time.Time) (int64, error)
	CreateScheduleWeek(ctx context.Context, week *domain.WeeklyDeliverySchedule) error
	GetScheduleByID(ctx context.Context, id uuid.UUID) (*domain.WeeklyDeliverySchedule, error)
	GetLastScheduleWeek(ctx context.Context, subscriptionID uuid.UUID) (*domain.WeeklyDeliverySchedule, error)
	ListSchedulesBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*domain.WeeklyDeliverySchedule, error)
	ListDueSchedules(ctx context.Context, asOf time.Time) ([]*domain.WeeklyDeliverySchedule, error)
	ListPausedWeeksEndingBefore(ctx context.Context, asOf time.Time) ([]*domain.WeeklyDeliverySchedule, error)
	MarkSlotDelivered(ctx context.Context, id uuid.UUID, slot int, deliveredAt time.Time) error
	PauseWeek(ctx context.Context, subscriptionID uuid.UUID, weekStart time.Time, reason *string) error
	ResumeWeek(ctx context.Context, id uuid.UUID, newFirst, newSecond *time.Time) error
}

type SubscriptionRequest struct {
	UserID         uuid.UUID
	BoxTypeID      uuid.UUID
	StartDate      time.Time
	DurationWeeks  int
	PricePerWeek   int64 // 0 means two standalone boxes, no package discount
	DeliveryDays   *[2]time.Weekday
	PaymentMethod  domain.PaymentMethod
	Address        string
	RecipientName  string
	RecipientPhone string
	Notes          string
}

type SweepResult struct {
	ExpiredSubscriptions int64
	ResumedWeeks         int
	MarkedDeliveries     int
}

type SchedulerService struct {
	store    SchedulerStore
	notifier notifier.Notifier
	now      func() time.Time
}

func NewSchedulerService(store SchedulerStore, n notifier.Notifier) *SchedulerService {
	return &SchedulerService{store: store, notifier: n, now: time.Now}
}

// CreateSubscription creates the subscription and its full twice-a-week
// schedule in one transaction. The start date is the canonical first delivery
// weekday; each of the duration's 7-day blocks gets exactly one week row.
func (s *SchedulerService) CreateSubscription(ctx context.Context, req *SubscriptionRequest) (*domain.WeeklySubscription, error) {
	if req.DurationWeeks < 1 || req.DurationWeeks > 52 {
		return nil, ErrInvalidDuration
	}

	days := domain.DefaultDeliveryDays
	if req.DeliveryDays != nil {
		days = *req.DeliveryDays
	}
	if days[0] == days[1] {
		return nil, ErrInvalidDeliveryDays
	}
	if req.StartDate.Weekday() != days[0] {
		return nil, ErrStartDateMismatch
	}

	box, err := s.store.GetBoxType(ctx, req.BoxTypeID)
	if err != nil {
		return nil, err
	}

	pricePerWeek := req.PricePerWeek
	if pricePerWeek == 0 {
		pricePerWeek = 2 * box.Price
	}

	sub := &domain.WeeklySubscription{
		ID:             uuid.New(),
		UserID:         req.UserID,
		BoxTypeID:      box.ID,
		StartDate:      req.StartDate,
		EndDate:        req.StartDate.AddDate(0, 0, 7*req.DurationWeeks-1),
		DurationWeeks:  req.DurationWeeks,
		PricePerWeek:   pricePerWeek,
		TotalPrice:     pricePerWeek * int64(req.DurationWeeks),
		PricePerBox:    box.Price,
		FirstDay:       days[0],
		SecondDay:      days[1],
		Status:         domain.SubscriptionStatusActive,
		Address:        req.Address,
		RecipientName:  req.RecipientName,
		RecipientPhone: req.RecipientPhone,
		Notes:          req.Notes,
	}

	err = s.store.Run(ctx, nil, func(txCtx context.Context, _ repository.DBTX) error {
		if err := s.store.CreateSubscription(txCtx, sub); err != nil {
			return err
		}
		_, err := s.generateWeeks(txCtx, sub, sub.StartDate, sub.DurationWeeks)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifier.EventSubscriptionCreated, sub.ID.String(), map[string]any{
		"subscription_id": sub.ID,
		"user_id":         sub.UserID,
		"duration_weeks":  sub.DurationWeeks,
	})
	return sub, nil
}

// generateWeeks creates one schedule row per 7-day block starting at
// firstWeekStart. Rows that already exist are skipped, making generation
// idempotent under replays; the unique week pair enforces that.
func (s *SchedulerService) generateWeeks(ctx context.Context, sub *domain.WeeklySubscription, firstWeekStart time.Time, count int) (int, error) {
	created := 0
	for i := 0; i < count; i++ {
		weekStart := firstWeekStart.AddDate(0, 0, 7*i)
		first, second := domain.PlannedDates(weekStart, sub.FirstDay, sub.SecondDay)
		week := &domain.WeeklyDeliverySchedule{
			ID:                 uuid.New(),
			SubscriptionID:     sub.ID,
			WeekStartDate:      weekStart,
			WeekEndDate:        weekStart.AddDate(0, 0, 6),
			FirstDeliveryDate:  first,
			SecondDeliveryDate: second,
		}
		err := s.store.CreateScheduleWeek(ctx, week)
		if errors.Is(err, repository.ErrDuplicateWeek) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("generate week %s: %w", weekStart.Format("2006-01-02"), err)
		}
		created++
	}
	return created, nil
}

// GenerateSchedule re-runs week generation over the subscription's current
// range. Safe to invoke any number of times; existing weeks are untouched.
func (s *SchedulerService) GenerateSchedule(ctx context.Context, subscriptionID uuid.UUID) (int, error) {
	sub, err := s.store.GetSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return 0, err
	}
	var created int
	err = s.store.Run(ctx, nil, func(txCtx context.Context, _ repository.DBTX) error {
		created, err = s.generateWeeks(txCtx, sub, sub.StartDate, sub.DurationWeeks)
		return err
	})
	return created, err
}

// Renew extends the subscription and appends week rows continuing the
// delivery-day pattern from the last existing week.
func (s *SchedulerService) Renew(ctx context.Context, subscriptionID uuid.UUID, additionalWeeks int) (*domain.WeeklySubscription, error) {
	if additionalWeeks < 1 || additionalWeeks > 52 {
		return nil, ErrInvalidDuration
	}

	var sub *domain.WeeklySubscription
	err := s.store.Run(ctx, nil, func(txCtx context.Context, _ repository.DBTX) error {
		current, err := s.store.GetSubscriptionByID(txCtx, subscriptionID)
		if err != nil {
			return err
		}
		if current.Status == domain.SubscriptionStatusCancelled {
			return ErrSubscriptionClosed
		}

		nextWeekStart := current.StartDate
		last, err := s.store.GetLastScheduleWeek(txCtx, subscriptionID)
		if err == nil {
			nextWeekStart = last.WeekStartDate.AddDate(0, 0, 7)
		} else if !errors.Is(err, repository.ErrScheduleNotFound) {
			return err
		}

		newEnd := nextWeekStart.AddDate(0, 0, 7*additionalWeeks-1)
		if newEnd.Before(current.EndDate) {
			newEnd = current.EndDate
		}
		if err := s.store.ExtendSubscription(txCtx, subscriptionID, newEnd, additionalWeeks); err != nil {
			return err
		}
		if _, err := s.generateWeeks(txCtx, current, nextWeekStart, additionalWeeks); err != nil {
			return err
		}

		current.EndDate = newEnd
		current.DurationWeeks += additionalWeeks
		current.Status = domain.SubscriptionStatusActive
		sub = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// MarkDelivered flips one delivery slot, once. deliveredAt nil means now.
func (s *SchedulerService) MarkDelivered(ctx context.Context, scheduleID uuid.UUID, slot int, deliveredAt *time.Time) error {
	if slot != 1 && slot != 2 {
		return repository.ErrInvalidSlot
	}
	at := s.now()
	if deliveredAt != nil {
		at = *deliveredAt
	}
	if err := s.store.MarkSlotDelivered(ctx, scheduleID, slot, at); err != nil {
		return err
	}

	s.notifier.Notify(ctx, notifier.EventDeliveryCompleted, scheduleID.String(), map[string]any{
		"schedule_id":  scheduleID,
		"slot":         slot,
		"delivered_at": at,
	})
	return nil
}

// PauseWeek pauses a single week of the schedule; neighbors stay due.
func (s *SchedulerService) PauseWeek(ctx context.Context, subscriptionID uuid.UUID, weekStart time.Time, reason *string) error {
	return s.store.PauseWeek(ctx, subscriptionID, weekStart, reason)
}

// ResumeWeek clears a week's pause, optionally substituting new planned
// dates so the skipped deliveries are rescheduled instead of lost.
func (s *SchedulerService) ResumeWeek(ctx context.Context, scheduleID uuid.UUID, newFirst, newSecond *time.Time) (*domain.WeeklyDeliverySchedule, error) {
	err := s.store.Run(ctx, nil, func(txCtx context.Context, _ repository.DBTX) error {
		return s.store.ResumeWeek(txCtx, scheduleID, newFirst, newSecond)
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetScheduleByID(ctx, scheduleID)
}

func (s *SchedulerService) PauseSubscription(ctx context.Context, id uuid.UUID) error {
	return s.transitionSubscription(ctx, id, domain.SubscriptionStatusPaused)
}

func (s *SchedulerService) ResumeSubscription(ctx context.Context, id uuid.UUID) error {
	return s.transitionSubscription(ctx, id, domain.SubscriptionStatusActive)
}

func (s *SchedulerService) CancelSubscription(ctx context.Context, id uuid.UUID) error {
	return s.transitionSubscription(ctx, id, domain.SubscriptionStatusCancelled)
}

func (s *SchedulerService) transitionSubscription(ctx context.Context, id uuid.UUID, next domain.SubscriptionStatus) error {
	return s.store.Run(ctx, nil, func(txCtx context.Context, _ repository.DBTX) error {
		sub, err := s.store.GetSubscriptionByID(txCtx, id)
		if err != nil {
			return err
		}
		if !sub.Status.CanTransitionTo(next) {
			return IllegalTransitionError
		}
		return s.store.UpdateSubscriptionStatus(txCtx, id, next)
	})
}

func (s *SchedulerService) ListSchedule(ctx context.Context, subscriptionID uuid.UUID) ([]*domain.WeeklyDeliverySchedule, error) {
	return s.store.ListSchedulesBySubscription(ctx, subscriptionID)
}

func (s *SchedulerService) ListDue(ctx context.Context, asOf time.Time) ([]*domain.WeeklyDeliverySchedule, error) {
	return s.store.ListDueSchedules(ctx, asOf)
}

// Sweep is the administrative pass: expire run-out subscriptions, mark
// deliveries whose planned date has arrived, and resume paused weeks whose
// window has closed by shifting their planned dates into the current week.
func (s *SchedulerService) Sweep(ctx context.Context, asOf time.Time) (*SweepResult, error) {
	result := &SweepResult{}

	expired, err := s.store.ExpireSubscriptions(ctx, asOf)
	if err != nil {
		return nil, err
	}
	result.ExpiredSubscriptions = expired

	due, err := s.store.ListDueSchedules(ctx, asOf)
	if err != nil {
		return nil, err
	}
	for _, week := range due {
		if !week.FirstDelivered && !week.FirstDeliveryDate.After(asOf) {
			if err := s.markSweepSlot(ctx, week.ID, 1, asOf, result); err != nil {
				return nil, err
			}
		}
		if !week.SecondDelivered && !week.SecondDeliveryDate.After(asOf) {
			if err := s.markSweepSlot(ctx, week.ID, 2, asOf, result); err != nil {
				return nil, err
			}
		}
	}

	paused, err := s.store.ListPausedWeeksEndingBefore(ctx, asOf)
	if err != nil {
		return nil, err
	}
	for _, week := range paused {
		newFirst := shiftForward(week.FirstDeliveryDate, asOf)
		newSecond := shiftForward(week.SecondDeliveryDate, asOf)
		if err := s.store.ResumeWeek(ctx, week.ID, &newFirst, &newSecond); err != nil {
			if errors.Is(err, repository.ErrScheduleNotFound) {
				continue
			}
			return nil, err
		}
		result.ResumedWeeks++
		log.Printf("resumed paused week %s of subscription %s, rescheduled to %s",
			week.WeekStartDate.Format("2006-01-02"), week.SubscriptionID,
			newFirst.Format("2006-01-02"))
	}

	return result, nil
}

// markSweepSlot flips one due slot and dispatches the same completion event
// the direct delivery entry point does.
func (s *SchedulerService) markSweepSlot(ctx context.Context, weekID uuid.UUID, slot int, asOf time.Time, result *SweepResult) error {
	err := s.store.MarkSlotDelivered(ctx, weekID, slot, asOf)
	if errors.Is(err, repository.ErrAlreadyDelivered) {
		return nil
	}
	if err != nil {
		return err
	}
	result.MarkedDeliveries++

	s.notifier.Notify(ctx, notifier.EventDeliveryCompleted, weekID.String(), map[string]any{
		"schedule_id":  weekID,
		"slot":         slot,
		"delivered_at": asOf,
	})
	return nil
}

// shiftForward advances a planned date in whole weeks until it is not before
// asOf, preserving the weekday pattern.
func shiftForward(date, asOf time.Time) time.Time {
	for date.Before(asOf) {
		date = date.AddDate(0, 0, 7)
	}
	return date
}
