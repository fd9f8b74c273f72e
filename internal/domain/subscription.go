package domain

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPaused    SubscriptionStatus = "PAUSED"
	SubscriptionStatusExpired   SubscriptionStatus = "EXPIRED"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCancelled
}

func (s SubscriptionStatus) CanTransitionTo(next SubscriptionStatus) bool {
	switch s {
	case SubscriptionStatusActive:
		return next == SubscriptionStatusPaused || next == SubscriptionStatusExpired || next == SubscriptionStatusCancelled
	case SubscriptionStatusPaused:
		return next == SubscriptionStatusActive || next == SubscriptionStatusExpired || next == SubscriptionStatusCancelled
	case SubscriptionStatusExpired:
		return next == SubscriptionStatusCancelled
	default:
		return false
	}
}

// Default delivery weekdays for a subscription week.
var DefaultDeliveryDays = [2]time.Weekday{time.Monday, time.Thursday}

type WeeklySubscription struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	BoxTypeID      uuid.UUID
	StartDate      time.Time
	EndDate        time.Time
	DurationWeeks  int
	PricePerWeek   int64
	TotalPrice     int64
	PricePerBox    int64
	FirstDay       time.Weekday
	SecondDay      time.Weekday
	Status         SubscriptionStatus
	Address        string
	RecipientName  string
	RecipientPhone string
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WeeklyDeliverySchedule is one calendar week of a subscription, unique per
// (SubscriptionID, WeekStartDate). Each week has two delivery slots.
type WeeklyDeliverySchedule struct {
	ID             uuid.UUID
	SubscriptionID uuid.UUID
	WeekStartDate  time.Time
	WeekEndDate    time.Time

	FirstDeliveryDate time.Time
	FirstDelivered    bool
	FirstDeliveredAt  *time.Time

	SecondDeliveryDate time.Time
	SecondDelivered    bool
	SecondDeliveredAt  *time.Time

	IsPaused    bool
	PauseReason *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeliveredCount is capped at 2 by construction: each slot flips at most once.
func (w *WeeklyDeliverySchedule) DeliveredCount() int {
	n := 0
	if w.FirstDelivered {
		n++
	}
	if w.SecondDelivered {
		n++
	}
	return n
}

// PlannedDates derives the two delivery dates inside the week starting at
// weekStart for the given weekdays. weekStart must be the first delivery day.
func PlannedDates(weekStart time.Time, firstDay, secondDay time.Weekday) (time.Time, time.Time) {
	offset := int(secondDay-firstDay+7) % 7
	return weekStart, weekStart.AddDate(0, 0, offset)
}
