package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbox-dev/greenbox/internal/domain"
	"github.com/greenbox-dev/greenbox/internal/notifier"
	"github.com/greenbox-dev/greenbox/internal/repository"
)

// monday 2026-03-02
func mondayStart() time.Time {
	return time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
}

func newScheduler(store *fakeStore) (*SchedulerService, *mockNotifier) {
	n := &mockNotifier{}
	svc := NewSchedulerService(store, n)
	svc.now = fixedNow
	return svc, n
}

func createTestSubscription(t *testing.T, svc *SchedulerService, store *fakeStore, weeks int) *domain.WeeklySubscription {
	t.Helper()
	box := seedBox(store, 150000)
	sub, err := svc.CreateSubscription(context.Background(), &SubscriptionRequest{
		UserID:        uuid.New(),
		BoxTypeID:     box.ID,
		StartDate:     mondayStart(),
		DurationWeeks: weeks,
		Address:       "12 Green St",
	})
	require.NoError(t, err)
	return sub
}

func TestCreateSubscription_GeneratesFullSchedule(t *testing.T) {
	store := newFakeStore()
	svc, n := newScheduler(store)

	sub := createTestSubscription(t, svc, store, 4)

	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, time.Monday, sub.FirstDay)
	assert.Equal(t, time.Thursday, sub.SecondDay)
	assert.Equal(t, int64(300000), sub.PricePerWeek)
	assert.Equal(t, int64(1200000), sub.TotalPrice)
	assert.Equal(t, mondayStart().AddDate(0, 0, 27), sub.EndDate)

	weeks, err := svc.ListSchedule(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Len(t, weeks, 4)

	for _, w := range weeks {
		// Two slots per week, on the subscription's weekdays.
		assert.Equal(t, time.Monday, w.FirstDeliveryDate.Weekday())
		assert.Equal(t, time.Thursday, w.SecondDeliveryDate.Weekday())
		assert.Equal(t, w.WeekStartDate.AddDate(0, 0, 6), w.WeekEndDate)
		assert.Equal(t, 3, int(w.SecondDeliveryDate.Sub(w.FirstDeliveryDate).Hours()/24))
	}
	assert.Equal(t, 1, n.count(notifier.EventSubscriptionCreated))
}

func TestCreateSubscription_Validation(t *testing.T) {
	store := newFakeStore()
	svc, _ := newScheduler(store)
	box := seedBox(store, 150000)

	_, err := svc.CreateSubscription(context.Background(), &SubscriptionRequest{
		UserID: uuid.New(), BoxTypeID: box.ID, StartDate: mondayStart(), DurationWeeks: 0,
	})
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = svc.CreateSubscription(context.Background(), &SubscriptionRequest{
		UserID: uuid.New(), BoxTypeID: box.ID, StartDate: mondayStart(), DurationWeeks: 53,
	})
	assert.ErrorIs(t, err, ErrInvalidDuration)

	same := [2]time.Weekday{time.Monday, time.Monday}
	_, err = svc.CreateSubscription(context.Background(), &SubscriptionRequest{
		UserID: uuid.New(), BoxTypeID: box.ID, StartDate: mondayStart(), DurationWeeks: 4, DeliveryDays: &same,
	})
	assert.ErrorIs(t, err, ErrInvalidDeliveryDays)

	// Start date must fall on the first delivery weekday.
	_, err = svc.CreateSubscription(context.Background(), &SubscriptionRequest{
		UserID: uuid.New(), BoxTypeID: box.ID, StartDate: mondayStart().AddDate(0, 0, 1), DurationWeeks: 4,
	})
	assert.ErrorIs(t, err, ErrStartDateMismatch)
}

func TestCreateSubscription_CustomDeliveryDays(t *testing.T) {
	store := newFakeStore()
	svc, _ := newScheduler(store)
	box := seedBox(store, 150000)

	days := [2]time.Weekday{time.Tuesday, time.Saturday}
	sub, err := svc.CreateSubscription(context.Background(), &SubscriptionRequest{
		UserID:        uuid.New(),
		BoxTypeID:     box.ID,
		StartDate:     mondayStart().AddDate(0, 0, 1), // tuesday
		DurationWeeks: 2,
		DeliveryDays:  &days,
	})
	require.NoError(t, err)

	weeks, err := svc.ListSchedule(context.Background(), sub.ID)
	require.NoError(t, err)
	for _, w := range weeks {
		assert.Equal(t, time.Tuesday, w.FirstDeliveryDate.Weekday())
		assert.Equal(t, time.Saturday, w.SecondDeliveryDate.Weekday())
	}
}

func TestGenerateSchedule_Idempotent(t *testing.T) {
	store := newFakeStore()
	svc, _ := newScheduler(store)
	sub := createTestSubscription(t, svc, store, 4)

	created, err := svc.GenerateSchedule(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	weeks, err := svc.ListSchedule(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Len(t, weeks, 4)
}

func TestRenew_ContinuesPattern(t *testing.T) {
	store := newFakeStore()
	svc, _ := newScheduler(store)
	sub := createTestSubscription(t, svc, store, 2)

	renewed, err := svc.Renew(context.Background(), sub.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, renewed.DurationWeeks)

	weeks, err := svc.ListSchedule(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Len(t, weeks, 4)

	last, err := store.GetLastScheduleWeek(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, mondayStart().AddDate(0, 0, 21), last.WeekStartDate)
	assert.Equal(t, time.Monday, last.FirstDeliveryDate.Weekday())
}

func TestRenew_ReactivatesExpired(t *testing.T) {
	store := newFakeStore()
	svc, _ := newScheduler(store)
	sub := createTestSubscription(t, svc, store, 2)
	store.subs[sub.ID].Status = domain.SubscriptionStatusExpired

	renewed, err := svc.Renew(context.Background(), sub.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, renewed.Status)
}

func TestRenew_CancelledRefused(t *testing.T) {
	store := newFakeStore()
	svc, _ := newScheduler(store)
	sub := createTestSubscription(t, svc, store, 2)
	store.subs[sub.ID].Status = domain.SubscriptionStatusCancelled

	_, err := svc.Renew(context.Background(), sub.ID, 1)
	assert.ErrorIs(t, err, ErrSubscriptionClosed)
}

func TestMarkDelivered_OnceOnly(t *testing.T) {
	store := newFakeStore()
	svc, n := newScheduler(store)
	sub := createTestSubscription(t, svc, store, 1)

	weeks, err := svc.ListSchedule(context.Background(), sub.ID)
	require.NoError(t, err)
	week := weeks[0]

	require.NoError(t, svc.MarkDelivered(context.Background(), week.ID, 1, nil))

	err = svc.MarkDelivered(context.Background(), week.ID, 1, nil)
	assert.ErrorIs(t, err, repository.ErrAlreadyDelivered)

	got, err := store.GetScheduleByID(context.Background(), week.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.DeliveredCount())
	require.NotNil(t, got.FirstDeliveredAt)
	assert.Equal(t, fixedNow(), *got.FirstDeliveredAt)
	assert.Equal(t, 1, n.count(notifier.EventDeliveryCompleted))
}

func TestMarkDelivered_InvalidSlot(t *testing.T) {
	store := newFakeStore()
	svc, _ := newScheduler(store)

	err := svc.MarkDelivered(context.Background(), uuid.New(), 3, nil)
	assert.ErrorIs(t, err, repository.ErrInvalidSlot)
}

func TestPauseWeek_LeavesNeighborsDue(t *testing.T) {
	store := newFakeStore()
	svc, _ := newScheduler(store)
	sub := createTestSubscription(t, svc, store, 3)

	reason := "holiday"
	require.NoError(t, svc.PauseWeek(context.Background(), sub.ID, mondayStart().AddDate(0, 0, 7), &reason))

	due, err := svc.ListDue(context.Background(), mondayStart().AddDate(0, 0, 20))
	require.NoError(t, err)
	assert.Len(t, due, 2)
	for _, w := range due {
		assert.False(t, w.WeekStartDate.Equal(mondayStart().AddDate(0, 0, 7)))
	}
}

func TestResumeWeek_SubstitutesDates(t *testing.T) {
	store := newFakeStore()
	svc, _ := newScheduler(store)
	sub := createTestSubscription(t, svc, store, 1)

	require.NoError(t, svc.PauseWeek(context.Background(), sub.ID, mondayStart(), nil))
	weeks, _ := svc.ListSchedule(context.Background(), sub.ID)
	week := weeks[0]

	newFirst := mondayStart().AddDate(0, 0, 14)
	resumed, err := svc.ResumeWeek(context.Background(), week.ID, &newFirst, nil)
	require.NoError(t, err)

	assert.False(t, resumed.IsPaused)
	assert.Equal(t, newFirst, resumed.FirstDeliveryDate)
	// Second date untouched when no substitute is given.
	assert.Equal(t, week.SecondDeliveryDate, resumed.SecondDeliveryDate)
}

func TestSubscriptionTransitions(t *testing.T) {
	store := newFakeStore()
	svc, _ := newScheduler(store)
	sub := createTestSubscription(t, svc, store, 2)

	require.NoError(t, svc.PauseSubscription(context.Background(), sub.ID))
	got, _ := store.GetSubscriptionByID(context.Background(), sub.ID)
	assert.Equal(t, domain.SubscriptionStatusPaused, got.Status)

	require.NoError(t, svc.ResumeSubscription(context.Background(), sub.ID))
	require.NoError(t, svc.CancelSubscription(context.Background(), sub.ID))

	// Cancelled is terminal.
	err := svc.ResumeSubscription(context.Background(), sub.ID)
	assert.ErrorIs(t, err, IllegalTransitionError)
}

func TestSweep_ExpiresAndMarksAndResumes(t *testing.T) {
	store := newFakeStore()
	svc, n := newScheduler(store)
	sub := createTestSubscription(t, svc, store, 2)

	// A paused week whose window has already closed.
	weeks, _ := svc.ListSchedule(context.Background(), sub.ID)
	var firstWeek *domain.WeeklyDeliverySchedule
	for _, w := range weeks {
		if w.WeekStartDate.Equal(mondayStart()) {
			firstWeek = w
		}
	}
	require.NotNil(t, firstWeek)
	require.NoError(t, svc.PauseWeek(context.Background(), sub.ID, firstWeek.WeekStartDate, nil))

	asOf := mondayStart().AddDate(0, 0, 15)
	result, err := svc.Sweep(context.Background(), asOf)
	require.NoError(t, err)

	// Subscription ran out before asOf.
	assert.Equal(t, int64(1), result.ExpiredSubscriptions)
	got, _ := store.GetSubscriptionByID(context.Background(), sub.ID)
	assert.Equal(t, domain.SubscriptionStatusExpired, got.Status)

	// Second week's slots were both due and got marked, each with the same
	// completion event a direct delivery fires.
	assert.Equal(t, 2, result.MarkedDeliveries)
	assert.Equal(t, 2, n.count(notifier.EventDeliveryCompleted))

	// The paused first week came back with dates shifted past asOf.
	assert.Equal(t, 1, result.ResumedWeeks)
	resumed, _ := store.GetScheduleByID(context.Background(), firstWeek.ID)
	assert.False(t, resumed.IsPaused)
	assert.False(t, resumed.FirstDeliveryDate.Before(asOf))
	assert.Equal(t, time.Monday, resumed.FirstDeliveryDate.Weekday())
}

func TestSweep_ExpiresPausedSubscription(t *testing.T) {
	store := newFakeStore()
	svc, _ := newScheduler(store)
	sub := createTestSubscription(t, svc, store, 2)
	require.NoError(t, svc.PauseSubscription(context.Background(), sub.ID))

	asOf := mondayStart().AddDate(0, 0, 15)
	result, err := svc.Sweep(context.Background(), asOf)
	require.NoError(t, err)

	// Pausing does not shield a subscription whose window already ended.
	assert.Equal(t, int64(1), result.ExpiredSubscriptions)
	got, _ := store.GetSubscriptionByID(context.Background(), sub.ID)
	assert.Equal(t, domain.SubscriptionStatusExpired, got.Status)
}

func TestSweep_SecondRunIsNoop(t *testing.T) {
	store := newFakeStore()
	svc, _ := newScheduler(store)
	createTestSubscription(t, svc, store, 2)

	asOf := mondayStart().AddDate(0, 0, 15)
	first, err := svc.Sweep(context.Background(), asOf)
	require.NoError(t, err)
	require.Positive(t, first.MarkedDeliveries)

	second, err := svc.Sweep(context.Background(), asOf)
	require.NoError(t, err)
	assert.Zero(t, second.MarkedDeliveries)
	assert.Zero(t, second.ExpiredSubscriptions)
	assert.Zero(t, second.ResumedWeeks)
}

func TestShiftForward(t *testing.T) {
	date := mondayStart()
	asOf := mondayStart().AddDate(0, 0, 10)

	shifted := shiftForward(date, asOf)

	assert.Equal(t, mondayStart().AddDate(0, 0, 14), shifted)
	assert.Equal(t, date.Weekday(), shifted.Weekday())

	// Already current dates stay put.
	assert.Equal(t, asOf, shiftForward(asOf, asOf))
}
