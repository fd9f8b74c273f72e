package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greenbox-dev/greenbox/internal/domain"
	"github.com/greenbox-dev/greenbox/internal/gateway"
	"github.com/greenbox-dev/greenbox/internal/repository"
)

// fakeStore is an in-memory stand-in for the repository. Run snapshots state
// before the callback and restores it on error, mirroring rollback.
type fakeStore struct {
	boxTypes  map[uuid.UUID]*domain.BoxType
	discounts map[string]*domain.Discount
	usages    map[string]bool
	orders    map[uuid.UUID]*domain.Order
	subs      map[uuid.UUID]*domain.WeeklySubscription
	weeks     map[uuid.UUID]*domain.WeeklyDeliverySchedule

	runErr error // forced transaction failure
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		boxTypes:  make(map[uuid.UUID]*domain.BoxType),
		discounts: make(map[string]*domain.Discount),
		usages:    make(map[string]bool),
		orders:    make(map[uuid.UUID]*domain.Order),
		subs:      make(map[uuid.UUID]*domain.WeeklySubscription),
		weeks:     make(map[uuid.UUID]*domain.WeeklyDeliverySchedule),
	}
}

func usageKey(userID, discountID uuid.UUID) string {
	return userID.String() + "|" + discountID.String()
}

func weekKey(subID uuid.UUID, weekStart time.Time) string {
	return subID.String() + "|" + weekStart.Format("2006-01-02")
}

func (f *fakeStore) snapshot() (map[string]bool, map[uuid.UUID]*domain.Order, map[uuid.UUID]*domain.WeeklySubscription, map[uuid.UUID]*domain.WeeklyDeliverySchedule) {
	usages := make(map[string]bool, len(f.usages))
	for k, v := range f.usages {
		usages[k] = v
	}
	orders := make(map[uuid.UUID]*domain.Order, len(f.orders))
	for k, v := range f.orders {
		cp := *v
		orders[k] = &cp
	}
	subs := make(map[uuid.UUID]*domain.WeeklySubscription, len(f.subs))
	for k, v := range f.subs {
		cp := *v
		subs[k] = &cp
	}
	weeks := make(map[uuid.UUID]*domain.WeeklyDeliverySchedule, len(f.weeks))
	for k, v := range f.weeks {
		cp := *v
		weeks[k] = &cp
	}
	return usages, orders, subs, weeks
}

func (f *fakeStore) Run(ctx context.Context, _ *sql.TxOptions, fn func(ctx context.Context, q repository.DBTX) error) error {
	if f.runErr != nil {
		return f.runErr
	}
	usages, orders, subs, weeks := f.snapshot()
	if err := fn(ctx, nil); err != nil {
		f.usages, f.orders, f.subs, f.weeks = usages, orders, subs, weeks
		return err
	}
	return nil
}

func (f *fakeStore) GetBoxType(_ context.Context, id uuid.UUID) (*domain.BoxType, error) {
	box, ok := f.boxTypes[id]
	if !ok {
		return nil, repository.ErrBoxTypeNotFound
	}
	return box, nil
}

func (f *fakeStore) GetDiscountByCode(_ context.Context, code string) (*domain.Discount, error) {
	d, ok := f.discounts[domain.NormalizeCode(code)]
	if !ok {
		return nil, repository.ErrDiscountNotFound
	}
	return d, nil
}

func (f *fakeStore) ReserveDiscountForUser(_ context.Context, userID, discountID uuid.UUID) error {
	key := usageKey(userID, discountID)
	if f.usages[key] {
		return repository.ErrDiscountAlreadyUsed
	}
	f.usages[key] = true
	return nil
}

func (f *fakeStore) CreateOrder(_ context.Context, order *domain.Order) error {
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeStore) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) GetOrderByGatewayCode(_ context.Context, code int64) (*domain.Order, error) {
	for _, o := range f.orders {
		if o.GatewayOrderCode != nil && *o.GatewayOrderCode == code {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (f *fakeStore) ListOrdersByUserID(_ context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateOrderStatus(_ context.Context, id uuid.UUID, status domain.OrderStatus) error {
	o, ok := f.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (f *fakeStore) UpdatePaymentStatus(_ context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	o, ok := f.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.PaymentStatus = status
	return nil
}

func (f *fakeStore) SetPaymentLink(_ context.Context, id uuid.UUID, linkID, checkoutURL string, orderCode int64) error {
	o, ok := f.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.PaymentLinkID = &linkID
	o.CheckoutURL = &checkoutURL
	o.GatewayOrderCode = &orderCode
	return nil
}

func (f *fakeStore) CreateSubscription(_ context.Context, sub *domain.WeeklySubscription) error {
	cp := *sub
	f.subs[sub.ID] = &cp
	return nil
}

func (f *fakeStore) GetSubscriptionByID(_ context.Context, id uuid.UUID) (*domain.WeeklySubscription, error) {
	s, ok := f.subs[id]
	if !ok {
		return nil, repository.ErrSubscriptionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) UpdateSubscriptionStatus(_ context.Context, id uuid.UUID, status domain.SubscriptionStatus) error {
	s, ok := f.subs[id]
	if !ok {
		return repository.ErrSubscriptionNotFound
	}
	s.Status = status
	return nil
}

func (f *fakeStore) ExtendSubscription(_ context.Context, id uuid.UUID, newEndDate time.Time, additionalWeeks int) error {
	s, ok := f.subs[id]
	if !ok {
		return repository.ErrSubscriptionNotFound
	}
	s.EndDate = newEndDate
	s.DurationWeeks += additionalWeeks
	s.Status = domain.SubscriptionStatusActive
	return nil
}

func (f *fakeStore) ExpireSubscriptions(_ context.Context, asOf time.Time) (int64, error) {
	var n int64
	for _, s := range f.subs {
		eligible := s.Status == domain.SubscriptionStatusActive || s.Status == domain.SubscriptionStatusPaused
		if eligible && s.EndDate.Before(asOf) {
			s.Status = domain.SubscriptionStatusExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateScheduleWeek(_ context.Context, week *domain.WeeklyDeliverySchedule) error {
	for _, w := range f.weeks {
		if weekKey(w.SubscriptionID, w.WeekStartDate) == weekKey(week.SubscriptionID, week.WeekStartDate) {
			return repository.ErrDuplicateWeek
		}
	}
	cp := *week
	f.weeks[week.ID] = &cp
	return nil
}

func (f *fakeStore) GetScheduleByID(_ context.Context, id uuid.UUID) (*domain.WeeklyDeliverySchedule, error) {
	w, ok := f.weeks[id]
	if !ok {
		return nil, repository.ErrScheduleNotFound
	}
	cp := *w
	return &cp, nil
}

func (f *fakeStore) GetLastScheduleWeek(_ context.Context, subID uuid.UUID) (*domain.WeeklyDeliverySchedule, error) {
	var last *domain.WeeklyDeliverySchedule
	for _, w := range f.weeks {
		if w.SubscriptionID != subID {
			continue
		}
		if last == nil || w.WeekStartDate.After(last.WeekStartDate) {
			last = w
		}
	}
	if last == nil {
		return nil, repository.ErrScheduleNotFound
	}
	cp := *last
	return &cp, nil
}

func (f *fakeStore) ListSchedulesBySubscription(_ context.Context, subID uuid.UUID) ([]*domain.WeeklyDeliverySchedule, error) {
	var out []*domain.WeeklyDeliverySchedule
	for _, w := range f.weeks {
		if w.SubscriptionID == subID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) ListDueSchedules(_ context.Context, asOf time.Time) ([]*domain.WeeklyDeliverySchedule, error) {
	var out []*domain.WeeklyDeliverySchedule
	for _, w := range f.weeks {
		if w.IsPaused || w.DeliveredCount() == 2 {
			continue
		}
		if w.WeekStartDate.After(asOf) {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) ListPausedWeeksEndingBefore(_ context.Context, asOf time.Time) ([]*domain.WeeklyDeliverySchedule, error) {
	var out []*domain.WeeklyDeliverySchedule
	for _, w := range f.weeks {
		if w.IsPaused && w.WeekEndDate.Before(asOf) {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkSlotDelivered(_ context.Context, id uuid.UUID, slot int, deliveredAt time.Time) error {
	w, ok := f.weeks[id]
	if !ok {
		return repository.ErrScheduleNotFound
	}
	switch slot {
	case 1:
		if w.FirstDelivered {
			return repository.ErrAlreadyDelivered
		}
		w.FirstDelivered = true
		w.FirstDeliveredAt = &deliveredAt
	case 2:
		if w.SecondDelivered {
			return repository.ErrAlreadyDelivered
		}
		w.SecondDelivered = true
		w.SecondDeliveredAt = &deliveredAt
	default:
		return repository.ErrInvalidSlot
	}
	return nil
}

func (f *fakeStore) PauseWeek(_ context.Context, subID uuid.UUID, weekStart time.Time, reason *string) error {
	for _, w := range f.weeks {
		if w.SubscriptionID == subID && w.WeekStartDate.Equal(weekStart) {
			w.IsPaused = true
			w.PauseReason = reason
			return nil
		}
	}
	return repository.ErrScheduleNotFound
}

func (f *fakeStore) ResumeWeek(_ context.Context, id uuid.UUID, newFirst, newSecond *time.Time) error {
	w, ok := f.weeks[id]
	if !ok || !w.IsPaused {
		return repository.ErrScheduleNotFound
	}
	w.IsPaused = false
	w.PauseReason = nil
	if newFirst != nil {
		w.FirstDeliveryDate = *newFirst
	}
	if newSecond != nil {
		w.SecondDeliveryDate = *newSecond
	}
	return nil
}

// mockNotifier records every dispatched event.
type mockNotifier struct {
	mu     sync.Mutex
	events []string
}

func (m *mockNotifier) Notify(_ context.Context, eventType, aggregateID string, _ any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType+":"+aggregateID)
}

func (m *mockNotifier) count(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if len(e) >= len(eventType) && e[:len(eventType)] == eventType {
			n++
		}
	}
	return n
}

// mockGateway returns a canned payment link.
type mockGateway struct {
	err      error
	lastReq  *gateway.LinkRequest
	linkResp *gateway.LinkResponse
}

func (m *mockGateway) CreateLink(_ context.Context, req *gateway.LinkRequest) (*gateway.LinkResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	if m.linkResp != nil {
		return m.linkResp, nil
	}
	return &gateway.LinkResponse{
		PaymentLinkID: fmt.Sprintf("link-%d", req.OrderCode),
		CheckoutURL:   fmt.Sprintf("https://pay.example.com/%d", req.OrderCode),
		OrderCode:     req.OrderCode,
		Status:        gateway.StatusPending,
	}, nil
}

// mockTracker records tracker traffic.
type mockTracker struct {
	pending  map[uuid.UUID]bool
	failures map[uuid.UUID]int64
}

func newMockTracker() *mockTracker {
	return &mockTracker{
		pending:  make(map[uuid.UUID]bool),
		failures: make(map[uuid.UUID]int64),
	}
}

func (m *mockTracker) TrackPending(_ context.Context, orderID uuid.UUID) error {
	m.pending[orderID] = true
	return nil
}

func (m *mockTracker) ClearPending(_ context.Context, orderID uuid.UUID) error {
	delete(m.pending, orderID)
	return nil
}

func (m *mockTracker) RecordFailure(_ context.Context, userID uuid.UUID) (int64, error) {
	m.failures[userID]++
	return m.failures[userID], nil
}
