package service

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/greenbox-dev/greenbox/internal/domain"
	"github.com/greenbox-dev/greenbox/internal/notifier"
	"github.com/greenbox-dev/greenbox/internal/repository"
)

type OrderStore interface {
	Run(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, q repository.DBTX) error) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
}

type OrderService struct {
	store    OrderStore
	notifier notifier.Notifier
}

func NewOrderService(store OrderStore, n notifier.Notifier) *OrderService {
	return &OrderService{store: store, notifier: n}
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.store.GetOrderByID(ctx, id)
}

func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	return s.store.ListOrdersByUserID(ctx, userID)
}

// TransitionStatus applies one step of the fulfilment state machine. The
// read-check-write runs in one transaction so concurrent transitions cannot
// both pass the legality check against a stale status.
func (s *OrderService) TransitionStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.Run(ctx, nil, func(txCtx context.Context, _ repository.DBTX) error {
		current, err := s.store.GetOrderByID(txCtx, id)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return ErrOrderTerminal
		}
		if !current.Status.CanTransitionTo(next) {
			return IllegalTransitionError
		}
		if err := s.store.UpdateOrderStatus(txCtx, id, next); err != nil {
			return err
		}
		current.Status = next
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if next == domain.OrderStatusCancelled {
		s.notifier.Notify(ctx, notifier.EventOrderCancelled, order.ID.String(), map[string]any{
			"order_id": order.ID,
			"user_id":  order.UserID,
		})
	}
	return order, nil
}

// Cancel is the explicit cancellation entry point; terminal orders report
// ErrOrderTerminal rather than cancelling twice.
func (s *OrderService) Cancel(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.TransitionStatus(ctx, id, domain.OrderStatusCancelled)
}
