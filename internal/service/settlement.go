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
	"github.com/greenbox-dev/greenbox/internal/gateway"
	"github.com/greenbox-dev/greenbox/internal/notifier"
	"github.com/greenbox-dev/greenbox/internal/repository"
)

type SettlementStore interface {
	Run(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, q repository.DBTX) error) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByGatewayCode(ctx context.Context, code int64) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
	SetPaymentLink(ctx context.Context, id uuid.UUID, linkID, checkoutURL string, orderCode int64) error
}

type GatewayClient interface {
	CreateLink(ctx context.Context, req *gateway.LinkRequest) (*gateway.LinkResponse, error)
}

// PendingTracker is the ephemeral bookkeeping around outstanding payments.
// All of it is best-effort alerting state, never a correctness dependency.
type PendingTracker interface {
	TrackPending(ctx context.Context, orderID uuid.UUID) error
	ClearPending(ctx context.Context, orderID uuid.UUID) error
	RecordFailure(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ReconcileOutcome tags what a webhook delivery did.
type ReconcileOutcome string

const (
	OutcomeApplied   ReconcileOutcome = "APPLIED"
	OutcomeDuplicate ReconcileOutcome = "DUPLICATE" // replay of a settled outcome, no-op
	OutcomeIgnored   ReconcileOutcome = "IGNORED"   // no matching order
	OutcomeRejected  ReconcileOutcome = "REJECTED"  // bad signature or illegal transition
)

type SettlementService struct {
	store       SettlementStore
	gateway     GatewayClient
	notifier    notifier.Notifier
	tracker     PendingTracker
	checksumKey string
	returnURL   string
	cancelURL   string
	now         func() time.Time
}

func NewSettlementService(store SettlementStore, gw GatewayClient, n notifier.Notifier, t PendingTracker, checksumKey, returnURL, cancelURL string) *SettlementService {
	return &SettlementService{
		store:       store,
		gateway:     gw,
		notifier:    n,
		tracker:     t,
		checksumKey: checksumKey,
		returnURL:   returnURL,
		cancelURL:   cancelURL,
		now:         time.Now,
	}
}

// CreatePaymentLink builds the gateway request from the order and persists
// the returned link. The external call runs outside any transaction; only the
// short write of the result is transactional. Link creation never marks the
// order paid.
func (s *SettlementService) CreatePaymentLink(ctx context.Context, orderID uuid.UUID) (*gateway.LinkResponse, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != domain.PaymentStatusPending {
		return nil, ErrOrderNotPayable
	}

	items := make([]gateway.LinkItem, 0, len(order.Lines))
	for _, l := range order.Lines {
		items = append(items, gateway.LinkItem{
			Name:     l.BoxName,
			Quantity: l.Quantity,
			Price:    l.UnitPrice,
		})
	}

	link, err := s.gateway.CreateLink(ctx, &gateway.LinkRequest{
		OrderCode:   newOrderCode(s.now()),
		Amount:      order.FinalPrice,
		Description: fmt.Sprintf("GreenBox order %s", shortID(order.ID)),
		Items:       items,
		ReturnURL:   s.returnURL,
		CancelURL:   s.cancelURL,
	})
	if err != nil {
		return nil, err
	}

	err = s.store.Run(ctx, nil, func(txCtx context.Context, _ repository.DBTX) error {
		return s.store.SetPaymentLink(txCtx, order.ID, link.PaymentLinkID, link.CheckoutURL, link.OrderCode)
	})
	if err != nil {
		return nil, err
	}

	if err := s.tracker.TrackPending(ctx, order.ID); err != nil {
		log.Printf("failed to track pending order %s: %v", order.ID, err)
	}
	return link, nil
}

// Reconcile applies one gateway notification to order state. Safe under
// at-least-once, out-of-order delivery: replays of a settled outcome are
// no-ops, and any transition out of a terminal state is rejected and logged.
func (s *SettlementService) Reconcile(ctx context.Context, payload *gateway.WebhookPayload) (ReconcileOutcome, error) {
	if !gateway.VerifyWebhook(payload, s.checksumKey) {
		log.Printf("webhook signature mismatch for order code %d", payload.OrderCode)
		return OutcomeRejected, ErrBadSignature
	}

	order, err := s.store.GetOrderByGatewayCode(ctx, payload.OrderCode)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			log.Printf("webhook for unknown order code %d, ignoring", payload.OrderCode)
			return OutcomeIgnored, nil
		}
		return OutcomeRejected, err
	}

	next, action := decideSettlement(order.PaymentStatus, payload.Status)
	switch action {
	case actionNoop:
		log.Printf("duplicate webhook for order %s (status %s), no-op", order.ID, order.PaymentStatus)
		return OutcomeDuplicate, nil
	case actionReject:
		log.Printf("rejected webhook transition %s -> %s for order %s",
			order.PaymentStatus, payload.Status, order.ID)
		return OutcomeRejected, nil
	}

	err = s.store.Run(ctx, nil, func(txCtx context.Context, _ repository.DBTX) error {
		if err := s.store.UpdatePaymentStatus(txCtx, order.ID, next); err != nil {
			return err
		}
		// A settled payment moves fulfilment out of PENDING as well.
		if next == domain.PaymentStatusPaid && order.Status.CanTransitionTo(domain.OrderStatusProcessing) {
			return s.store.UpdateOrderStatus(txCtx, order.ID, domain.OrderStatusProcessing)
		}
		return nil
	})
	if err != nil {
		return OutcomeRejected, err
	}

	s.afterSettlement(ctx, order, next)
	return OutcomeApplied, nil
}

// afterSettlement is the post-commit work: notification dispatch and tracker
// upkeep. None of it holds a transaction and none of it can fail settlement.
func (s *SettlementService) afterSettlement(ctx context.Context, order *domain.Order, settled domain.PaymentStatus) {
	switch settled {
	case domain.PaymentStatusPaid:
		s.notifier.Notify(ctx, notifier.EventOrderPaid, order.ID.String(), map[string]any{
			"order_id":    order.ID,
			"user_id":     order.UserID,
			"final_price": order.FinalPrice,
		})
		if err := s.tracker.ClearPending(ctx, order.ID); err != nil {
			log.Printf("failed to clear pending order %s: %v", order.ID, err)
		}
	case domain.PaymentStatusCancelled, domain.PaymentStatusExpired:
		count, err := s.tracker.RecordFailure(ctx, order.UserID)
		if err != nil {
			log.Printf("failed to record payment failure for user %s: %v", order.UserID, err)
			return
		}
		log.Printf("payment %s for order %s, user %s failure count %d",
			settled, order.ID, order.UserID, count)
	}
}

type settlementAction int

const (
	actionApply settlementAction = iota
	actionNoop
	actionReject
)

// decideSettlement is the pure reconciliation decision over (stored payment
// status, gateway status). Kept free of I/O so replay and regression
// behavior are testable in isolation.
func decideSettlement(current domain.PaymentStatus, gatewayStatus string) (domain.PaymentStatus, settlementAction) {
	var target domain.PaymentStatus
	switch gatewayStatus {
	case gateway.StatusPaid:
		target = domain.PaymentStatusPaid
	case gateway.StatusCancelled:
		target = domain.PaymentStatusCancelled
	case gateway.StatusExpired:
		target = domain.PaymentStatusExpired
	case gateway.StatusRefunded:
		target = domain.PaymentStatusRefunded
	default:
		return current, actionReject
	}

	if current == target {
		return current, actionNoop
	}
	if current.CanTransitionTo(target) {
		return target, actionApply
	}
	return current, actionReject
}

// newOrderCode derives the integer order code the gateway keys webhooks by.
// Microsecond resolution keeps codes unique in practice; the column's unique
// constraint catches the pathological collision.
func newOrderCode(now time.Time) int64 {
	return now.UnixMicro()
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
