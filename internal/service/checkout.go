package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/greenbox-dev/greenbox/internal/domain"
	"github.com/greenbox-dev/greenbox/internal/repository"
)

// CheckoutStore is the slice of the repository the checkout flow needs.
type CheckoutStore interface {
	Run(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, q repository.DBTX) error) error
	GetBoxType(ctx context.Context, id uuid.UUID) (*domain.BoxType, error)
	GetDiscountByCode(ctx context.Context, code string) (*domain.Discount, error)
	ReserveDiscountForUser(ctx context.Context, userID, discountID uuid.UUID) error
	CreateOrder(ctx context.Context, order *domain.Order) error
}

type CheckoutLine struct {
	BoxTypeID uuid.UUID
	Quantity  int
}

type CheckoutRequest struct {
	UserID         uuid.UUID
	Lines          []CheckoutLine
	DiscountCode   *string
	DeliveryMethod domain.DeliveryMethod
	PaymentMethod  domain.PaymentMethod
	Address        string
	RecipientName  string
	RecipientPhone string
}

// WeeklyPackageRequest buys two linked deliveries of one box type at a
// combined price below two standalone purchases.
type WeeklyPackageRequest struct {
	UserID         uuid.UUID
	BoxTypeID      uuid.UUID
	PackagePrice   int64
	FirstDelivery  time.Time
	SecondDelivery time.Time
	DeliveryMethod domain.DeliveryMethod
	PaymentMethod  domain.PaymentMethod
	Address        string
	RecipientName  string
	RecipientPhone string
}

type WeeklyPackageResult struct {
	PackageID    uuid.UUID
	Orders       []*domain.Order
	PackagePrice int64
	Savings      int64
}

type CheckoutService struct {
	store CheckoutStore
	now   func() time.Time
}

func NewCheckoutService(store CheckoutStore) *CheckoutService {
	return &CheckoutService{store: store, now: time.Now}
}

// Checkout turns a cart into a priced, discount-validated order. Catalog
// prices are captured onto the lines at this moment. Discount reservation and
// order creation share one transaction scope, so a lost reservation race
// rolls the whole order back.
func (s *CheckoutService) Checkout(ctx context.Context, req *CheckoutRequest) (*domain.Order, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	// One order line per box type; repeated cart lines merge their quantities.
	lines := make([]domain.OrderLine, 0, len(req.Lines))
	lineIdx := make(map[uuid.UUID]int, len(req.Lines))
	for _, l := range req.Lines {
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if i, ok := lineIdx[l.BoxTypeID]; ok {
			lines[i].Quantity += l.Quantity
			continue
		}
		box, err := s.store.GetBoxType(ctx, l.BoxTypeID)
		if err != nil {
			return nil, err
		}
		lineIdx[l.BoxTypeID] = len(lines)
		lines = append(lines, domain.OrderLine{
			BoxTypeID: box.ID,
			BoxName:   box.Name,
			Quantity:  l.Quantity,
			UnitPrice: box.Price,
		})
	}

	order := &domain.Order{
		ID:             uuid.New(),
		UserID:         req.UserID,
		Lines:          lines,
		Status:         domain.OrderStatusPending,
		PaymentStatus:  domain.PaymentStatusPending,
		DeliveryMethod: req.DeliveryMethod,
		PaymentMethod:  req.PaymentMethod,
		Address:        req.Address,
		RecipientName:  req.RecipientName,
		RecipientPhone: req.RecipientPhone,
	}
	order.TotalPrice = order.Subtotal()
	order.FinalPrice = order.TotalPrice

	var discount *domain.Discount
	if req.DiscountCode != nil {
		d, err := s.validateDiscount(ctx, *req.DiscountCode)
		if err != nil {
			return nil, err
		}
		discount = d
		code := discount.Code
		order.DiscountCode = &code
		order.DiscountAmount = discount.ComputeDiscount(order.TotalPrice)
		order.FinalPrice = order.TotalPrice - order.DiscountAmount
	}

	err := s.store.Run(ctx, nil, func(txCtx context.Context, _ repository.DBTX) error {
		if discount != nil {
			if err := s.store.ReserveDiscountForUser(txCtx, req.UserID, discount.ID); err != nil {
				return err
			}
		}
		return s.store.CreateOrder(txCtx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CheckoutWeeklyPackage creates the two sibling orders of a weekly package.
// Both share a fresh package id; the combined discount is split across them.
func (s *CheckoutService) CheckoutWeeklyPackage(ctx context.Context, req *WeeklyPackageRequest) (*WeeklyPackageResult, error) {
	box, err := s.store.GetBoxType(ctx, req.BoxTypeID)
	if err != nil {
		return nil, err
	}

	standalone := 2 * box.Price
	if req.PackagePrice <= 0 || req.PackagePrice > standalone {
		return nil, ErrInvalidPackagePrice
	}
	savings := standalone - req.PackagePrice

	packageID := uuid.New()
	deliveries := []time.Time{req.FirstDelivery, req.SecondDelivery}
	orders := make([]*domain.Order, 0, 2)

	for i, deliveryDate := range deliveries {
		// Per-order share of the package price; the first order absorbs the
		// odd unit so the two final prices sum to the package price exactly.
		share := req.PackagePrice / 2
		if i == 0 {
			share += req.PackagePrice % 2
		}
		date := deliveryDate
		pkgID := packageID
		order := &domain.Order{
			ID:     uuid.New(),
			UserID: req.UserID,
			Lines: []domain.OrderLine{{
				BoxTypeID: box.ID,
				BoxName:   box.Name,
				Quantity:  1,
				UnitPrice: box.Price,
			}},
			Status:                domain.OrderStatusPending,
			PaymentStatus:         domain.PaymentStatusPending,
			TotalPrice:            box.Price,
			FinalPrice:            share,
			DiscountAmount:        box.Price - share,
			DeliveryMethod:        req.DeliveryMethod,
			PaymentMethod:         req.PaymentMethod,
			Address:               req.Address,
			RecipientName:         req.RecipientName,
			RecipientPhone:        req.RecipientPhone,
			IsWeeklyPackage:       true,
			WeeklyPackageID:       &pkgID,
			ScheduledDeliveryDate: &date,
		}
		orders = append(orders, order)
	}

	err = s.store.Run(ctx, nil, func(txCtx context.Context, _ repository.DBTX) error {
		for _, order := range orders {
			if err := s.store.CreateOrder(txCtx, order); err != nil {
				return fmt.Errorf("create package order: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &WeeklyPackageResult{
		PackageID:    packageID,
		Orders:       orders,
		PackagePrice: req.PackagePrice,
		Savings:      savings,
	}, nil
}

// validateDiscount checks existence, the active flag and the validity window.
// Per-user usage is not checked here; the usage insert arbitrates that under
// the checkout transaction.
func (s *CheckoutService) validateDiscount(ctx context.Context, code string) (*domain.Discount, error) {
	d, err := s.store.GetDiscountByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !d.IsActive {
		return nil, ErrDiscountInactive
	}
	now := s.now()
	if now.Before(d.StartDate) || now.After(d.EndDate) {
		return nil, ErrDiscountExpired
	}
	return d, nil
}
