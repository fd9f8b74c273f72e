package domain

import (
	"time"

	"github.com/google/uuid"
)

type DeliveryMethod string

const (
	DeliveryMethodStandard DeliveryMethod = "STANDARD"
	DeliveryMethodExpress  DeliveryMethod = "EXPRESS"
	DeliveryMethodPickup   DeliveryMethod = "PICKUP"
)

type PaymentMethod string

const (
	PaymentMethodGateway PaymentMethod = "GATEWAY"
	PaymentMethodCOD     PaymentMethod = "COD"
)

// OrderLine captures a priced line at order time. UnitPrice is copied from the
// catalog when the order is created; later catalog changes never touch it.
type OrderLine struct {
	BoxTypeID uuid.UUID `json:"box_type_id"`
	BoxName   string    `json:"box_name"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
}

func (l OrderLine) Subtotal() int64 {
	return int64(l.Quantity) * l.UnitPrice
}

type Order struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Lines          []OrderLine
	Status         OrderStatus
	PaymentStatus  PaymentStatus
	TotalPrice     int64
	FinalPrice     int64
	DiscountCode   *string
	DiscountAmount int64
	DeliveryMethod DeliveryMethod
	PaymentMethod  PaymentMethod
	Address        string
	RecipientName  string
	RecipientPhone string

	// Weekly-package linkage. A package order always carries the shared
	// WeeklyPackageID of its sibling orders.
	IsWeeklyPackage       bool
	WeeklyPackageID       *uuid.UUID
	ScheduledDeliveryDate *time.Time

	// Payment-gateway link data, set after link creation.
	PaymentLinkID    *string
	CheckoutURL      *string
	GatewayOrderCode *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subtotal sums line subtotals before any discount.
func (o *Order) Subtotal() int64 {
	var total int64
	for _, l := range o.Lines {
		total += l.Subtotal()
	}
	return total
}
