package domain

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo encodes the legal forward paths:
// PENDING -> PROCESSING -> COMPLETED, and PENDING/PROCESSING -> CANCELLED.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusProcessing || next == OrderStatusCancelled
	case OrderStatusProcessing:
		return next == OrderStatusCompleted || next == OrderStatusCancelled
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusExpired   PaymentStatus = "EXPIRED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

func (s PaymentStatus) String() string {
	return string(s)
}

// IsTerminal reports whether a payment outcome has been settled.
// Every state except PENDING is terminal; transitions are monotonic.
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusPending
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusPaid || next == PaymentStatusCancelled || next == PaymentStatusExpired
	case PaymentStatusPaid:
		// The one forward step out of a settled state: a refund.
		return next == PaymentStatusRefunded
	default:
		return false
	}
}
