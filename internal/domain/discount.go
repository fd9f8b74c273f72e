package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Discount struct {
	ID           uuid.UUID
	Code         string
	Value        decimal.Decimal
	IsPercentage bool
	StartDate    time.Time
	EndDate      time.Time
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeCode is the canonical form codes are stored and looked up in.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ComputeDiscount returns the amount to subtract from subtotal. Both branches
// cap the amount at the subtotal so the final price never goes negative.
func (d *Discount) ComputeDiscount(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	var amount int64
	if d.IsPercentage {
		amount = decimal.NewFromInt(subtotal).Mul(d.Value).Div(decimal.NewFromInt(100)).IntPart()
	} else {
		amount = d.Value.IntPart()
	}
	if amount > subtotal {
		return subtotal
	}
	return amount
}

// UserDiscountUsage is the join fact that arbitrates at-most-once redemption.
// Rows are inserted exactly once per successful redemption and never deleted.
type UserDiscountUsage struct {
	UserID     uuid.UUID
	DiscountID uuid.UUID
	UsedAt     time.Time
}
