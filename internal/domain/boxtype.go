package domain

import (
	"time"

	"github.com/google/uuid"
)

// BoxType is a purchasable product category. The core only reads it for price
// capture at checkout; catalog management lives outside this service.
type BoxType struct {
	ID        uuid.UUID
	Name      string
	Price     int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
