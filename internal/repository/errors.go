package repository

import "errors"

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDiscountNotFound     = errors.New("discount not found")
	ErrDiscountAlreadyUsed  = errors.New("discount already used by this user")
	ErrBoxTypeNotFound      = errors.New("box type not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrScheduleNotFound     = errors.New("delivery schedule not found")
	ErrDuplicateWeek        = errors.New("delivery week already exists for subscription")
	ErrAlreadyDelivered     = errors.New("delivery slot already marked delivered")
	ErrInvalidSlot          = errors.New("delivery slot must be 1 or 2")
)
