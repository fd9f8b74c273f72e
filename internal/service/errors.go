package service

import "errors"

var (
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrInvalidQuantity     = errors.New("line quantity must be positive")
	ErrDiscountInactive    = errors.New("discount code is not active")
	ErrDiscountExpired     = errors.New("discount code is outside its validity window")
	IllegalTransitionError = errors.New("illegal transition of order status")
	ErrOrderTerminal       = errors.New("order is already in a terminal status")
	ErrOrderNotPayable     = errors.New("order is not awaiting payment")
	ErrBadSignature        = errors.New("webhook signature mismatch")
	ErrInvalidDuration     = errors.New("subscription duration must be between 1 and 52 weeks")
	ErrInvalidDeliveryDays = errors.New("delivery days must be two distinct weekdays")
	ErrStartDateMismatch   = errors.New("start date must fall on the first delivery weekday")
	ErrInvalidPackagePrice = errors.New("weekly package price must be positive and below two standalone boxes")
	ErrSubscriptionClosed  = errors.New("subscription is cancelled")
)
