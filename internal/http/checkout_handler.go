package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/greenbox-dev/greenbox/internal/domain"
	"github.com/greenbox-dev/greenbox/internal/service"
)

type CheckoutHandler struct {
	checkout *service.CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(checkout *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, timeout: 10 * time.Second}
}

type checkoutLineRequest struct {
	BoxTypeID uuid.UUID `json:"box_type_id"`
	Quantity  int       `json:"quantity"`
}

type checkoutRequest struct {
	Lines          []checkoutLineRequest `json:"lines"`
	DiscountCode   *string               `json:"discount_code,omitempty"`
	DeliveryMethod string                `json:"delivery_method"`
	PaymentMethod  string                `json:"payment_method"`
	Address        string                `json:"address"`
	RecipientName  string                `json:"recipient_name"`
	RecipientPhone string                `json:"recipient_phone"`
}

type weeklyPackageRequest struct {
	BoxTypeID      uuid.UUID `json:"box_type_id"`
	PackagePrice   int64     `json:"package_price"`
	FirstDelivery  string    `json:"first_delivery_date"`
	SecondDelivery string    `json:"second_delivery_date"`
	DeliveryMethod string    `json:"delivery_method"`
	PaymentMethod  string    `json:"payment_method"`
	Address        string    `json:"address"`
	RecipientName  string    `json:"recipient_name"`
	RecipientPhone string    `json:"recipient_phone"`
}

type weeklyPackageResponse struct {
	PackageID    uuid.UUID        `json:"package_id"`
	Orders       []*OrderResponse `json:"orders"`
	PackagePrice int64            `json:"package_price"`
	Savings      int64            `json:"savings"`
}

// Checkout handles POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(ctx)
	if userID == uuid.Nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid X-User-ID header")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Address == "" {
		respondError(w, http.StatusBadRequest, "validation_failed", "address is required")
		return
	}

	lines := make([]service.CheckoutLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, service.CheckoutLine{BoxTypeID: l.BoxTypeID, Quantity: l.Quantity})
	}

	order, err := h.checkout.Checkout(ctx, &service.CheckoutRequest{
		UserID:         userID,
		Lines:          lines,
		DiscountCode:   req.DiscountCode,
		DeliveryMethod: domain.DeliveryMethod(req.DeliveryMethod),
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
		Address:        req.Address,
		RecipientName:  req.RecipientName,
		RecipientPhone: req.RecipientPhone,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toOrderResponse(order))
}

// CheckoutWeeklyPackage handles POST /api/v1/checkout/weekly-package
func (h *CheckoutHandler) CheckoutWeeklyPackage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(ctx)
	if userID == uuid.Nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid X-User-ID header")
		return
	}

	var req weeklyPackageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	first, err := time.Parse(dateLayout, req.FirstDelivery)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_failed", "first_delivery_date must be YYYY-MM-DD")
		return
	}
	second, err := time.Parse(dateLayout, req.SecondDelivery)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_failed", "second_delivery_date must be YYYY-MM-DD")
		return
	}
	if !second.After(first) {
		respondError(w, http.StatusBadRequest, "validation_failed", "second delivery must come after the first")
		return
	}

	result, err := h.checkout.CheckoutWeeklyPackage(ctx, &service.WeeklyPackageRequest{
		UserID:         userID,
		BoxTypeID:      req.BoxTypeID,
		PackagePrice:   req.PackagePrice,
		FirstDelivery:  first,
		SecondDelivery: second,
		DeliveryMethod: domain.DeliveryMethod(req.DeliveryMethod),
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
		Address:        req.Address,
		RecipientName:  req.RecipientName,
		RecipientPhone: req.RecipientPhone,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	orders := make([]*OrderResponse, 0, len(result.Orders))
	for _, o := range result.Orders {
		orders = append(orders, toOrderResponse(o))
	}
	respondJSON(w, http.StatusCreated, weeklyPackageResponse{
		PackageID:    result.PackageID,
		Orders:       orders,
		PackagePrice: result.PackagePrice,
		Savings:      result.Savings,
	})
}
