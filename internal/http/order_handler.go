package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/greenbox-dev/greenbox/internal/domain"
	"github.com/greenbox-dev/greenbox/internal/service"
)

type OrderHandler struct {
	orders     *service.OrderService
	settlement *service.SettlementService
	timeout    time.Duration
}

func NewOrderHandler(orders *service.OrderService, settlement *service.SettlementService) *OrderHandler {
	return &OrderHandler{orders: orders, settlement: settlement, timeout: 10 * time.Second}
}

// GetOrder handles GET /api/v1/orders/{orderID}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "order id must be a UUID")
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

// ListOrders handles GET /api/v1/orders for the calling user.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(ctx)
	if userID == uuid.Nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid X-User-ID header")
		return
	}

	orders, err := h.orders.ListOrders(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	out := make([]*OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	respondJSON(w, http.StatusOK, out)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /api/v1/orders/{orderID}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "order id must be a UUID")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	next := domain.OrderStatus(req.Status)
	switch next {
	case domain.OrderStatusProcessing, domain.OrderStatusCompleted, domain.OrderStatusCancelled:
	default:
		respondError(w, http.StatusBadRequest, "validation_failed", "unknown order status")
		return
	}

	order, err := h.orders.TransitionStatus(ctx, orderID, next)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

// CancelOrder handles POST /api/v1/orders/{orderID}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "order id must be a UUID")
		return
	}

	order, err := h.orders.Cancel(ctx, orderID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

type paymentLinkResponse struct {
	PaymentLinkID string `json:"payment_link_id"`
	CheckoutURL   string `json:"checkout_url"`
	OrderCode     int64  `json:"order_code"`
	Status        string `json:"status"`
}

// CreatePaymentLink handles POST /api/v1/orders/{orderID}/payment-link.
// The gateway round trip dominates latency here, hence the longer timeout.
func (h *OrderHandler) CreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "order id must be a UUID")
		return
	}

	link, err := h.settlement.CreatePaymentLink(ctx, orderID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, paymentLinkResponse{
		PaymentLinkID: link.PaymentLinkID,
		CheckoutURL:   link.CheckoutURL,
		OrderCode:     link.OrderCode,
		Status:        link.Status,
	})
}
