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

type SubscriptionHandler struct {
	scheduler *service.SchedulerService
	timeout   time.Duration
}

func NewSubscriptionHandler(scheduler *service.SchedulerService) *SubscriptionHandler {
	return &SubscriptionHandler{scheduler: scheduler, timeout: 10 * time.Second}
}

type createSubscriptionRequest struct {
	BoxTypeID      uuid.UUID `json:"box_type_id"`
	StartDate      string    `json:"start_date"`
	DurationWeeks  int       `json:"duration_weeks"`
	PricePerWeek   int64     `json:"price_per_week,omitempty"`
	DeliveryDays   []string  `json:"delivery_days,omitempty"`
	PaymentMethod  string    `json:"payment_method"`
	Address        string    `json:"address"`
	RecipientName  string    `json:"recipient_name"`
	RecipientPhone string    `json:"recipient_phone"`
	Notes          string    `json:"notes,omitempty"`
}

var weekdayNames = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

// Create handles POST /api/v1/subscriptions
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(ctx)
	if userID == uuid.Nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid X-User-ID header")
		return
	}

	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_failed", "start_date must be YYYY-MM-DD")
		return
	}

	var days *[2]time.Weekday
	if len(req.DeliveryDays) > 0 {
		if len(req.DeliveryDays) != 2 {
			respondError(w, http.StatusBadRequest, "validation_failed", "delivery_days must list exactly two weekdays")
			return
		}
		var parsed [2]time.Weekday
		for i, name := range req.DeliveryDays {
			d, ok := weekdayNames[name]
			if !ok {
				respondError(w, http.StatusBadRequest, "validation_failed", "unknown weekday "+name)
				return
			}
			parsed[i] = d
		}
		days = &parsed
	}

	sub, err := h.scheduler.CreateSubscription(ctx, &service.SubscriptionRequest{
		UserID:         userID,
		BoxTypeID:      req.BoxTypeID,
		StartDate:      start,
		DurationWeeks:  req.DurationWeeks,
		PricePerWeek:   req.PricePerWeek,
		DeliveryDays:   days,
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
		Address:        req.Address,
		RecipientName:  req.RecipientName,
		RecipientPhone: req.RecipientPhone,
		Notes:          req.Notes,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toSubscriptionResponse(sub))
}

type renewRequest struct {
	AdditionalWeeks int `json:"additional_weeks"`
}

// Renew handles POST /api/v1/subscriptions/{subscriptionID}/renew
func (h *SubscriptionHandler) Renew(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	subID, err := uuid.Parse(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "subscription id must be a UUID")
		return
	}

	var req renewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	sub, err := h.scheduler.Renew(ctx, subID, req.AdditionalWeeks)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

type generateResponse struct {
	WeeksCreated int `json:"weeks_created"`
}

// GenerateSchedule handles POST /api/v1/subscriptions/{subscriptionID}/schedule.
// Safe to call repeatedly; existing weeks are left alone.
func (h *SubscriptionHandler) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	subID, err := uuid.Parse(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "subscription id must be a UUID")
		return
	}

	created, err := h.scheduler.GenerateSchedule(ctx, subID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, generateResponse{WeeksCreated: created})
}

// ListSchedule handles GET /api/v1/subscriptions/{subscriptionID}/schedule
func (h *SubscriptionHandler) ListSchedule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	subID, err := uuid.Parse(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "subscription id must be a UUID")
		return
	}

	weeks, err := h.scheduler.ListSchedule(ctx, subID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toScheduleResponses(weeks))
}

type pauseWeekRequest struct {
	WeekStartDate string  `json:"week_start_date"`
	Reason        *string `json:"reason,omitempty"`
}

// PauseWeek handles POST /api/v1/subscriptions/{subscriptionID}/pause-week
func (h *SubscriptionHandler) PauseWeek(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	subID, err := uuid.Parse(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "subscription id must be a UUID")
		return
	}

	var req pauseWeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	weekStart, err := time.Parse(dateLayout, req.WeekStartDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_failed", "week_start_date must be YYYY-MM-DD")
		return
	}

	if err := h.scheduler.PauseWeek(ctx, subID, weekStart, req.Reason); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Pause handles POST /api/v1/subscriptions/{subscriptionID}/pause
func (h *SubscriptionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.scheduler.PauseSubscription)
}

// Resume handles POST /api/v1/subscriptions/{subscriptionID}/resume
func (h *SubscriptionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.scheduler.ResumeSubscription)
}

// Cancel handles POST /api/v1/subscriptions/{subscriptionID}/cancel
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.scheduler.CancelSubscription)
}

func (h *SubscriptionHandler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	subID, err := uuid.Parse(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "subscription id must be a UUID")
		return
	}
	if err := fn(ctx, subID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resumeWeekRequest struct {
	FirstDeliveryDate  *string `json:"first_delivery_date,omitempty"`
	SecondDeliveryDate *string `json:"second_delivery_date,omitempty"`
}

// ResumeWeek handles POST /api/v1/schedules/{scheduleID}/resume
func (h *SubscriptionHandler) ResumeWeek(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	scheduleID, err := uuid.Parse(chi.URLParam(r, "scheduleID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "schedule id must be a UUID")
		return
	}

	var req resumeWeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	newFirst, err := parseOptionalDate(req.FirstDeliveryDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_failed", "first_delivery_date must be YYYY-MM-DD")
		return
	}
	newSecond, err := parseOptionalDate(req.SecondDeliveryDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_failed", "second_delivery_date must be YYYY-MM-DD")
		return
	}

	week, err := h.scheduler.ResumeWeek(ctx, scheduleID, newFirst, newSecond)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toScheduleResponse(week))
}

type markDeliveredRequest struct {
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// MarkDelivered handles POST /api/v1/schedules/{scheduleID}/deliveries/{slot}
func (h *SubscriptionHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	scheduleID, err := uuid.Parse(chi.URLParam(r, "scheduleID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "schedule id must be a UUID")
		return
	}
	slot := 0
	switch chi.URLParam(r, "slot") {
	case "1":
		slot = 1
	case "2":
		slot = 2
	default:
		respondError(w, http.StatusBadRequest, "validation_failed", "slot must be 1 or 2")
		return
	}

	var req markDeliveredRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
			return
		}
	}

	if err := h.scheduler.MarkDelivered(ctx, scheduleID, slot, req.DeliveredAt); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDue handles GET /api/v1/schedules/due?as_of=YYYY-MM-DD
func (h *SubscriptionHandler) ListDue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "validation_failed", "as_of must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	weeks, err := h.scheduler.ListDue(ctx, asOf)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toScheduleResponses(weeks))
}

type sweepResponse struct {
	ExpiredSubscriptions int64 `json:"expired_subscriptions"`
	ResumedWeeks         int   `json:"resumed_weeks"`
	MarkedDeliveries     int   `json:"marked_deliveries"`
}

// Sweep handles POST /api/v1/admin/sweep
func (h *SubscriptionHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	result, err := h.scheduler.Sweep(ctx, time.Now())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sweepResponse{
		ExpiredSubscriptions: result.ExpiredSubscriptions,
		ResumedWeeks:         result.ResumedWeeks,
		MarkedDeliveries:     result.MarkedDeliveries,
	})
}

func parseOptionalDate(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
