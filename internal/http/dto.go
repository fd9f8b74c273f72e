package http

import (
	"time"

	"github.com/google/uuid"

	"github.com/greenbox-dev/greenbox/internal/domain"
)

type OrderResponse struct {
	ID                    uuid.UUID          `json:"id"`
	UserID                uuid.UUID          `json:"user_id"`
	Lines                 []domain.OrderLine `json:"lines"`
	Status                string             `json:"status"`
	PaymentStatus         string             `json:"payment_status"`
	TotalPrice            int64              `json:"total_price"`
	DiscountAmount        int64              `json:"discount_amount"`
	FinalPrice            int64              `json:"final_price"`
	DiscountCode          *string            `json:"discount_code,omitempty"`
	DeliveryMethod        string             `json:"delivery_method"`
	PaymentMethod         string             `json:"payment_method"`
	Address               string             `json:"address"`
	RecipientName         string             `json:"recipient_name"`
	RecipientPhone        string             `json:"recipient_phone"`
	IsWeeklyPackage       bool               `json:"is_weekly_package"`
	WeeklyPackageID       *uuid.UUID         `json:"weekly_package_id,omitempty"`
	ScheduledDeliveryDate *time.Time         `json:"scheduled_delivery_date,omitempty"`
	CheckoutURL           *string            `json:"checkout_url,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
}

func toOrderResponse(o *domain.Order) *OrderResponse {
	return &OrderResponse{
		ID:                    o.ID,
		UserID:                o.UserID,
		Lines:                 o.Lines,
		Status:                o.Status.String(),
		PaymentStatus:         o.PaymentStatus.String(),
		TotalPrice:            o.TotalPrice,
		DiscountAmount:        o.DiscountAmount,
		FinalPrice:            o.FinalPrice,
		DiscountCode:          o.DiscountCode,
		DeliveryMethod:        string(o.DeliveryMethod),
		PaymentMethod:         string(o.PaymentMethod),
		Address:               o.Address,
		RecipientName:         o.RecipientName,
		RecipientPhone:        o.RecipientPhone,
		IsWeeklyPackage:       o.IsWeeklyPackage,
		WeeklyPackageID:       o.WeeklyPackageID,
		ScheduledDeliveryDate: o.ScheduledDeliveryDate,
		CheckoutURL:           o.CheckoutURL,
		CreatedAt:             o.CreatedAt,
	}
}

type SubscriptionResponse struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	BoxTypeID      uuid.UUID `json:"box_type_id"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	DurationWeeks  int       `json:"duration_weeks"`
	PricePerWeek   int64     `json:"price_per_week"`
	TotalPrice     int64     `json:"total_price"`
	FirstDay       string    `json:"first_delivery_day"`
	SecondDay      string    `json:"second_delivery_day"`
	Status         string    `json:"status"`
	Address        string    `json:"address"`
	RecipientName  string    `json:"recipient_name"`
	RecipientPhone string    `json:"recipient_phone"`
}

func toSubscriptionResponse(s *domain.WeeklySubscription) *SubscriptionResponse {
	return &SubscriptionResponse{
		ID:             s.ID,
		UserID:         s.UserID,
		BoxTypeID:      s.BoxTypeID,
		StartDate:      s.StartDate.Format(dateLayout),
		EndDate:        s.EndDate.Format(dateLayout),
		DurationWeeks:  s.DurationWeeks,
		PricePerWeek:   s.PricePerWeek,
		TotalPrice:     s.TotalPrice,
		FirstDay:       s.FirstDay.String(),
		SecondDay:      s.SecondDay.String(),
		Status:         s.Status.String(),
		Address:        s.Address,
		RecipientName:  s.RecipientName,
		RecipientPhone: s.RecipientPhone,
	}
}

type ScheduleResponse struct {
	ID                 uuid.UUID  `json:"id"`
	SubscriptionID     uuid.UUID  `json:"subscription_id"`
	WeekStartDate      string     `json:"week_start_date"`
	WeekEndDate        string     `json:"week_end_date"`
	FirstDeliveryDate  string     `json:"first_delivery_date"`
	FirstDelivered     bool       `json:"first_delivered"`
	FirstDeliveredAt   *time.Time `json:"first_delivered_at,omitempty"`
	SecondDeliveryDate string     `json:"second_delivery_date"`
	SecondDelivered    bool       `json:"second_delivered"`
	SecondDeliveredAt  *time.Time `json:"second_delivered_at,omitempty"`
	IsPaused           bool       `json:"is_paused"`
	PauseReason        *string    `json:"pause_reason,omitempty"`
	DeliveredCount     int        `json:"delivered_count"`
}

func toScheduleResponse(w *domain.WeeklyDeliverySchedule) *ScheduleResponse {
	return &ScheduleResponse{
		ID:                 w.ID,
		SubscriptionID:     w.SubscriptionID,
		WeekStartDate:      w.WeekStartDate.Format(dateLayout),
		WeekEndDate:        w.WeekEndDate.Format(dateLayout),
		FirstDeliveryDate:  w.FirstDeliveryDate.Format(dateLayout),
		FirstDelivered:     w.FirstDelivered,
		FirstDeliveredAt:   w.FirstDeliveredAt,
		SecondDeliveryDate: w.SecondDeliveryDate.Format(dateLayout),
		SecondDelivered:    w.SecondDelivered,
		SecondDeliveredAt:  w.SecondDeliveredAt,
		IsPaused:           w.IsPaused,
		PauseReason:        w.PauseReason,
		DeliveredCount:     w.DeliveredCount(),
	}
}

func toScheduleResponses(weeks []*domain.WeeklyDeliverySchedule) []*ScheduleResponse {
	out := make([]*ScheduleResponse, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, toScheduleResponse(w))
	}
	return out
}

const dateLayout = "2006-01-02"
