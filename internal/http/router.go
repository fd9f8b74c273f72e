package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires every handler into the API surface. Webhook and health stay
// outside the auth middleware; the gateway does not send user headers.
func NewRouter(
	checkout *CheckoutHandler,
	orders *OrderHandler,
	webhook *WebhookHandler,
	subscriptions *SubscriptionHandler,
	requestTimeout time.Duration,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/payment/webhook", webhook.HandleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(MockAuthMiddleware)

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", checkout.Checkout)
				r.Post("/weekly-package", checkout.CheckoutWeeklyPackage)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", orders.ListOrders)
				r.Get("/{orderID}", orders.GetOrder)
				r.Post("/{orderID}/cancel", orders.CancelOrder)
				r.Patch("/{orderID}/status", orders.UpdateStatus)
				r.Post("/{orderID}/payment-link", orders.CreatePaymentLink)
			})

			r.Route("/subscriptions", func(r chi.Router) {
				r.Post("/", subscriptions.Create)
				r.Post("/{subscriptionID}/renew", subscriptions.Renew)
				r.Post("/{subscriptionID}/schedule", subscriptions.GenerateSchedule)
				r.Get("/{subscriptionID}/schedule", subscriptions.ListSchedule)
				r.Post("/{subscriptionID}/pause-week", subscriptions.PauseWeek)
				r.Post("/{subscriptionID}/pause", subscriptions.Pause)
				r.Post("/{subscriptionID}/resume", subscriptions.Resume)
				r.Post("/{subscriptionID}/cancel", subscriptions.Cancel)
			})

			r.Route("/schedules", func(r chi.Router) {
				r.Get("/due", subscriptions.ListDue)
				r.Post("/{scheduleID}/resume", subscriptions.ResumeWeek)
				r.Post("/{scheduleID}/deliveries/{slot}", subscriptions.MarkDelivered)
			})

			r.Post("/admin/sweep", subscriptions.Sweep)
		})
	})

	return r
}
