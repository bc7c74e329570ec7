package handler

import "net/http"

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Auth required - payment API
	mux.HandleFunc("POST /api/checkout/credits", h.requireAuthAPI(h.rateLimited(h.CreateCreditsCheckout)))
	mux.HandleFunc("POST /api/checkout/links", h.requireAuthAPI(h.rateLimited(h.CreateLinksCheckout)))
	mux.HandleFunc("POST /api/verify/credits", h.requireAuthAPI(h.rateLimited(h.VerifyCreditsPayment)))
	mux.HandleFunc("POST /api/verify/links", h.requireAuthAPI(h.rateLimited(h.VerifyLinksPayment)))
	mux.HandleFunc("POST /api/credits/unlock", h.requireAuthAPI(h.UnlockWithCredit))
	mux.HandleFunc("GET /api/credits/balance", h.requireAuthAPI(h.GetBalance))

	// Public catalog
	mux.HandleFunc("GET /api/packages", h.ListPackages)

	// Public webhooks (signature verified, no auth)
	mux.HandleFunc("POST /api/webhooks/stripe", h.StripeWebhook)
	mux.HandleFunc("POST /api/webhooks/lemonsqueezy", h.LemonSqueezyWebhook)
	mux.HandleFunc("POST /api/webhooks/polar", h.PolarWebhook)

	// Operational endpoints
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.Handle("GET /metrics", h.metrics.Handler())
}
