package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/buythelook/payments-api/internal/appctx"
	"github.com/buythelook/payments-api/internal/services"
)

// StripeWebhook handles webhooks from Stripe
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("Failed to read webhook body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	event, err := h.services.VerifyStripeSignature(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Error("Invalid stripe webhook signature", "error", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	log.Info("Received Stripe webhook", "event", event.Type, "event_id", event.ID)

	if err := h.services.HandleStripeEvent(r.Context(), event); err != nil {
		log.Error("Failed to handle webhook event", "error", err)
		http.Error(w, "Failed to process webhook", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// PolarWebhook handles webhooks from Polar
func (h *Handler) PolarWebhook(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("Failed to read webhook body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !h.services.VerifyPolarSignature(body, r.Header.Get("X-Polar-Signature")) {
		log.Error("Invalid polar webhook signature")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var payload services.PolarWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("Failed to parse webhook payload", "error", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	log.Info("Received Polar webhook",
		"event", payload.Type,
		"event_id", payload.ID,
		"order_id", payload.Data.ID)

	if err := h.services.HandlePolarEvent(r.Context(), &payload); err != nil {
		log.Error("Failed to handle webhook event", "error", err)
		http.Error(w, "Failed to process webhook", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// LemonSqueezyWebhook handles webhooks from Lemon Squeezy
func (h *Handler) LemonSqueezyWebhook(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("Failed to read webhook body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get("X-Signature")
	if signature == "" {
		log.Error("Missing X-Signature header")
		http.Error(w, "Missing signature", http.StatusUnauthorized)
		return
	}

	if !h.services.VerifyLemonSqueezySignature(body, signature) {
		log.Error("Invalid webhook signature")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var payload services.LemonSqueezyWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("Failed to parse webhook payload", "error", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	log.Info("Received Lemon Squeezy webhook",
		"event", payload.Meta.EventName,
		"order_id", payload.Data.ID,
		"test_mode", payload.Meta.TestMode)

	if err := h.services.HandleLemonSqueezyEvent(r.Context(), &payload); err != nil {
		log.Error("Failed to handle webhook event", "error", err)
		http.Error(w, "Failed to process webhook", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
