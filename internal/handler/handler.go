// Package handler exposes the payment subsystem over HTTP.
package handler

import (
	"github.com/buythelook/payments-api/internal/auth"
	"github.com/buythelook/payments-api/internal/config"
	"github.com/buythelook/payments-api/internal/metrics"
	"github.com/buythelook/payments-api/internal/services"
	"github.com/buythelook/payments-api/internal/store"
)

// Handler holds all dependencies for HTTP handlers
type Handler struct {
	services *services.Service
	store    store.Store
	verifier *auth.Verifier
	config   *config.Config
	metrics  *metrics.Collector
	limiter  *userRateLimiter
}

// New creates a new Handler instance
func New(cfg *config.Config, svc *services.Service, st store.Store, collector *metrics.Collector) *Handler {
	return &Handler{
		services: svc,
		store:    st,
		verifier: auth.NewVerifier(cfg.JWT.Secret),
		config:   cfg,
		metrics:  collector,
		limiter:  newUserRateLimiter(defaultRateLimit, defaultRateBurst),
	}
}
