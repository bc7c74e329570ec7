// Package services implements the business logic of the payment subsystem:
// checkout creation, payment verification and reconciliation, credit spending,
// and webhook processing.
package services

import (
	"fmt"

	"github.com/buythelook/payments-api/internal/apperrs"
	"github.com/buythelook/payments-api/internal/config"
	"github.com/buythelook/payments-api/internal/metrics"
	"github.com/buythelook/payments-api/internal/payments"
	"github.com/buythelook/payments-api/internal/store"
	"github.com/buythelook/payments-api/pkg/lemonsqueezy"
)

type Service struct {
	store     store.Store
	providers map[string]payments.Provider
	stripe    *payments.StripeProvider
	ls        *payments.LemonSqueezyProvider
	polar     *payments.PolarProvider
	config    *config.Config
	metrics   metrics.Recorder
}

// NewService wires the configured payment providers. Providers with no
// credentials are left out of the registry and requests naming them fail
// with an invalid input error.
func NewService(st store.Store, cfg *config.Config, rec metrics.Recorder) *Service {
	s := &Service{
		store:     st,
		providers: make(map[string]payments.Provider),
		config:    cfg,
		metrics:   rec,
	}

	if cfg.Stripe.SecretKey != "" {
		s.stripe = payments.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
		s.providers[payments.ProviderStripe] = s.stripe
	}
	if cfg.LemonSqueezy.APIKey != "" {
		client := lemonsqueezy.NewClient(lemonsqueezy.Config{
			APIKey:        cfg.LemonSqueezy.APIKey,
			StoreID:       cfg.LemonSqueezy.StoreID,
			WebhookSecret: cfg.LemonSqueezy.WebhookSecret,
		})
		s.ls = payments.NewLemonSqueezyProvider(client)
		s.providers[payments.ProviderLemonSqueezy] = s.ls
	}
	if cfg.Polar.AccessToken != "" {
		s.polar = payments.NewPolarProvider(payments.PolarConfig{
			AccessToken:   cfg.Polar.AccessToken,
			Server:        cfg.Polar.Server,
			WebhookSecret: cfg.Polar.WebhookSecret,
		})
		s.providers[payments.ProviderPolar] = s.polar
	}

	return s
}

// RegisterProvider replaces a provider in the registry. Used by tests to
// substitute providers backed by local HTTP servers.
func (s *Service) RegisterProvider(p payments.Provider) {
	s.providers[p.Name()] = p
}

func (s *Service) provider(name string) (payments.Provider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, apperrs.Client(apperrs.CodeInvalidInput, fmt.Sprintf("unsupported payment provider: %s", name))
	}
	return p, nil
}
