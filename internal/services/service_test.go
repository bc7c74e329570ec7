package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/buythelook/payments-api/internal/config"
	"github.com/buythelook/payments-api/internal/metrics"
	"github.com/buythelook/payments-api/internal/payments"
	"github.com/buythelook/payments-api/internal/store"
)

// fakeStore is an in-memory Store with the same idempotency semantics as the
// Postgres implementation. Guarded by a mutex so concurrent verifications
// exercise it safely.
type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]*store.Profile
	outfits  map[string]*store.Outfit
	ledger   map[string]store.Transaction // provider|externalID -> recorded row
	pending  []store.Transaction
	webhooks map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[string]*store.Profile),
		outfits:  make(map[string]*store.Outfit),
		ledger:   make(map[string]store.Transaction),
		webhooks: make(map[string]bool),
	}
}

func ledgerKey(provider, externalID string) string {
	return provider + "|" + externalID
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close()                         {}

func (f *fakeStore) GetProfile(ctx context.Context, userID string) (*store.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetOutfit(ctx context.Context, outfitID, userID string) (*store.Outfit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.outfits[outfitID]
	if !ok || o.UserID != userID {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) RecordPendingTransaction(ctx context.Context, tx store.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ledgerKey(tx.Provider, tx.ExternalID)
	if _, exists := f.ledger[key]; !exists {
		tx.Status = store.TransactionStatusPending
		f.ledger[key] = tx
	}
	f.pending = append(f.pending, tx)
	return nil
}

func (f *fakeStore) ApplyCreditsPayment(ctx context.Context, tx store.Transaction, userID string, credits int64) (*store.CreditsPaymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ledgerKey(tx.Provider, tx.ExternalID)
	if prev, ok := f.ledger[key]; ok && prev.Status == store.TransactionStatusCompleted {
		p, ok := f.profiles[prev.UserID]
		if !ok {
			return nil, store.ErrNotFound
		}
		return &store.CreditsPaymentResult{NewBalance: p.Credits, Duplicate: true}, nil
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	tx.Status = store.TransactionStatusCompleted
	f.ledger[key] = tx
	p.Credits += credits
	return &store.CreditsPaymentResult{NewBalance: p.Credits}, nil
}

func (f *fakeStore) ApplyLinksUnlock(ctx context.Context, tx store.Transaction, outfitID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ledgerKey(tx.Provider, tx.ExternalID)
	if prev, ok := f.ledger[key]; ok && prev.Status == store.TransactionStatusCompleted {
		return true, nil
	}
	o, ok := f.outfits[outfitID]
	if !ok || o.UserID != userID {
		return false, store.ErrNotFound
	}
	tx.Status = store.TransactionStatusCompleted
	f.ledger[key] = tx
	o.LinksUnlocked = true
	o.IsUnlocked = true
	return false, nil
}

func (f *fakeStore) SpendCreditForUnlock(ctx context.Context, tx store.Transaction, outfitID, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.outfits[outfitID]
	if !ok || o.UserID != userID {
		return 0, store.ErrNotFound
	}
	if o.LinksUnlocked {
		return 0, store.ErrAlreadyUnlocked
	}
	p, ok := f.profiles[userID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if p.Credits < 1 {
		return 0, store.ErrInsufficientCredits
	}
	p.Credits--
	o.LinksUnlocked = true
	o.IsUnlocked = true
	tx.Status = store.TransactionStatusCompleted
	f.ledger[ledgerKey(tx.Provider, tx.ExternalID)] = tx
	return p.Credits, nil
}

func (f *fakeStore) MarkWebhookProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ledgerKey(provider, eventID)
	if f.webhooks[key] {
		return false, nil
	}
	f.webhooks[key] = true
	return true, nil
}

// fakeProvider is a scriptable payments.Provider.
type fakeProvider struct {
	name       string
	session    *payments.CheckoutSession
	createErr  error
	confs      map[string]*payments.Confirmation
	confirmErr error
	lastParams payments.CheckoutParams
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) CreateCheckout(ctx context.Context, params payments.CheckoutParams) (*payments.CheckoutSession, error) {
	f.lastParams = params
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.session, nil
}

func (f *fakeProvider) ConfirmPayment(ctx context.Context, sessionID string) (*payments.Confirmation, error) {
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	conf, ok := f.confs[sessionID]
	if !ok {
		return nil, errors.New("unknown session")
	}
	return conf, nil
}

func newTestService(t *testing.T, fs *fakeStore, providers ...payments.Provider) *Service {
	t.Helper()
	s := &Service{
		store:     fs,
		providers: make(map[string]payments.Provider),
		config: &config.Config{
			Server:       config.ServerConfig{AppBaseURL: "https://app.buythelook.test"},
			LemonSqueezy: config.LemonSqueezyConfig{VariantID: "variant-1"},
			Polar: config.PolarConfig{
				StarterProductID:     "polar-starter",
				PackProductID:        "polar-pack",
				FashionistaProductID: "polar-fashionista",
				LinksProductID:       "polar-links",
			},
		},
		metrics: metrics.NewCollector(),
	}
	for _, p := range providers {
		s.providers[p.Name()] = p
	}
	return s
}
