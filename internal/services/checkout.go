package services

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/buythelook/payments-api/internal/appctx"
	"github.com/buythelook/payments-api/internal/apperrs"
	"github.com/buythelook/payments-api/internal/payments"
	"github.com/buythelook/payments-api/internal/store"
)

// CreditsCheckoutParams describes a request to start a credit purchase.
type CreditsCheckoutParams struct {
	UserID    string
	UserEmail string
	Provider  string
	PackageID string
}

// LinksCheckoutParams describes a request to start a shopping links unlock
// purchase for one outfit.
type LinksCheckoutParams struct {
	UserID    string
	UserEmail string
	Provider  string
	OutfitID  string
}

// CheckoutResult is the created hosted checkout session.
type CheckoutResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CreateCreditsCheckout creates a hosted checkout session for a credit
// package. The price comes from the catalog, never from the request.
func (s *Service) CreateCreditsCheckout(ctx context.Context, p CreditsCheckoutParams) (*CheckoutResult, error) {
	log := appctx.GetLogger(ctx)

	if p.UserID == "" {
		return nil, apperrs.Client(apperrs.CodeInvalidInput, "userId is required")
	}
	pkg, err := PackageByID(p.PackageID)
	if err != nil {
		return nil, err
	}
	provider, err := s.provider(p.Provider)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		payments.MetaType:      payments.TypeCreditsPurchase,
		payments.MetaUserID:    p.UserID,
		payments.MetaCredits:   strconv.FormatInt(pkg.Credits, 10),
		payments.MetaPackageID: pkg.ID,
	}

	session, err := provider.CreateCheckout(ctx, payments.CheckoutParams{
		ProductRef:  s.creditsProductRef(p.Provider, pkg),
		AmountCents: pkg.PriceCents,
		Currency:    pkg.Currency,
		Name:        pkg.Name,
		Description: pkg.Description,
		SuccessURL:  s.successURL(p.Provider, payments.TypeCreditsPurchase, metadata),
		CancelURL:   s.config.Server.BaseURL("/pricing"),
		Metadata:    metadata,
	})
	if err != nil {
		log.Error("create credits checkout failed", "provider", p.Provider, "package", pkg.ID, "error", err)
		return nil, apperrs.Server("failed to create checkout session", err)
	}

	s.recordPending(ctx, store.Transaction{
		UserID:      p.UserID,
		Provider:    p.Provider,
		ExternalID:  session.ID,
		AmountCents: pkg.PriceCents,
		Currency:    pkg.Currency,
		PaymentType: payments.TypeCreditsPurchase,
		Metadata: map[string]any{
			"credits":   pkg.Credits,
			"packageId": pkg.ID,
		},
	})
	s.metrics.RecordCheckoutCreated(p.Provider, payments.TypeCreditsPurchase)

	log.Info("credits checkout created", "provider", p.Provider, "package", pkg.ID, "session_id", session.ID)
	return &CheckoutResult{SessionID: session.ID, URL: session.URL}, nil
}

// CreateLinksCheckout creates a hosted checkout session to unlock shopping
// links on a single outfit.
func (s *Service) CreateLinksCheckout(ctx context.Context, p LinksCheckoutParams) (*CheckoutResult, error) {
	log := appctx.GetLogger(ctx)

	if p.UserID == "" {
		return nil, apperrs.Client(apperrs.CodeInvalidInput, "userId is required")
	}
	if p.OutfitID == "" {
		return nil, apperrs.Client(apperrs.CodeInvalidInput, "outfitId is required")
	}
	provider, err := s.provider(p.Provider)
	if err != nil {
		return nil, err
	}

	// The outfit must exist and belong to the user before money moves.
	if _, err := s.store.GetOutfit(ctx, p.OutfitID, p.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrs.Client(apperrs.CodeNotFound, "outfit not found")
		}
		return nil, apperrs.Server("failed to load outfit", err)
	}

	metadata := map[string]string{
		payments.MetaType:     payments.TypeLinksUnlock,
		payments.MetaUserID:   p.UserID,
		payments.MetaOutfitID: p.OutfitID,
	}

	session, err := provider.CreateCheckout(ctx, payments.CheckoutParams{
		ProductRef:  s.linksProductRef(p.Provider),
		AmountCents: LinksUnlockPriceCents,
		Currency:    "usd",
		Name:        "Shopping Links Unlock",
		Description: "Unlock shopping links for one outfit",
		SuccessURL:  s.successURL(p.Provider, payments.TypeLinksUnlock, metadata),
		CancelURL:   s.config.Server.BaseURL("/outfits/" + p.OutfitID),
		Metadata:    metadata,
	})
	if err != nil {
		log.Error("create links checkout failed", "provider", p.Provider, "outfit_id", p.OutfitID, "error", err)
		return nil, apperrs.Server("failed to create checkout session", err)
	}

	s.recordPending(ctx, store.Transaction{
		UserID:      p.UserID,
		Provider:    p.Provider,
		ExternalID:  session.ID,
		AmountCents: LinksUnlockPriceCents,
		Currency:    "usd",
		PaymentType: payments.TypeLinksUnlock,
		Metadata: map[string]any{
			"outfitId": p.OutfitID,
		},
	})
	s.metrics.RecordCheckoutCreated(p.Provider, payments.TypeLinksUnlock)

	log.Info("links checkout created", "provider", p.Provider, "outfit_id", p.OutfitID, "session_id", session.ID)
	return &CheckoutResult{SessionID: session.ID, URL: session.URL}, nil
}

// successURL builds the storefront redirect target for a completed checkout.
// The session id is appended with the provider's template placeholder so the
// verification page can read it back.
func (s *Service) successURL(provider, paymentType string, metadata map[string]string) string {
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("type", paymentType)
	for _, key := range []string{payments.MetaUserID, payments.MetaCredits, payments.MetaOutfitID} {
		if v := metadata[key]; v != "" {
			q.Set(key, v)
		}
	}

	base := s.config.Server.BaseURL("/payment-success") + "?" + q.Encode()
	switch provider {
	case payments.ProviderStripe:
		// Stripe substitutes the placeholder on redirect.
		return base + "&session_id={CHECKOUT_SESSION_ID}"
	case payments.ProviderPolar:
		return base + "&session_id={CHECKOUT_ID}"
	}
	return base
}

// recordPending writes the pending audit row for a freshly created checkout.
// Failures are logged and swallowed: the pending row is bookkeeping, and the
// completed row written at verification is what grants value.
func (s *Service) recordPending(ctx context.Context, tx store.Transaction) {
	tx.Status = store.TransactionStatusPending
	if err := s.store.RecordPendingTransaction(ctx, tx); err != nil {
		appctx.GetLogger(ctx).Warn("failed to record pending transaction",
			"provider", tx.Provider, "session_id", tx.ExternalID, "error", err)
	}
}
