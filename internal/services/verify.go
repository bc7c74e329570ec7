package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/buythelook/payments-api/internal/appctx"
	"github.com/buythelook/payments-api/internal/apperrs"
	"github.com/buythelook/payments-api/internal/metrics"
	"github.com/buythelook/payments-api/internal/payments"
	"github.com/buythelook/payments-api/internal/store"
)

// VerifyCreditsParams carries a credits verification request. UserID,
// Credits and PackageID are the client's claim; they are only trusted when
// the provider's confirmation carries no metadata and the provider-reported
// amount matches the claimed package's catalog price.
type VerifyCreditsParams struct {
	Provider  string
	SessionID string
	UserID    string
	Credits   int64
	PackageID string
}

// VerifyCreditsResult reports a reconciled credits purchase.
type VerifyCreditsResult struct {
	Success      bool  `json:"success"`
	CreditsAdded int64 `json:"creditsAdded"`
	NewBalance   int64 `json:"newBalance"`
	Duplicate    bool  `json:"duplicate,omitempty"`
}

// VerifyLinksParams carries a links unlock verification request.
type VerifyLinksParams struct {
	Provider  string
	SessionID string
	UserID    string
	OutfitID  string
}

// VerifyLinksResult reports a reconciled links unlock.
type VerifyLinksResult struct {
	Success     bool              `json:"success"`
	Metadata    map[string]string `json:"metadata"`
	AmountTotal int64             `json:"amountTotal"`
	Duplicate   bool              `json:"duplicate,omitempty"`
}

// VerifyCreditsPayment confirms a checkout session with the provider,
// reconciles the result into the ledger and grants credits exactly once per
// session.
func (s *Service) VerifyCreditsPayment(ctx context.Context, p VerifyCreditsParams) (*VerifyCreditsResult, error) {
	log := appctx.GetLogger(ctx)

	if p.SessionID == "" {
		return nil, apperrs.Client(apperrs.CodeInvalidInput, "sessionId is required")
	}
	provider, err := s.provider(p.Provider)
	if err != nil {
		return nil, err
	}

	conf, err := provider.ConfirmPayment(ctx, p.SessionID)
	if err != nil {
		s.metrics.RecordVerification(p.Provider, metrics.VerifyResultFailed)
		log.Error("payment confirmation failed", "provider", p.Provider, "session_id", p.SessionID, "error", err)
		return nil, apperrs.Server("failed to confirm payment with provider", err)
	}
	if !conf.Paid() {
		s.metrics.RecordVerification(p.Provider, metrics.VerifyResultRejected)
		return nil, apperrs.Client(apperrs.CodePaymentNotCompleted, "payment not completed").
			SetMeta("status", conf.Status)
	}

	userID, credits, pkgID, err := s.resolveCreditsClaim(conf, p)
	if err != nil {
		s.metrics.RecordVerification(p.Provider, metrics.VerifyResultRejected)
		return nil, err
	}

	result, err := s.store.ApplyCreditsPayment(ctx, store.Transaction{
		UserID:      userID,
		Provider:    p.Provider,
		ExternalID:  conf.SessionID,
		AmountCents: conf.AmountCents,
		Currency:    conf.Currency,
		PaymentType: payments.TypeCreditsPurchase,
		Metadata: map[string]any{
			"credits":   credits,
			"packageId": pkgID,
		},
	}, userID, credits)
	if err != nil {
		s.metrics.RecordVerification(p.Provider, metrics.VerifyResultFailed)
		return nil, apperrs.Server("failed to apply credits payment", err)
	}

	if result.Duplicate {
		s.metrics.RecordVerification(p.Provider, metrics.VerifyResultDuplicate)
		log.Info("duplicate credits verification", "provider", p.Provider, "session_id", conf.SessionID)
		return &VerifyCreditsResult{
			Success:      true,
			CreditsAdded: 0,
			NewBalance:   result.NewBalance,
			Duplicate:    true,
		}, nil
	}

	s.metrics.RecordVerification(p.Provider, metrics.VerifyResultSuccess)
	s.metrics.RecordCreditsGranted(credits)
	log.Info("credits payment verified",
		"provider", p.Provider, "session_id", conf.SessionID, "user_id", userID,
		"credits", credits, "new_balance", result.NewBalance)

	return &VerifyCreditsResult{
		Success:      true,
		CreditsAdded: credits,
		NewBalance:   result.NewBalance,
	}, nil
}

// resolveCreditsClaim decides whose credits to grant and how many. Provider
// metadata wins when present. Without metadata the client's claim is accepted
// only if the provider-reported amount equals the catalog price of the
// claimed package.
func (s *Service) resolveCreditsClaim(conf *payments.Confirmation, p VerifyCreditsParams) (userID string, credits int64, pkgID string, err error) {
	if typ := conf.Metadata[payments.MetaType]; typ != "" && typ != payments.TypeCreditsPurchase {
		return "", 0, "", apperrs.Client(apperrs.CodeInvalidInput, "session is not a credits purchase")
	}

	userID = conf.Metadata[payments.MetaUserID]
	pkgID = conf.Metadata[payments.MetaPackageID]
	if v := conf.Metadata[payments.MetaCredits]; v != "" {
		credits, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return "", 0, "", apperrs.Server("malformed credits metadata", err)
		}
	}

	if userID != "" && credits > 0 {
		return userID, credits, pkgID, nil
	}

	// No usable metadata came back from the provider. Fall back to the
	// client's claim, cross-checked against the catalog price.
	if p.UserID == "" || p.Credits <= 0 {
		return "", 0, "", apperrs.Client(apperrs.CodeInvalidInput, "userId and credits are required")
	}
	if userID != "" && userID != p.UserID {
		return "", 0, "", apperrs.Client(apperrs.CodeForbidden, "session belongs to a different user")
	}
	pkg := packageByCredits(p.Credits)
	if pkg == nil || (p.PackageID != "" && p.PackageID != pkg.ID) {
		return "", 0, "", apperrs.Client(apperrs.CodeInvalidInput, "claimed credits do not match any package")
	}
	if conf.AmountCents != pkg.PriceCents {
		return "", 0, "", apperrs.Client(apperrs.CodeInvalidInput, "paid amount does not match package price")
	}
	return p.UserID, pkg.Credits, pkg.ID, nil
}

// VerifyLinksPayment confirms a checkout session with the provider and
// unlocks shopping links on the outfit exactly once per session.
func (s *Service) VerifyLinksPayment(ctx context.Context, p VerifyLinksParams) (*VerifyLinksResult, error) {
	log := appctx.GetLogger(ctx)

	if p.SessionID == "" {
		return nil, apperrs.Client(apperrs.CodeInvalidInput, "sessionId is required")
	}
	provider, err := s.provider(p.Provider)
	if err != nil {
		return nil, err
	}

	conf, err := provider.ConfirmPayment(ctx, p.SessionID)
	if err != nil {
		s.metrics.RecordVerification(p.Provider, metrics.VerifyResultFailed)
		log.Error("payment confirmation failed", "provider", p.Provider, "session_id", p.SessionID, "error", err)
		return nil, apperrs.Server("failed to confirm payment with provider", err)
	}
	if !conf.Paid() {
		s.metrics.RecordVerification(p.Provider, metrics.VerifyResultRejected)
		return nil, apperrs.Client(apperrs.CodePaymentNotCompleted, "payment not completed").
			SetMeta("status", conf.Status)
	}

	userID, outfitID, err := s.resolveLinksClaim(conf, p)
	if err != nil {
		s.metrics.RecordVerification(p.Provider, metrics.VerifyResultRejected)
		return nil, err
	}

	duplicate, err := s.store.ApplyLinksUnlock(ctx, store.Transaction{
		UserID:      userID,
		Provider:    p.Provider,
		ExternalID:  conf.SessionID,
		AmountCents: conf.AmountCents,
		Currency:    conf.Currency,
		PaymentType: payments.TypeLinksUnlock,
		Metadata: map[string]any{
			"outfitId": outfitID,
		},
	}, outfitID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.RecordVerification(p.Provider, metrics.VerifyResultRejected)
			return nil, apperrs.Client(apperrs.CodeNotFound, "outfit not found")
		}
		s.metrics.RecordVerification(p.Provider, metrics.VerifyResultFailed)
		return nil, apperrs.Server("failed to apply links unlock", err)
	}

	if duplicate {
		s.metrics.RecordVerification(p.Provider, metrics.VerifyResultDuplicate)
	} else {
		s.metrics.RecordVerification(p.Provider, metrics.VerifyResultSuccess)
	}
	log.Info("links payment verified",
		"provider", p.Provider, "session_id", conf.SessionID,
		"outfit_id", outfitID, "duplicate", duplicate)

	metadata := map[string]string{
		payments.MetaType:     payments.TypeLinksUnlock,
		payments.MetaUserID:   userID,
		payments.MetaOutfitID: outfitID,
	}
	return &VerifyLinksResult{
		Success:     true,
		Metadata:    metadata,
		AmountTotal: conf.AmountCents,
		Duplicate:   duplicate,
	}, nil
}

// resolveLinksClaim mirrors resolveCreditsClaim for link unlocks: the fixed
// unlock price is the cross-check when the provider returns no metadata.
func (s *Service) resolveLinksClaim(conf *payments.Confirmation, p VerifyLinksParams) (userID, outfitID string, err error) {
	if typ := conf.Metadata[payments.MetaType]; typ != "" && typ != payments.TypeLinksUnlock {
		return "", "", apperrs.Client(apperrs.CodeInvalidInput, "session is not a links unlock")
	}

	userID = conf.Metadata[payments.MetaUserID]
	outfitID = conf.Metadata[payments.MetaOutfitID]
	if userID != "" && outfitID != "" {
		return userID, outfitID, nil
	}

	if p.UserID == "" || p.OutfitID == "" {
		return "", "", apperrs.Client(apperrs.CodeInvalidInput, "userId and outfitId are required")
	}
	if userID != "" && userID != p.UserID {
		return "", "", apperrs.Client(apperrs.CodeForbidden, "session belongs to a different user")
	}
	if conf.AmountCents != LinksUnlockPriceCents {
		return "", "", apperrs.Client(apperrs.CodeInvalidInput, "paid amount does not match unlock price")
	}
	if userID == "" {
		userID = p.UserID
	}
	if outfitID == "" {
		outfitID = p.OutfitID
	}
	return userID, outfitID, nil
}
