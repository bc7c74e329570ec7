package services

import (
	"context"
	"errors"

	"github.com/buythelook/payments-api/internal/appctx"
	"github.com/buythelook/payments-api/internal/apperrs"
	"github.com/buythelook/payments-api/internal/payments"
	"github.com/buythelook/payments-api/internal/store"
)

// Balance is a user's current credit balance.
type Balance struct {
	UserID  string `json:"userId"`
	Credits int64  `json:"credits"`
}

// UnlockResult reports a credit-funded outfit unlock.
type UnlockResult struct {
	Success    bool  `json:"success"`
	NewBalance int64 `json:"newBalance"`
}

// GetBalance returns the user's credit balance.
func (s *Service) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrs.Client(apperrs.CodeNotFound, "profile not found")
		}
		return nil, apperrs.Server("failed to load profile", err)
	}
	return &Balance{UserID: profile.ID, Credits: profile.Credits}, nil
}

// UnlockWithCredit spends one credit to unlock shopping links on an outfit.
// The deduction and the unlock happen in one database transaction.
func (s *Service) UnlockWithCredit(ctx context.Context, userID, outfitID string) (*UnlockResult, error) {
	log := appctx.GetLogger(ctx)

	if outfitID == "" {
		return nil, apperrs.Client(apperrs.CodeInvalidInput, "outfitId is required")
	}

	newBalance, err := s.store.SpendCreditForUnlock(ctx, store.Transaction{
		UserID:      userID,
		Provider:    "credits",
		ExternalID:  "unlock:" + outfitID,
		AmountCents: 0,
		Currency:    "usd",
		PaymentType: payments.TypeLinksUnlock,
		Metadata: map[string]any{
			"outfitId": outfitID,
			"funding":  "credit",
		},
	}, outfitID, userID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, apperrs.Client(apperrs.CodeNotFound, "outfit not found")
		case errors.Is(err, store.ErrAlreadyUnlocked):
			return nil, apperrs.Client(apperrs.CodeAlreadyUnlocked, "links already unlocked")
		case errors.Is(err, store.ErrInsufficientCredits):
			return nil, apperrs.Client(apperrs.CodeInsufficientCredits, "not enough credits")
		}
		return nil, apperrs.Server("failed to unlock with credit", err)
	}

	s.metrics.RecordCreditsSpent(1)
	log.Info("outfit unlocked with credit", "user_id", userID, "outfit_id", outfitID, "new_balance", newBalance)
	return &UnlockResult{Success: true, NewBalance: newBalance}, nil
}
