package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by Store implementations. The service layer maps
// them onto the apperrs taxonomy.
var (
	ErrNotFound            = errors.New("store: not found")
	ErrInsufficientCredits = errors.New("store: insufficient credits")
	ErrAlreadyUnlocked     = errors.New("store: links already unlocked")
)

// Transaction statuses
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
)

// Profile represents a storefront user profile with its credit balance
type Profile struct {
	ID      string
	Email   string
	Credits int64
}

// Outfit represents a generated outfit row. LinksUnlocked and IsUnlocked are
// one logical flag persisted twice; they are always written together.
type Outfit struct {
	ID            string
	UserID        string
	LinksUnlocked bool
	IsUnlocked    bool
	CreatedAt     time.Time
}

// Transaction is an audit row in the payment transaction ledger. The
// (Provider, ExternalID) pair is unique and doubles as the idempotency key
// for verification.
type Transaction struct {
	ID          string
	UserID      string
	Provider    string
	ExternalID  string
	AmountCents int64
	Currency    string
	PaymentType string
	Status      string
	Metadata    map[string]any
}

// CreditsPaymentResult reports the outcome of applying a verified credits
// purchase.
type CreditsPaymentResult struct {
	NewBalance int64
	Duplicate  bool
}

// Store defines the persistence operations of the payment subsystem. The
// Apply* methods are atomic: the ledger insert and the balance/unlock
// mutation happen in a single database transaction, and a ledger conflict
// (same provider + external id already completed) turns the call into a
// read-only duplicate.
type Store interface {
	Ping(ctx context.Context) error
	Close()

	GetProfile(ctx context.Context, userID string) (*Profile, error)
	GetOutfit(ctx context.Context, outfitID, userID string) (*Outfit, error)

	// RecordPendingTransaction inserts a pending audit row at checkout time.
	RecordPendingTransaction(ctx context.Context, tx Transaction) error

	// ApplyCreditsPayment atomically records the completed transaction and
	// increments the user's balance by credits. Returns Duplicate=true and
	// the current balance when the transaction was already completed.
	ApplyCreditsPayment(ctx context.Context, tx Transaction, userID string, credits int64) (*CreditsPaymentResult, error)

	// ApplyLinksUnlock atomically records the completed transaction and sets
	// the outfit's unlock flags. Unlocking an already-unlocked outfit is a
	// no-op that still succeeds; a replayed transaction returns duplicate.
	ApplyLinksUnlock(ctx context.Context, tx Transaction, outfitID, userID string) (duplicate bool, err error)

	// SpendCreditForUnlock deducts one credit and unlocks the outfit in a
	// single transaction, recording an audit row. Returns the new balance.
	SpendCreditForUnlock(ctx context.Context, tx Transaction, outfitID, userID string) (newBalance int64, err error)

	// MarkWebhookProcessed records a webhook delivery. Returns false when the
	// event was already processed.
	MarkWebhookProcessed(ctx context.Context, provider, eventID string) (bool, error)
}
