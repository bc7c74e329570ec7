package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	const q = `
SELECT id, email, credits
FROM profiles
WHERE id = $1;
`
	var p Profile
	if err := s.pool.QueryRow(ctx, q, userID).Scan(&p.ID, &p.Email, &p.Credits); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) GetOutfit(ctx context.Context, outfitID, userID string) (*Outfit, error) {
	const q = `
SELECT id, user_id, links_unlocked, is_unlocked, created_at
FROM generated_outfits
WHERE id = $1 AND user_id = $2;
`
	var o Outfit
	err := s.pool.QueryRow(ctx, q, outfitID, userID).Scan(
		&o.ID, &o.UserID, &o.LinksUnlocked, &o.IsUnlocked, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get outfit: %w", err)
	}
	return &o, nil
}

func (s *PostgresStore) RecordPendingTransaction(ctx context.Context, t Transaction) error {
	return s.insertTransaction(ctx, s.pool, t, TransactionStatusPending)
}

// insertTransaction inserts an audit row, ignoring conflicts on the
// (provider, external_id) idempotency key.
func (s *PostgresStore) insertTransaction(ctx context.Context, q querier, t Transaction, status string) error {
	const stmt = `
INSERT INTO payment_transactions (id, user_id, provider, external_id, amount_cents, currency, payment_type, status, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (provider, external_id) DO NOTHING;
`
	meta, err := marshalMetadata(t.Metadata)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, stmt,
		transactionID(t), t.UserID, t.Provider, t.ExternalID,
		t.AmountCents, t.Currency, t.PaymentType, status, meta,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// completeTransaction inserts the completed transaction row, upgrading a
// pending checkout row for the same key in place. It reports whether this
// call won the idempotency race; false means a completed row already exists.
func (s *PostgresStore) completeTransaction(ctx context.Context, tx pgx.Tx, t Transaction) (bool, error) {
	const stmt = `
INSERT INTO payment_transactions (id, user_id, provider, external_id, amount_cents, currency, payment_type, status, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (provider, external_id) DO UPDATE
SET status = EXCLUDED.status,
    user_id = EXCLUDED.user_id,
    amount_cents = EXCLUDED.amount_cents,
    currency = EXCLUDED.currency,
    payment_type = EXCLUDED.payment_type,
    metadata = EXCLUDED.metadata
WHERE payment_transactions.status = $10
RETURNING id;
`
	meta, err := marshalMetadata(t.Metadata)
	if err != nil {
		return false, err
	}

	var id string
	err = tx.QueryRow(ctx, stmt,
		transactionID(t), t.UserID, t.Provider, t.ExternalID,
		t.AmountCents, t.Currency, t.PaymentType, TransactionStatusCompleted, meta,
		TransactionStatusPending,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflicting row is already completed: a previous verification
			// for this provider session won.
			return false, nil
		}
		return false, fmt.Errorf("complete transaction: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) ApplyCreditsPayment(ctx context.Context, t Transaction, userID string, credits int64) (*CreditsPaymentResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	won, err := s.completeTransaction(ctx, tx, t)
	if err != nil {
		return nil, err
	}

	if !won {
		// Already processed: report the credited user's balance without
		// mutating. The ledger row names who the grant went to, which can
		// differ from the caller's claim on a replay.
		var balance int64
		err := tx.QueryRow(ctx, `
SELECT p.credits
FROM payment_transactions pt
JOIN profiles p ON p.id = pt.user_id
WHERE pt.provider = $1 AND pt.external_id = $2;`,
			t.Provider, t.ExternalID,
		).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("get balance: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		return &CreditsPaymentResult{NewBalance: balance, Duplicate: true}, nil
	}

	// Atomic increment, no separate read step.
	var balance int64
	err = tx.QueryRow(ctx,
		`UPDATE profiles SET credits = credits + $2 WHERE id = $1 RETURNING credits;`,
		userID, credits,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("add credits: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &CreditsPaymentResult{NewBalance: balance}, nil
}

func (s *PostgresStore) ApplyLinksUnlock(ctx context.Context, t Transaction, outfitID, userID string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	won, err := s.completeTransaction(ctx, tx, t)
	if err != nil {
		return false, err
	}
	if !won {
		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("commit: %w", err)
		}
		return true, nil
	}

	// false -> true only; re-unlocking an unlocked outfit is a no-op update.
	var id string
	err = tx.QueryRow(ctx, `
UPDATE generated_outfits
SET links_unlocked = true, is_unlocked = true
WHERE id = $1 AND user_id = $2
RETURNING id;
`, outfitID, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("unlock outfit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return false, nil
}

func (s *PostgresStore) SpendCreditForUnlock(ctx context.Context, t Transaction, outfitID, userID string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var unlocked bool
	err = tx.QueryRow(ctx,
		`SELECT links_unlocked FROM generated_outfits WHERE id = $1 AND user_id = $2;`,
		outfitID, userID,
	).Scan(&unlocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get outfit: %w", err)
	}
	if unlocked {
		return 0, ErrAlreadyUnlocked
	}

	// Guarded atomic decrement: the credits >= 1 predicate plus the CHECK
	// constraint keep the balance non-negative under concurrency.
	var balance int64
	err = tx.QueryRow(ctx,
		`UPDATE profiles SET credits = credits - 1 WHERE id = $1 AND credits >= 1 RETURNING credits;`,
		userID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, perr := s.profileExists(ctx, tx, userID); perr != nil {
				return 0, perr
			}
			return 0, ErrInsufficientCredits
		}
		return 0, fmt.Errorf("spend credit: %w", err)
	}

	if _, err := tx.Exec(ctx, `
UPDATE generated_outfits
SET links_unlocked = true, is_unlocked = true
WHERE id = $1 AND user_id = $2;
`, outfitID, userID); err != nil {
		return 0, fmt.Errorf("unlock outfit: %w", err)
	}

	if err := s.insertTransaction(ctx, tx, t, TransactionStatusCompleted); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) MarkWebhookProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
INSERT INTO webhook_events (provider, event_id)
VALUES ($1, $2)
ON CONFLICT (provider, event_id) DO NOTHING;
`, provider, eventID)
	if err != nil {
		return false, fmt.Errorf("mark webhook processed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) profileExists(ctx context.Context, tx pgx.Tx, userID string) (bool, error) {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM profiles WHERE id = $1;`, userID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("get profile: %w", err)
	}
	return true, nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func transactionID(t Transaction) string {
	if t.ID != "" {
		return t.ID
	}
	return uuid.NewString()
}

func marshalMetadata(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return b, nil
}
