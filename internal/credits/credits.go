package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/almajlis/backend/internal/models"
	"github.com/almajlis/backend/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

// Lock returns the user's credit row, creating a zero row if missing, and
// holds it FOR UPDATE until tx ends. Every creation by the same user queues
// behind this lock.
func Lock(ctx context.Context, tx *sqlx.Tx, userID string) (models.UserCredit, error) {
	var c models.UserCredit
	if tx == nil {
		return c, fmt.Errorf("tx is nil")
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO user_credits (user_id, remaining, updated_at) VALUES ($1, 0, NOW()) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return c, err
	}
	if err := tx.GetContext(ctx, &c, `SELECT user_id, remaining, updated_at FROM user_credits WHERE user_id=$1 FOR UPDATE`, userID); err != nil {
		return c, err
	}
	return c, nil
}

// Debit spends one credit for matchID. The UPDATE only lands while the
// balance is at least one, so the balance can never go negative.
func Debit(ctx context.Context, tx *sqlx.Tx, userID, matchID, description string) (int, error) {
	if tx == nil {
		return 0, fmt.Errorf("tx is nil")
	}

	var remaining int
	err := tx.GetContext(ctx, &remaining, `UPDATE user_credits SET remaining = remaining - 1, updated_at = NOW() WHERE user_id=$1 AND remaining >= 1 RETURNING remaining`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrInsufficientBalance
	}
	if err != nil {
		return 0, err
	}

	ref := sql.NullString{String: matchID, Valid: matchID != ""}
	if err := record(ctx, tx, userID, -1, remaining, store.CreditKindDebit, ref, description); err != nil {
		return 0, err
	}

	log.Printf("[CREDITS] Debit completed: user=%s match=%s remaining=%d", userID, matchID, remaining)
	return remaining, nil
}

// Grant adds amount credits to a user, creating the row if needed
func Grant(ctx context.Context, tx *sqlx.Tx, userID string, amount int, description string) (int, error) {
	if tx == nil {
		return 0, fmt.Errorf("tx is nil")
	}
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}

	var remaining int
	err := tx.GetContext(ctx, &remaining, `INSERT INTO user_credits (user_id, remaining, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET remaining = user_credits.remaining + EXCLUDED.remaining, updated_at = NOW()
		RETURNING remaining`, userID, amount)
	if err != nil {
		return 0, err
	}

	if err := record(ctx, tx, userID, amount, remaining, store.CreditKindGrant, sql.NullString{}, description); err != nil {
		return 0, err
	}

	log.Printf("[CREDITS] Grant completed: user=%s amount=%d remaining=%d desc=%s", userID, amount, remaining, description)
	return remaining, nil
}

func record(ctx context.Context, tx *sqlx.Tx, userID string, delta, balanceAfter int, kind string, matchID sql.NullString, description string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO credit_transactions (id, user_id, delta, balance_after, kind, match_id, description, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`,
		uuid.NewString(), userID, delta, balanceAfter, kind, matchID, description)
	return err
}

// Balance returns the user's credit row; a missing row reads as zero
func Balance(ctx context.Context, db sqlx.QueryerContext, userID string) (models.UserCredit, error) {
	c := models.UserCredit{UserID: userID}
	err := sqlx.GetContext(ctx, db, &c, `SELECT user_id, remaining, updated_at FROM user_credits WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserCredit{UserID: userID}, nil
	}
	return c, err
}

// History lists a user's ledger entries, newest first
func History(ctx context.Context, db sqlx.QueryerContext, userID string, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.CreditTransaction
	err := sqlx.SelectContext(ctx, db, &rows, `SELECT id, user_id, delta, balance_after, kind, match_id, description, created_at
		FROM credit_transactions WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	return rows, err
}
