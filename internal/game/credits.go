package game

import (
	"context"
	"fmt"

	"github.com/almajlis/backend/internal/models"
	"github.com/almajlis/backend/internal/store"
	log "github.com/sirupsen/logrus"
)

const defaultHistoryLimit = 20

// CreditSummary is a user's balance with their most recent ledger entries
type CreditSummary struct {
	UserID    string                     `json:"user_id"`
	Remaining int                        `json:"remaining"`
	History   []models.CreditTransaction `json:"history"`
}

// Credits returns the caller's balance and recent ledger history
func (m *MatchManager) Credits(ctx context.Context, sess Session, limit int) (*CreditSummary, error) {
	if err := sess.validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	credit, err := m.store.GetCredit(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("load credit: %w", err)
	}
	history, err := m.store.CreditHistory(ctx, sess.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("load credit history: %w", err)
	}
	if history == nil {
		history = []models.CreditTransaction{}
	}
	return &CreditSummary{UserID: sess.UserID, Remaining: credit.Remaining, History: history}, nil
}

// GrantCredits tops up a user's balance and returns the new balance
func (m *MatchManager) GrantCredits(ctx context.Context, userID string, amount int, description string) (int, error) {
	if userID == "" {
		return 0, ErrUnauthenticated
	}
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	var balance int
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.LockCredit(ctx, userID); err != nil {
			return fmt.Errorf("lock credit: %w", err)
		}
		var err error
		balance, err = tx.GrantCredit(ctx, userID, amount, description)
		return err
	})
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"user_id": userID, "amount": amount, "balance": balance}).Info("[CREDITS] credits granted")
	return balance, nil
}
