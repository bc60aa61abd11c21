// Package store defines the persistence contract the match engine runs on.
// pgstore implements it on Postgres, memstore in process memory.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/almajlis/backend/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist (or, for conditional
	// writes on a match, when the match is not in a writable state).
	ErrNotFound = errors.New("record not found")
	// ErrConflict is a transient concurrent-write conflict. The whole operation
	// may be retried from scratch.
	ErrConflict = errors.New("transaction conflict")
	// ErrInsufficientBalance is returned by a conditional credit debit when the
	// balance is below one.
	ErrInsufficientBalance = errors.New("no credits remaining")
)

// Credit ledger entry kinds
const (
	CreditKindGrant = "GRANT"
	CreditKindDebit = "MATCH_DEBIT"
)

// Bucket identifies the active questions sharing a category and point value
type Bucket struct {
	CategoryID string
	Value      int
}

// QuestionBank is the read side of the question content store.
// Every list method returns active questions only and is capped at limit.
type QuestionBank interface {
	CountActiveQuestions(ctx context.Context, b Bucket) (int, error)
	// OldestQuestions orders by created_at, then id.
	OldestQuestions(ctx context.Context, b Bucket, limit int) ([]models.Question, error)
	// UnseenQuestions excludes questions in the user's seen index, ordered by id.
	UnseenQuestions(ctx context.Context, userID string, b Bucket, limit int) ([]models.Question, error)
	// SeenQuestions returns only questions in the user's seen index, ordered by id.
	SeenQuestions(ctx context.Context, userID string, b Bucket, limit int) ([]models.Question, error)
}

// CategoryCatalog is the read side of the category store
type CategoryCatalog interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategories(ctx context.Context, ids []string) (map[string]models.Category, error)
}

// Store is everything the engine reads outside a transaction plus the
// transaction entrypoint.
type Store interface {
	QuestionBank
	CategoryCatalog

	CountHostedMatches(ctx context.Context, userID string) (int, error)
	GetCredit(ctx context.Context, userID string) (models.UserCredit, error)
	CreditHistory(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error)

	GetMatch(ctx context.Context, matchID string) (*models.Match, error)
	ListMatchesByHost(ctx context.Context, userID string, limit int) ([]models.Match, error)
	ListStaleMatches(ctx context.Context, startedBefore time.Time, limit int) ([]models.Match, error)
	ListBoardCategories(ctx context.Context, matchID string) ([]models.BoardCategory, error)
	ListTiles(ctx context.Context, matchID string) ([]models.Tile, error)
	GetTile(ctx context.Context, matchID, tileID string) (*models.Tile, error)

	// WithTx runs fn in one atomic unit. Any error returned by fn rolls back
	// every write fn made.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side. Implementations must give the credit row lock
// serializable semantics per user and make OpenTile a conditional write.
type Tx interface {
	// LockCredit returns the user's balance row, creating a zero row if missing,
	// and holds it until the transaction ends.
	LockCredit(ctx context.Context, userID string) (models.UserCredit, error)
	// DebitCredit decrements by one and records a ledger row. Returns
	// ErrInsufficientBalance without writing when the balance is below one.
	DebitCredit(ctx context.Context, userID, matchID, description string) (int, error)
	// GrantCredit adds amount (> 0) and records a ledger row.
	GrantCredit(ctx context.Context, userID string, amount int, description string) (int, error)
	CountHostedMatches(ctx context.Context, userID string) (int, error)

	InsertMatch(ctx context.Context, m *models.Match) error
	InsertBoardCategories(ctx context.Context, cats []models.BoardCategory) error
	InsertTiles(ctx context.Context, tiles []models.Tile) error

	// OpenTile marks the tile opened only if it is still unopened. It returns
	// (tile, true) on success, (nil, false) if the tile was already opened and
	// ErrNotFound if the tile does not exist in the match.
	OpenTile(ctx context.Context, matchID, tileID, team string, correct bool, at time.Time) (*models.Tile, bool, error)
	// ApplyResolution adds the deltas to the scores and flips the turn, only
	// while the match is active. Returns ErrNotFound otherwise.
	ApplyResolution(ctx context.Context, matchID string, deltaA, deltaB int, at time.Time) (*models.Match, error)
	CountUnopenedTiles(ctx context.Context, matchID string) (int, error)
	// EndMatch moves a pending or active match to ended. Returns false when the
	// match was already ended.
	EndMatch(ctx context.Context, matchID string, at time.Time) (bool, error)
	MarkSeen(ctx context.Context, userID, questionID string, at time.Time) error
}
