package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/almajlis/backend/internal/store"
)

var (
	// ErrStockInsufficient is wrapped by *StockError
	ErrStockInsufficient = errors.New("stock insufficient")
	// ErrInsufficientCredit aborts match creation when the balance is below one
	ErrInsufficientCredit = store.ErrInsufficientBalance
	// ErrAlreadyResolved is a benign no-op: someone else resolved the tile first
	ErrAlreadyResolved = errors.New("tile already resolved")
	// ErrSamplingUnderflow means stock validation passed but a bucket could not
	// yield two distinct questions. It is a bug, not a user error.
	ErrSamplingUnderflow = errors.New("sampling underflow")
	// ErrTransactionConflict is transient; retry the whole operation
	ErrTransactionConflict = store.ErrConflict
	// ErrSeenFallbackRequired is wrapped by *SeenFallbackError
	ErrSeenFallbackRequired = errors.New("previously seen questions required")

	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("not allowed for this match")
	ErrInvalidCategories = errors.New("select between 1 and 6 distinct categories")
	ErrInvalidTeamName   = errors.New("team names must be 1 to 50 characters")
	ErrInvalidTeam       = errors.New("team must be A, B or none")
	ErrMatchNotFound     = errors.New("match not found")
	ErrTileNotFound      = errors.New("tile not found")
	ErrMatchNotActive    = errors.New("match is not active")
)

// StockError names the first category/value combination short of questions
type StockError struct {
	CategoryID   string
	CategoryName string
	Value        int
	Available    int
}

func (e *StockError) Error() string {
	name := e.CategoryName
	if name == "" {
		name = e.CategoryID
	}
	return fmt.Sprintf("category %q needs at least %d questions for %d", name, QuestionsPerBucket, e.Value)
}

func (e *StockError) Unwrap() error { return ErrStockInsufficient }

// SeenFallbackError lists the buckets that can only be filled with questions
// the user has already opened. The caller must confirm with AllowSeen.
type SeenFallbackError struct {
	Buckets []store.Bucket
}

func (e *SeenFallbackError) Error() string {
	parts := make([]string, 0, len(e.Buckets))
	for _, b := range e.Buckets {
		parts = append(parts, fmt.Sprintf("%s/%d", b.CategoryID, b.Value))
	}
	return fmt.Sprintf("not enough unseen questions in %s", strings.Join(parts, ", "))
}

func (e *SeenFallbackError) Unwrap() error { return ErrSeenFallbackRequired }

// SamplingError reports the bucket that underflowed
type SamplingError struct {
	Bucket store.Bucket
	Found  int
}

func (e *SamplingError) Error() string {
	return fmt.Sprintf("bucket %s/%d yielded %d distinct questions", e.Bucket.CategoryID, e.Bucket.Value, e.Found)
}

func (e *SamplingError) Unwrap() error { return ErrSamplingUnderflow }
