package game

import (
	"context"
	"fmt"

	"github.com/almajlis/backend/internal/store"
)

// stockSource is the slice of the store the validator needs
type stockSource interface {
	store.QuestionBank
	store.CategoryCatalog
}

// StockValidator confirms every selected category can fill a board column
// before anything is written. It never mutates.
type StockValidator struct {
	src stockSource
}

// NewStockValidator creates a validator over the question bank
func NewStockValidator(src stockSource) *StockValidator {
	return &StockValidator{src: src}
}

// CheckSelection validates the shape of a category selection: 1..6 distinct,
// non-empty ids.
func CheckSelection(categoryIDs []string) error {
	if len(categoryIDs) < MinCategories || len(categoryIDs) > MaxCategories {
		return ErrInvalidCategories
	}
	seen := make(map[string]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		if id == "" || seen[id] {
			return ErrInvalidCategories
		}
		seen[id] = true
	}
	return nil
}

// Validate walks categories in selection order and values ascending, failing
// fast with *StockError on the first bucket holding fewer than two active
// questions.
func (v *StockValidator) Validate(ctx context.Context, categoryIDs []string) error {
	if err := CheckSelection(categoryIDs); err != nil {
		return err
	}

	for _, catID := range categoryIDs {
		for _, value := range PointValues {
			n, err := v.src.CountActiveQuestions(ctx, store.Bucket{CategoryID: catID, Value: value})
			if err != nil {
				return fmt.Errorf("count questions %s/%d: %w", catID, value, err)
			}
			if n < QuestionsPerBucket {
				return &StockError{
					CategoryID:   catID,
					CategoryName: v.categoryName(ctx, catID),
					Value:        value,
					Available:    n,
				}
			}
		}
	}
	return nil
}

// Readiness reports, per category, whether every value bucket is stocked.
// Used by the catalog listing; errors count as not ready.
func (v *StockValidator) Readiness(ctx context.Context, categoryID string) bool {
	for _, value := range PointValues {
		n, err := v.src.CountActiveQuestions(ctx, store.Bucket{CategoryID: categoryID, Value: value})
		if err != nil || n < QuestionsPerBucket {
			return false
		}
	}
	return true
}

func (v *StockValidator) categoryName(ctx context.Context, id string) string {
	cats, err := v.src.GetCategories(ctx, []string{id})
	if err != nil {
		return ""
	}
	return cats[id].Name
}
