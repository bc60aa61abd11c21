package game

import (
	"context"
	"fmt"
	"strings"
)

// CategoryListing is a catalog entry with its board readiness
type CategoryListing struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	GroupTag string `json:"group_tag,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Ready    bool   `json:"ready"`
}

// ListCategories returns the catalog ordered by name, filtered by a
// case-insensitive substring of the name when query is non-empty.
func (m *MatchManager) ListCategories(ctx context.Context, query string) ([]CategoryListing, error) {
	cats, err := m.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	query = strings.ToLower(strings.TrimSpace(query))

	out := make([]CategoryListing, 0, len(cats))
	for _, c := range cats {
		if query != "" && !strings.Contains(strings.ToLower(c.Name), query) {
			continue
		}
		out = append(out, CategoryListing{
			ID:       c.ID,
			Name:     c.Name,
			GroupTag: c.GroupTag,
			ImageURL: c.ImageURL,
			Ready:    m.validator.Readiness(ctx, c.ID),
		})
	}
	return out, nil
}
