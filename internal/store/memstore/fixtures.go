package memstore

import (
	"fmt"
	"time"

	"github.com/almajlis/backend/internal/models"
)

var fixtureEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// SeedCategory adds a category with perValue active questions at each of
// 200, 400 and 600. Question ids are "<categoryID>-<value>-<n>" and creation
// times increase with n, so the oldest question of a bucket is n=0.
func (s *Store) SeedCategory(categoryID, name string, perValue int) {
	s.AddCategory(models.Category{ID: categoryID, Name: name, CreatedAt: fixtureEpoch})
	for _, value := range []int{200, 400, 600} {
		for n := 0; n < perValue; n++ {
			s.AddQuestion(models.Question{
				ID:         fmt.Sprintf("%s-%d-%d", categoryID, value, n),
				CategoryID: categoryID,
				Value:      value,
				Text:       fmt.Sprintf("%s question %d for %d", name, n, value),
				Answer:     fmt.Sprintf("%s answer %d for %d", name, n, value),
				IsActive:   true,
				CreatedAt:  fixtureEpoch.Add(time.Duration(n) * time.Minute),
			})
		}
	}
}

// RemoveQuestion deletes a question from the bank
func (s *Store) RemoveQuestion(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.questions, id)
}

// DeactivateQuestion flips a question's active flag off
func (s *Store) DeactivateQuestion(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.questions[id]; ok {
		q.IsActive = false
		s.questions[id] = q
	}
}
