package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/almajlis/backend/internal/models"
	"github.com/almajlis/backend/internal/store"
)

// SampleMode selects the sampling policy for a whole match
type SampleMode int

const (
	// ModePaid prefers questions the host has never had opened, shuffled
	ModePaid SampleMode = iota
	// ModeFree is deterministic: the two oldest active questions per bucket
	ModeFree
)

func (m SampleMode) String() string {
	if m == ModeFree {
		return "free"
	}
	return "paid"
}

// errUnseenShort is returned by Sample in paid mode when the bucket cannot be
// filled from unseen questions and the caller has not allowed the fallback.
var errUnseenShort = errors.New("unseen supply short")

// Pick is the ordered pair of questions chosen for one bucket
type Pick struct {
	Bucket    store.Bucket
	Questions [QuestionsPerBucket]models.Question
	UsedSeen  bool
}

// Sampler chooses the questions for each (category, value) bucket
type Sampler struct {
	bank  store.QuestionBank
	limit int
	rnd   *lockedRand
}

// NewSampler creates a sampler whose candidate queries are capped at limit
func NewSampler(bank store.QuestionBank, limit int, r *rand.Rand) *Sampler {
	return &Sampler{bank: bank, limit: limit, rnd: &lockedRand{r: r}}
}

// Sample returns two distinct questions for the bucket. In paid mode with
// allowSeen false it returns errUnseenShort instead of falling back.
func (s *Sampler) Sample(ctx context.Context, userID string, b store.Bucket, mode SampleMode, allowSeen bool) (Pick, error) {
	pick := Pick{Bucket: b}

	var chosen []models.Question
	if mode == ModeFree {
		oldest, err := s.bank.OldestQuestions(ctx, b, s.limit)
		if err != nil {
			return pick, fmt.Errorf("load oldest questions: %w", err)
		}
		chosen = takeDistinct(chosen, oldest)
	} else {
		unseen, err := s.bank.UnseenQuestions(ctx, userID, b, s.limit)
		if err != nil {
			return pick, fmt.Errorf("load unseen questions: %w", err)
		}
		s.shuffle(unseen)
		chosen = takeDistinct(chosen, unseen)

		if len(chosen) < QuestionsPerBucket {
			if !allowSeen {
				return pick, errUnseenShort
			}
			seen, err := s.bank.SeenQuestions(ctx, userID, b, s.limit)
			if err != nil {
				return pick, fmt.Errorf("load seen questions: %w", err)
			}
			s.shuffle(seen)
			chosen = takeDistinct(chosen, seen)
			pick.UsedSeen = true
		}
	}

	if len(chosen) < QuestionsPerBucket {
		return pick, &SamplingError{Bucket: b, Found: len(chosen)}
	}
	copy(pick.Questions[:], chosen)
	return pick, nil
}

func (s *Sampler) shuffle(qs []models.Question) {
	s.rnd.shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
}

// takeDistinct appends from pool until the pair is full, skipping ids already
// chosen.
func takeDistinct(chosen, pool []models.Question) []models.Question {
	for _, q := range pool {
		if len(chosen) == QuestionsPerBucket {
			break
		}
		dup := false
		for _, c := range chosen {
			if c.ID == q.ID {
				dup = true
				break
			}
		}
		if !dup {
			chosen = append(chosen, q)
		}
	}
	return chosen
}
