package game

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/almajlis/backend/internal/store"
	log "github.com/sirupsen/logrus"
)

// DefaultCandidateLimit caps every sampler candidate query
const DefaultCandidateLimit = 50

// Notifier receives a fresh board snapshot after every committed resolve and
// lifecycle transition. Delivery is best-effort.
type Notifier interface {
	Publish(ctx context.Context, board *Board) error
}

// Options tunes the match manager
type Options struct {
	// CandidateLimit is K in the bounded candidate policy. Values below 2 are
	// raised to 2.
	CandidateLimit int
	// FirstMatchFree builds a user's very first match without spending credit,
	// using deterministic sampling.
	FirstMatchFree bool
	// Rand drives the paid-mode shuffle. Nil seeds from runtime entropy.
	Rand *rand.Rand
	// Now overrides the clock (tests).
	Now func() time.Time
}

// MatchManager is the match-session engine: it builds boards, resolves tiles
// and finalizes matches on top of a store.Store.
type MatchManager struct {
	store     store.Store
	notifier  Notifier
	validator *StockValidator
	sampler   *Sampler
	opts      Options
	now       func() time.Time
}

// NewMatchManager wires the engine. notifier may be nil.
func NewMatchManager(st store.Store, notifier Notifier, opts Options) *MatchManager {
	if opts.CandidateLimit < QuestionsPerBucket {
		if opts.CandidateLimit != 0 {
			log.Warnf("[MATCH] candidate limit %d below %d; raising", opts.CandidateLimit, QuestionsPerBucket)
			opts.CandidateLimit = QuestionsPerBucket
		} else {
			opts.CandidateLimit = DefaultCandidateLimit
		}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &MatchManager{
		store:     st,
		notifier:  notifier,
		validator: NewStockValidator(st),
		sampler:   NewSampler(st, opts.CandidateLimit, opts.Rand),
		opts:      opts,
		now:       now,
	}
}

// Store exposes the underlying store for read-only collaborators (handlers
// listing credits and categories).
func (m *MatchManager) Store() store.Store {
	return m.store
}

// SetNotifier replaces the snapshot notifier. Call before serving traffic.
func (m *MatchManager) SetNotifier(n Notifier) {
	m.notifier = n
}

// publish pushes the current board to observers. Failures are logged only.
func (m *MatchManager) publish(ctx context.Context, matchID string) {
	if m.notifier == nil {
		return
	}
	board, err := m.GetBoard(ctx, matchID)
	if err != nil {
		log.Printf("[MATCH] snapshot load failed for %s: %v", matchID, err)
		return
	}
	if err := m.notifier.Publish(ctx, board); err != nil {
		log.Printf("[MATCH] snapshot publish failed for %s: %v", matchID, err)
	}
}

// lockedRand serializes access to a *rand.Rand shared by concurrent requests
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}
