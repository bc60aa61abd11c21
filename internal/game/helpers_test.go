package game

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/almajlis/backend/internal/store"
	"github.com/almajlis/backend/internal/store/memstore"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	boards []*Board
}

func (r *recordingNotifier) Publish(ctx context.Context, b *Board) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boards = append(r.boards, b)
	return nil
}

func (r *recordingNotifier) last() *Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.boards) == 0 {
		return nil
	}
	return r.boards[len(r.boards)-1]
}

func newTestManager(t *testing.T, opts Options) (*MatchManager, *memstore.Store, *recordingNotifier) {
	t.Helper()
	st := memstore.New()
	n := &recordingNotifier{}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(1, 2))
	}
	return NewMatchManager(st, n, opts), st, n
}

func createMatch(t *testing.T, m *MatchManager, userID string, cats ...string) *Board {
	t.Helper()
	board, err := m.CreateMatch(context.Background(), Session{UserID: userID}, CreateMatchRequest{
		CategoryIDs: cats,
		TeamAName:   "Falcons",
		TeamBName:   "Eagles",
	})
	require.NoError(t, err)
	return board
}

func markSeen(t *testing.T, st *memstore.Store, userID string, questionIDs ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		for _, id := range questionIDs {
			if err := tx.MarkSeen(ctx, userID, id, fixedNow); err != nil {
				return err
			}
		}
		return nil
	}))
}

func allTiles(b *Board) []TileView {
	var out []TileView
	for _, col := range b.Columns {
		out = append(out, col.Tiles...)
	}
	return out
}
