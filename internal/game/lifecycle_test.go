package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndMatchIdempotent(t *testing.T) {
	now := fixedNow
	m, st, n := newTestManager(t, Options{Now: func() time.Time { return now }})
	st.SeedCategory("hist", "History", 2)
	st.SetCredit("host", 1)
	board := createMatch(t, m, "host", "hist")
	sess := Session{UserID: "host"}

	view, ended, err := m.EndMatch(context.Background(), sess, board.Match.ID)
	require.NoError(t, err)
	assert.True(t, ended)
	assert.Equal(t, string(StatusEnded), view.Status)
	require.NotNil(t, view.EndedAt)
	assert.Equal(t, fixedNow, *view.EndedAt)
	require.NotNil(t, n.last())
	published := len(n.boards)

	now = now.Add(time.Hour)
	view, ended, err = m.EndMatch(context.Background(), sess, board.Match.ID)
	require.NoError(t, err)
	assert.False(t, ended)
	assert.Equal(t, fixedNow, *view.EndedAt, "first end time is kept")
	assert.Len(t, n.boards, published, "no snapshot for a no-op end")
}

func TestEndMatchConcurrentOneWins(t *testing.T) {
	m, st, _ := newTestManager(t, Options{})
	st.SeedCategory("hist", "History", 2)
	st.SetCredit("host", 1)
	board := createMatch(t, m, "host", "hist")

	const callers = 5
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ended, err := m.EndMatch(context.Background(), Session{UserID: "host"}, board.Match.ID)
			assert.NoError(t, err)
			if ended {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestEndMatchAuthorization(t *testing.T) {
	m, st, _ := newTestManager(t, Options{})
	st.SeedCategory("hist", "History", 2)
	st.SetCredit("host", 1)
	board := createMatch(t, m, "host", "hist")

	_, _, err := m.EndMatch(context.Background(), Session{UserID: "guest"}, board.Match.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = m.EndMatch(context.Background(), Session{UserID: "host"}, "missing")
	assert.ErrorIs(t, err, ErrMatchNotFound)

	_, ended, err := m.EndMatch(context.Background(), Session{UserID: "ops", Role: RoleAdmin}, board.Match.ID)
	require.NoError(t, err)
	assert.True(t, ended)
}

func TestEndStaleMatches(t *testing.T) {
	now := fixedNow
	m, st, _ := newTestManager(t, Options{Now: func() time.Time { return now }})
	st.SeedCategory("hist", "History", 4)
	st.SetCredit("host", 3)

	old := createMatch(t, m, "host", "hist")
	now = now.Add(11 * time.Hour)
	fresh := createMatch(t, m, "host", "hist")
	now = now.Add(2 * time.Hour)

	n, err := m.EndStaleMatches(context.Background(), 12*time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	b, err := m.GetBoard(context.Background(), old.Match.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusEnded), b.Match.Status)
	b, err = m.GetBoard(context.Background(), fresh.Match.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusActive), b.Match.Status)

	n, err = m.EndStaleMatches(context.Background(), 12*time.Hour, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResults(t *testing.T) {
	m, st, _ := newTestManager(t, Options{})
	st.SeedCategory("hist", "History", 2)
	st.SetCredit("host", 1)
	board := createMatch(t, m, "host", "hist")
	sess := Session{UserID: "host"}
	tiles := board.Columns[0].Tiles

	r, err := m.Results(context.Background(), board.Match.ID)
	require.NoError(t, err)
	assert.Equal(t, WinnerTie, r.Winner)
	assert.Zero(t, r.Diff)

	_, err = m.Resolve(context.Background(), sess, board.Match.ID, tiles[5].ID, TeamB) // 600
	require.NoError(t, err)
	_, err = m.Resolve(context.Background(), sess, board.Match.ID, tiles[0].ID, TeamA) // 200
	require.NoError(t, err)

	r, err = m.Results(context.Background(), board.Match.ID)
	require.NoError(t, err)
	assert.Equal(t, WinnerB, r.Winner)
	assert.Equal(t, 400, r.Diff)
	assert.Equal(t, string(StatusActive), r.Match.Status, "reading results does not end the match")
	require.Len(t, r.Columns, 1)
	assert.True(t, r.Columns[0].Tiles[5].Opened)
	assert.Equal(t, string(TeamB), r.Columns[0].Tiles[5].AssignedTeam)
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, func() error {
		calls++
		if calls < 3 {
			return ErrTransactionConflict
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Retry(context.Background(), 3, func() error {
		calls++
		return ErrTransactionConflict
	})
	assert.ErrorIs(t, err, ErrTransactionConflict)
	assert.Equal(t, 3, calls)

	calls = 0
	boom := errors.New("boom")
	err = Retry(context.Background(), 3, func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "non-conflict errors are not retried")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Retry(ctx, 3, func() error { return ErrTransactionConflict })
	assert.ErrorIs(t, err, context.Canceled)
}
