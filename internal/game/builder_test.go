package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/almajlis/backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMatchBuildsBoard(t *testing.T) {
	m, st, _ := newTestManager(t, Options{})
	st.SeedCategory("hist", "History", 2)
	st.SetCredit("u1", 3)

	board := createMatch(t, m, "u1", "hist")

	assert.Equal(t, string(StatusActive), board.Match.Status)
	assert.Equal(t, string(TeamA), board.Match.Turn)
	assert.Zero(t, board.Match.TeamAScore)
	assert.Zero(t, board.Match.TeamBScore)
	assert.False(t, board.Match.Free)
	assert.Equal(t, 6, board.RemainingTiles)

	require.Len(t, board.Columns, 1)
	col := board.Columns[0]
	assert.Equal(t, "History", col.Name)
	assert.Equal(t, 1, col.Position)
	require.Len(t, col.Tiles, 6)
	for i, tile := range col.Tiles {
		assert.Equal(t, i+1, tile.RowIndex)
		assert.Equal(t, RowValues[i], tile.Value)
		assert.False(t, tile.Opened)
		assert.Empty(t, tile.Question, "unopened tiles hide content")
	}

	credit, err := st.GetCredit(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, credit.Remaining)

	history, err := st.CreditHistory(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, store.CreditKindDebit, history[0].Kind)
	assert.Equal(t, -1, history[0].Delta)
	assert.Equal(t, 2, history[0].BalanceAfter)
	assert.Equal(t, board.Match.ID, history[0].MatchID.String)
}

func TestCreateMatchBucketQuestionsDistinct(t *testing.T) {
	m, st, _ := newTestManager(t, Options{})
	st.SeedCategory("hist", "History", 2)
	st.SeedCategory("sci", "Science", 3)
	st.SetCredit("u1", 1)

	board := createMatch(t, m, "u1", "sci", "hist")
	require.Len(t, board.Columns, 2)
	assert.Equal(t, "sci", board.Columns[0].CategoryID)
	assert.Equal(t, "hist", board.Columns[1].CategoryID)

	tiles, err := st.ListTiles(context.Background(), board.Match.ID)
	require.NoError(t, err)
	require.Len(t, tiles, 12)
	seen := map[string]bool{}
	for _, tile := range tiles {
		assert.False(t, seen[tile.QuestionID], "question %s used twice", tile.QuestionID)
		seen[tile.QuestionID] = true
	}
}

func TestCreateMatchStockInsufficientWritesNothing(t *testing.T) {
	m, st, _ := newTestManager(t, Options{})
	st.SeedCategory("hist", "History", 2)
	st.RemoveQuestion("hist-400-1")
	st.SetCredit("u1", 3)

	_, err := m.CreateMatch(context.Background(), Session{UserID: "u1"}, CreateMatchRequest{
		CategoryIDs: []string{"hist"}, TeamAName: "A", TeamBName: "B",
	})
	var stockErr *StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "History", stockErr.CategoryName)
	assert.Equal(t, 400, stockErr.Value)

	hosted, _ := st.CountHostedMatches(context.Background(), "u1")
	assert.Zero(t, hosted)
	credit, _ := st.GetCredit(context.Background(), "u1")
	assert.Equal(t, 3, credit.Remaining)
}

func TestCreateMatchInsufficientCredit(t *testing.T) {
	m, st, _ := newTestManager(t, Options{})
	st.SeedCategory("hist", "History", 2)

	_, err := m.CreateMatch(context.Background(), Session{UserID: "u1"}, CreateMatchRequest{
		CategoryIDs: []string{"hist"}, TeamAName: "A", TeamBName: "B",
	})
	assert.ErrorIs(t, err, ErrInsufficientCredit)

	hosted, _ := st.CountHostedMatches(context.Background(), "u1")
	assert.Zero(t, hosted)
}

func TestCreateMatchFirstMatchFree(t *testing.T) {
	m, st, _ := newTestManager(t, Options{FirstMatchFree: true})
	st.SeedCategory("hist", "History", 3)

	board := createMatch(t, m, "u1", "hist")
	assert.True(t, board.Match.Free)

	tiles, err := st.ListTiles(context.Background(), board.Match.ID)
	require.NoError(t, err)
	for _, tile := range tiles {
		assert.True(t, strings.HasSuffix(tile.QuestionID, "-0") || strings.HasSuffix(tile.QuestionID, "-1"),
			"free match must use the two oldest questions, got %s", tile.QuestionID)
	}

	credit, _ := st.GetCredit(context.Background(), "u1")
	assert.Zero(t, credit.Remaining)
	history, _ := st.CreditHistory(context.Background(), "u1", 10)
	assert.Empty(t, history)

	_, err = m.CreateMatch(context.Background(), Session{UserID: "u1"}, CreateMatchRequest{
		CategoryIDs: []string{"hist"}, TeamAName: "A", TeamBName: "B",
	})
	assert.ErrorIs(t, err, ErrInsufficientCredit, "only the first match is free")
}

func TestCreateMatchRollsBackOnTileFailure(t *testing.T) {
	m, st, _ := newTestManager(t, Options{})
	st.SeedCategory("hist", "History", 2)
	st.SetCredit("u1", 2)
	boom := errors.New("disk full")
	st.InjectFault("InsertTiles", boom)

	_, err := m.CreateMatch(context.Background(), Session{UserID: "u1"}, CreateMatchRequest{
		CategoryIDs: []string{"hist"}, TeamAName: "A", TeamBName: "B",
	})
	require.ErrorIs(t, err, boom)

	hosted, _ := st.CountHostedMatches(context.Background(), "u1")
	assert.Zero(t, hosted)
	credit, _ := st.GetCredit(context.Background(), "u1")
	assert.Equal(t, 2, credit.Remaining)
	history, _ := st.CreditHistory(context.Background(), "u1", 10)
	assert.Empty(t, history)
}

func TestCreateMatchSeenFallbackNeedsConsent(t *testing.T) {
	m, st, _ := newTestManager(t, Options{})
	st.SeedCategory("hist", "History", 2)
	st.SetCredit("u1", 2)
	markSeen(t, st, "u1", "hist-200-0", "hist-600-1")

	req := CreateMatchRequest{CategoryIDs: []string{"hist"}, TeamAName: "A", TeamBName: "B"}
	_, err := m.CreateMatch(context.Background(), Session{UserID: "u1"}, req)
	var fb *SeenFallbackError
	require.True(t, errors.As(err, &fb))
	assert.ErrorIs(t, err, ErrSeenFallbackRequired)
	assert.Equal(t, []store.Bucket{{CategoryID: "hist", Value: 200}, {CategoryID: "hist", Value: 600}}, fb.Buckets)

	credit, _ := st.GetCredit(context.Background(), "u1")
	assert.Equal(t, 2, credit.Remaining, "no credit spent before consent")

	req.AllowSeen = true
	board, err := m.CreateMatch(context.Background(), Session{UserID: "u1"}, req)
	require.NoError(t, err)
	assert.Len(t, allTiles(board), 6)
	credit, _ = st.GetCredit(context.Background(), "u1")
	assert.Equal(t, 1, credit.Remaining)
}

func TestCreateMatchValidation(t *testing.T) {
	m, st, _ := newTestManager(t, Options{})
	st.SeedCategory("hist", "History", 2)
	st.SetCredit("u1", 5)
	ctx := context.Background()

	_, err := m.CreateMatch(ctx, Session{}, CreateMatchRequest{CategoryIDs: []string{"hist"}, TeamAName: "A", TeamBName: "B"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = m.CreateMatch(ctx, Session{UserID: "u1"}, CreateMatchRequest{CategoryIDs: []string{"hist"}, TeamAName: "  ", TeamBName: "B"})
	assert.ErrorIs(t, err, ErrInvalidTeamName)

	_, err = m.CreateMatch(ctx, Session{UserID: "u1"}, CreateMatchRequest{CategoryIDs: []string{"hist"}, TeamAName: strings.Repeat("x", 51), TeamBName: "B"})
	assert.ErrorIs(t, err, ErrInvalidTeamName)

	_, err = m.CreateMatch(ctx, Session{UserID: "u1"}, CreateMatchRequest{CategoryIDs: []string{"hist", "hist"}, TeamAName: "A", TeamBName: "B"})
	assert.ErrorIs(t, err, ErrInvalidCategories)

	credit, _ := st.GetCredit(ctx, "u1")
	assert.Equal(t, 5, credit.Remaining)
}

func TestCreateMatchTrimsTeamNames(t *testing.T) {
	m, st, _ := newTestManager(t, Options{})
	st.SeedCategory("hist", "History", 2)
	st.SetCredit("u1", 1)

	board, err := m.CreateMatch(context.Background(), Session{UserID: "u1"}, CreateMatchRequest{
		CategoryIDs: []string{"hist"}, TeamAName: "  Falcons ", TeamBName: "Eagles",
	})
	require.NoError(t, err)
	assert.Equal(t, "Falcons", board.Match.TeamAName)
}

func TestCreateMatchConcurrentSpendsEachCreditOnce(t *testing.T) {
	m, st, _ := newTestManager(t, Options{})
	st.SeedCategory("hist", "History", 4)
	st.SetCredit("u1", 2)

	const callers = 6
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.CreateMatch(context.Background(), Session{UserID: "u1"}, CreateMatchRequest{
				CategoryIDs: []string{"hist"}, TeamAName: "A", TeamBName: "B", AllowSeen: true,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok, refused := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientCredit):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, callers-2, refused)

	credit, _ := st.GetCredit(context.Background(), "u1")
	assert.Zero(t, credit.Remaining)
	hosted, _ := st.CountHostedMatches(context.Background(), "u1")
	assert.Equal(t, 2, hosted)
}

func TestCreateMatchConcurrentFirstMatchOnlyOneFree(t *testing.T) {
	m, st, _ := newTestManager(t, Options{FirstMatchFree: true})
	st.SeedCategory("hist", "History", 4)
	st.SetCredit("u1", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = Retry(context.Background(), 3, func() error {
				_, err := m.CreateMatch(context.Background(), Session{UserID: "u1"}, CreateMatchRequest{
					CategoryIDs: []string{"hist"}, TeamAName: "A", TeamBName: "B", AllowSeen: true,
				})
				return err
			})
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	matches, err := st.ListMatchesByHost(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	free := 0
	for _, mt := range matches {
		if mt.Free {
			free++
		}
	}
	assert.Equal(t, 1, free)
	credit, _ := st.GetCredit(context.Background(), "u1")
	assert.Zero(t, credit.Remaining)
}

func TestHistoryScenarioFirstMatchKeepsBalance(t *testing.T) {
	m, st, _ := newTestManager(t, Options{FirstMatchFree: true})
	st.SeedCategory("hist", "History", 2)
	st.SetCredit("u1", 3)

	board := createMatch(t, m, "u1", "hist")
	credit, _ := st.GetCredit(context.Background(), "u1")
	assert.Equal(t, 3, credit.Remaining)

	res, err := m.Resolve(context.Background(), Session{UserID: "u1"}, board.Match.ID, board.Columns[0].Tiles[0].ID, TeamA)
	require.NoError(t, err)
	assert.Equal(t, 200, res.Match.TeamAScore)
	assert.Equal(t, string(TeamB), res.Match.Turn)

	// The resolved 200 question is now seen; with two per value the second
	// board needs consent.
	_, err = m.CreateMatch(context.Background(), Session{UserID: "u1"}, CreateMatchRequest{
		CategoryIDs: []string{"hist"}, TeamAName: "A", TeamBName: "B", AllowSeen: true,
	})
	require.NoError(t, err)
	credit, _ = st.GetCredit(context.Background(), "u1")
	assert.Equal(t, 2, credit.Remaining)
}
