package pgstore_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/almajlis/backend/internal/database"
	"github.com/almajlis/backend/internal/game"
	"github.com/almajlis/backend/internal/migrations"
	"github.com/almajlis/backend/internal/store"
	"github.com/almajlis/backend/internal/store/pgstore"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to TEST_DATABASE_URL and applies migrations. Tests are
// skipped when it is not set.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, migrations.RunMigrations(url, "../../../migrations"))
	db, err := database.Connect(url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// seedCategory inserts a category with perValue questions at every value
func seedCategory(t *testing.T, db *sqlx.DB, name string, perValue int) string {
	t.Helper()
	catID := uuid.NewString()
	_, err := db.Exec(`INSERT INTO categories (id, name) VALUES ($1, $2)`, catID, name)
	require.NoError(t, err)
	for _, v := range game.PointValues {
		for i := 0; i < perValue; i++ {
			_, err := db.Exec(`INSERT INTO questions (id, category_id, value, text, answer) VALUES ($1, $2, $3, $4, $5)`,
				uuid.NewString(), catID, v, fmt.Sprintf("%s %d #%d", name, v, i), "answer")
			require.NoError(t, err)
		}
	}
	return catID
}

func grant(t *testing.T, st *pgstore.Store, userID string, n int) {
	t.Helper()
	require.NoError(t, st.WithTx(context.Background(), func(tx store.Tx) error {
		_, err := tx.GrantCredit(context.Background(), userID, n, "test grant")
		return err
	}))
}

func TestCreateResolveEnd(t *testing.T) {
	db := openTestDB(t)
	st := pgstore.New(db)
	ctx := context.Background()

	catID := seedCategory(t, db, "History "+uuid.NewString()[:8], 2)
	user := "pg-user-" + uuid.NewString()
	grant(t, st, user, 3)

	mgr := game.NewMatchManager(st, nil, game.Options{})
	sess := game.Session{UserID: user}
	board, err := mgr.CreateMatch(ctx, sess, game.CreateMatchRequest{
		CategoryIDs: []string{catID}, TeamAName: "Falcons", TeamBName: "Eagles",
	})
	require.NoError(t, err)
	require.Len(t, board.Columns, 1)
	require.Len(t, board.Columns[0].Tiles, 6)

	credit, err := st.GetCredit(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, credit.Remaining)

	history, err := st.CreditHistory(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, store.CreditKindDebit, history[0].Kind)

	tiles := board.Columns[0].Tiles
	res, err := mgr.Resolve(ctx, sess, board.Match.ID, tiles[0].ID, game.TeamA)
	require.NoError(t, err)
	assert.Equal(t, 200, res.Match.TeamAScore)
	assert.Equal(t, "B", res.Match.Turn)

	_, err = mgr.Resolve(ctx, sess, board.Match.ID, tiles[0].ID, game.TeamB)
	assert.ErrorIs(t, err, game.ErrAlreadyResolved)

	var last *game.Resolution
	for _, tile := range tiles[1:] {
		last, err = mgr.Resolve(ctx, sess, board.Match.ID, tile.ID, game.TeamNone)
		require.NoError(t, err)
	}
	assert.True(t, last.Ended)
	assert.Equal(t, string(game.StatusEnded), last.Match.Status)

	_, ended, err := mgr.EndMatch(ctx, sess, board.Match.ID)
	require.NoError(t, err)
	assert.False(t, ended)
}

func TestConcurrentResolveSameTile(t *testing.T) {
	db := openTestDB(t)
	st := pgstore.New(db)
	ctx := context.Background()

	catID := seedCategory(t, db, "Science "+uuid.NewString()[:8], 2)
	user := "pg-user-" + uuid.NewString()
	grant(t, st, user, 1)

	mgr := game.NewMatchManager(st, nil, game.Options{})
	sess := game.Session{UserID: user}
	board, err := mgr.CreateMatch(ctx, sess, game.CreateMatchRequest{
		CategoryIDs: []string{catID}, TeamAName: "A team", TeamBName: "B team",
	})
	require.NoError(t, err)
	tileID := board.Columns[0].Tiles[2].ID

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = game.Retry(ctx, 5, func() error {
				_, err := mgr.Resolve(ctx, sess, board.Match.ID, tileID, game.TeamA)
				return err
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, game.ErrAlreadyResolved)
	}
	assert.Equal(t, 1, wins)

	m, err := st.GetMatch(ctx, board.Match.ID)
	require.NoError(t, err)
	assert.Equal(t, 400, m.TeamAScore)
}

func TestInsufficientCreditLeavesNoRows(t *testing.T) {
	db := openTestDB(t)
	st := pgstore.New(db)
	ctx := context.Background()

	catID := seedCategory(t, db, "Geo "+uuid.NewString()[:8], 2)
	user := "pg-user-" + uuid.NewString()

	mgr := game.NewMatchManager(st, nil, game.Options{})
	_, err := mgr.CreateMatch(ctx, game.Session{UserID: user}, game.CreateMatchRequest{
		CategoryIDs: []string{catID}, TeamAName: "x", TeamBName: "y",
	})
	assert.ErrorIs(t, err, game.ErrInsufficientCredit)

	n, err := st.CountHostedMatches(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetCategoriesByIDs(t *testing.T) {
	db := openTestDB(t)
	st := pgstore.New(db)

	id := seedCategory(t, db, "Art "+uuid.NewString()[:8], 0)
	cats, err := st.GetCategories(context.Background(), []string{id, "missing"})
	require.NoError(t, err)
	assert.Len(t, cats, 1)
	assert.Contains(t, cats, id)
}

func TestConflictCodesMapToErrConflict(t *testing.T) {
	db := openTestDB(t)
	st := pgstore.New(db)

	err := st.WithTx(context.Background(), func(tx store.Tx) error {
		return &pq.Error{Code: "40001", Message: "could not serialize access"}
	})
	assert.ErrorIs(t, err, store.ErrConflict)
}
