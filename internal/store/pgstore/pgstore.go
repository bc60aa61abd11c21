// Package pgstore implements store.Store on PostgreSQL with sqlx.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/almajlis/backend/internal/credits"
	"github.com/almajlis/backend/internal/models"
	"github.com/almajlis/backend/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

const (
	questionCols = `id, category_id, value, text, answer, image_url, answer_image_url, is_active, created_at`
	matchCols    = `id, host_user_id, team_a_name, team_b_name, team_a_score, team_b_score, turn, status, free, started_at, ended_at, updated_at, version`
	tileCols     = `id, match_id, category_position, row_index, value, question_id, question_text, answer_text, image_url, answer_image_url, opened, assigned_team, correct, opened_at`
)

// Postgres error codes treated as transient conflicts
var conflictCodes = map[pq.ErrorCode]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// Store is the Postgres-backed store.Store
type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

// New wraps an open connection pool
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the pool for collaborators outside the engine (admin, health)
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// mapErr turns retryable Postgres failures into store.ErrConflict
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && conflictCodes[pqErr.Code] {
		return fmt.Errorf("%w: %s", store.ErrConflict, pqErr.Message)
	}
	return err
}

// ---- QuestionBank ----

func (s *Store) CountActiveQuestions(ctx context.Context, b store.Bucket) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM questions WHERE category_id=$1 AND value=$2 AND is_active`, b.CategoryID, b.Value)
	return n, err
}

func (s *Store) OldestQuestions(ctx context.Context, b store.Bucket, limit int) ([]models.Question, error) {
	var qs []models.Question
	err := s.db.SelectContext(ctx, &qs, `SELECT `+questionCols+` FROM questions
		WHERE category_id=$1 AND value=$2 AND is_active
		ORDER BY created_at, id LIMIT $3`, b.CategoryID, b.Value, limit)
	return qs, err
}

func (s *Store) UnseenQuestions(ctx context.Context, userID string, b store.Bucket, limit int) ([]models.Question, error) {
	var qs []models.Question
	err := s.db.SelectContext(ctx, &qs, `SELECT `+questionCols+` FROM questions q
		WHERE q.category_id=$1 AND q.value=$2 AND q.is_active
		AND NOT EXISTS (SELECT 1 FROM user_seen_questions s WHERE s.user_id=$3 AND s.question_id=q.id)
		ORDER BY q.id LIMIT $4`, b.CategoryID, b.Value, userID, limit)
	return qs, err
}

func (s *Store) SeenQuestions(ctx context.Context, userID string, b store.Bucket, limit int) ([]models.Question, error) {
	var qs []models.Question
	err := s.db.SelectContext(ctx, &qs, `SELECT `+questionCols+` FROM questions q
		WHERE q.category_id=$1 AND q.value=$2 AND q.is_active
		AND EXISTS (SELECT 1 FROM user_seen_questions s WHERE s.user_id=$3 AND s.question_id=q.id)
		ORDER BY q.id LIMIT $4`, b.CategoryID, b.Value, userID, limit)
	return qs, err
}

// ---- CategoryCatalog ----

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	err := s.db.SelectContext(ctx, &cats, `SELECT id, name, group_tag, image_url, created_at FROM categories ORDER BY name, id`)
	return cats, err
}

func (s *Store) GetCategories(ctx context.Context, ids []string) (map[string]models.Category, error) {
	out := make(map[string]models.Category, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var cats []models.Category
	if err := s.db.SelectContext(ctx, &cats, `SELECT id, name, group_tag, image_url, created_at FROM categories WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, err
	}
	for _, c := range cats {
		out[c.ID] = c
	}
	return out, nil
}

// ---- reads ----

func (s *Store) CountHostedMatches(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM matches WHERE host_user_id=$1`, userID)
	return n, err
}

func (s *Store) GetCredit(ctx context.Context, userID string) (models.UserCredit, error) {
	return credits.Balance(ctx, s.db, userID)
}

func (s *Store) CreditHistory(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	return credits.History(ctx, s.db, userID, limit)
}

func (s *Store) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	var m models.Match
	err := s.db.GetContext(ctx, &m, `SELECT `+matchCols+` FROM matches WHERE id=$1`, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListMatchesByHost(ctx context.Context, userID string, limit int) ([]models.Match, error) {
	if limit <= 0 {
		limit = 50
	}
	var ms []models.Match
	err := s.db.SelectContext(ctx, &ms, `SELECT `+matchCols+` FROM matches WHERE host_user_id=$1 ORDER BY started_at DESC LIMIT $2`, userID, limit)
	return ms, err
}

func (s *Store) ListStaleMatches(ctx context.Context, startedBefore time.Time, limit int) ([]models.Match, error) {
	if limit <= 0 {
		limit = 100
	}
	var ms []models.Match
	err := s.db.SelectContext(ctx, &ms, `SELECT `+matchCols+` FROM matches WHERE status <> 'ended' AND started_at < $1 ORDER BY started_at LIMIT $2`, startedBefore, limit)
	return ms, err
}

func (s *Store) ListBoardCategories(ctx context.Context, matchID string) ([]models.BoardCategory, error) {
	var cats []models.BoardCategory
	err := s.db.SelectContext(ctx, &cats, `SELECT match_id, position, category_id FROM match_categories WHERE match_id=$1 ORDER BY position`, matchID)
	return cats, err
}

func (s *Store) ListTiles(ctx context.Context, matchID string) ([]models.Tile, error) {
	var tiles []models.Tile
	err := s.db.SelectContext(ctx, &tiles, `SELECT `+tileCols+` FROM match_tiles WHERE match_id=$1 ORDER BY category_position, row_index`, matchID)
	return tiles, err
}

func (s *Store) GetTile(ctx context.Context, matchID, tileID string) (*models.Tile, error) {
	var t models.Tile
	err := s.db.GetContext(ctx, &t, `SELECT `+tileCols+` FROM match_tiles WHERE id=$1 AND match_id=$2`, tileID, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ---- transactions ----

// WithTx runs fn inside a READ COMMITTED transaction. Row locks and
// conditional updates provide the isolation the engine relies on.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Printf("[STORE] rollback failed: %v", rbErr)
			}
		}
	}()

	if err = fn(&pgTx{tx: tx}); err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit())
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) LockCredit(ctx context.Context, userID string) (models.UserCredit, error) {
	return credits.Lock(ctx, t.tx, userID)
}

func (t *pgTx) DebitCredit(ctx context.Context, userID, matchID, description string) (int, error) {
	return credits.Debit(ctx, t.tx, userID, matchID, description)
}

func (t *pgTx) GrantCredit(ctx context.Context, userID string, amount int, description string) (int, error) {
	return credits.Grant(ctx, t.tx, userID, amount, description)
}

func (t *pgTx) CountHostedMatches(ctx context.Context, userID string) (int, error) {
	var n int
	err := t.tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM matches WHERE host_user_id=$1`, userID)
	return n, err
}

func (t *pgTx) InsertMatch(ctx context.Context, m *models.Match) error {
	_, err := t.tx.NamedExecContext(ctx, `INSERT INTO matches (`+matchCols+`) VALUES
		(:id, :host_user_id, :team_a_name, :team_b_name, :team_a_score, :team_b_score, :turn, :status, :free, :started_at, :ended_at, :updated_at, :version)`, m)
	return err
}

func (t *pgTx) InsertBoardCategories(ctx context.Context, cats []models.BoardCategory) error {
	if len(cats) == 0 {
		return nil
	}
	_, err := t.tx.NamedExecContext(ctx, `INSERT INTO match_categories (match_id, position, category_id) VALUES (:match_id, :position, :category_id)`, cats)
	return err
}

func (t *pgTx) InsertTiles(ctx context.Context, tiles []models.Tile) error {
	if len(tiles) == 0 {
		return nil
	}
	_, err := t.tx.NamedExecContext(ctx, `INSERT INTO match_tiles (`+tileCols+`) VALUES
		(:id, :match_id, :category_position, :row_index, :value, :question_id, :question_text, :answer_text, :image_url, :answer_image_url, :opened, :assigned_team, :correct, :opened_at)`, tiles)
	return err
}

func (t *pgTx) OpenTile(ctx context.Context, matchID, tileID, team string, correct bool, at time.Time) (*models.Tile, bool, error) {
	var tile models.Tile
	err := t.tx.GetContext(ctx, &tile, `UPDATE match_tiles
		SET opened=TRUE, assigned_team=$3, correct=$4, opened_at=$5
		WHERE id=$1 AND match_id=$2 AND opened=FALSE
		RETURNING `+tileCols, tileID, matchID, team, correct, at)
	if err == nil {
		return &tile, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	var exists bool
	if err := t.tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM match_tiles WHERE id=$1 AND match_id=$2)`, tileID, matchID); err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, store.ErrNotFound
	}
	return nil, false, nil
}

func (t *pgTx) ApplyResolution(ctx context.Context, matchID string, deltaA, deltaB int, at time.Time) (*models.Match, error) {
	var m models.Match
	err := t.tx.GetContext(ctx, &m, `UPDATE matches
		SET team_a_score = team_a_score + $2,
			team_b_score = team_b_score + $3,
			turn = CASE WHEN turn = 'A' THEN 'B' ELSE 'A' END,
			updated_at = $4,
			version = version + 1
		WHERE id=$1 AND status='active'
		RETURNING `+matchCols, matchID, deltaA, deltaB, at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *pgTx) CountUnopenedTiles(ctx context.Context, matchID string) (int, error) {
	var n int
	err := t.tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM match_tiles WHERE match_id=$1 AND NOT opened`, matchID)
	return n, err
}

func (t *pgTx) EndMatch(ctx context.Context, matchID string, at time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `UPDATE matches SET status='ended', ended_at=$2, updated_at=$2, version=version+1
		WHERE id=$1 AND status IN ('pending', 'active')`, matchID, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := t.tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM matches WHERE id=$1)`, matchID); err != nil {
		return false, err
	}
	if !exists {
		return false, store.ErrNotFound
	}
	return false, nil
}

func (t *pgTx) MarkSeen(ctx context.Context, userID, questionID string, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO user_seen_questions (user_id, question_id, seen_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, question_id) DO NOTHING`, userID, questionID, at)
	return err
}
