// Package memstore is an in-process store.Store. Transactions are serialized
// by a single lock and applied copy-on-write, so a failing transaction leaves
// no trace. Used by tests and by STORE_DRIVER=memory.
package memstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/almajlis/backend/internal/models"
	"github.com/almajlis/backend/internal/store"
	"github.com/google/uuid"
)

// Store implements store.Store in memory
type Store struct {
	mu         sync.RWMutex
	categories map[string]models.Category
	questions  map[string]models.Question
	st         state
	faults     map[string]error
}

type state struct {
	credits   map[string]models.UserCredit
	ledger    []models.CreditTransaction
	matches   map[string]models.Match
	boardCats map[string][]models.BoardCategory
	tiles     map[string][]models.Tile
	seen      map[string]map[string]time.Time
}

// New returns an empty store
func New() *Store {
	return &Store{
		categories: make(map[string]models.Category),
		questions:  make(map[string]models.Question),
		faults:     make(map[string]error),
		st: state{
			credits:   make(map[string]models.UserCredit),
			matches:   make(map[string]models.Match),
			boardCats: make(map[string][]models.BoardCategory),
			tiles:     make(map[string][]models.Tile),
			seen:      make(map[string]map[string]time.Time),
		},
	}
}

var _ store.Store = (*Store)(nil)

func (st state) clone() state {
	c := state{
		credits:   make(map[string]models.UserCredit, len(st.credits)),
		ledger:    append([]models.CreditTransaction(nil), st.ledger...),
		matches:   make(map[string]models.Match, len(st.matches)),
		boardCats: make(map[string][]models.BoardCategory, len(st.boardCats)),
		tiles:     make(map[string][]models.Tile, len(st.tiles)),
		seen:      make(map[string]map[string]time.Time, len(st.seen)),
	}
	for k, v := range st.credits {
		c.credits[k] = v
	}
	for k, v := range st.matches {
		c.matches[k] = v
	}
	for k, v := range st.boardCats {
		c.boardCats[k] = append([]models.BoardCategory(nil), v...)
	}
	for k, v := range st.tiles {
		c.tiles[k] = append([]models.Tile(nil), v...)
	}
	for u, set := range st.seen {
		cp := make(map[string]time.Time, len(set))
		for q, t := range set {
			cp[q] = t
		}
		c.seen[u] = cp
	}
	return c
}

// AddCategory puts a category in the catalog
func (s *Store) AddCategory(c models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.categories[c.ID] = c
}

// RemoveCategory drops a category from the catalog
func (s *Store) RemoveCategory(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.categories, id)
}

// AddQuestion puts a question in the bank
func (s *Store) AddQuestion(q models.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	s.questions[q.ID] = q
}

// SetCredit overwrites a user's balance without a ledger row
func (s *Store) SetCredit(userID string, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.credits[userID] = models.UserCredit{UserID: userID, Remaining: remaining, UpdatedAt: time.Now().UTC()}
}

// InjectFault makes the next transactional call of op ("InsertTiles",
// "DebitCredit", ...) fail with err.
func (s *Store) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// Seed is the JSON shape accepted by LoadSeed
type Seed struct {
	Categories []models.Category `json:"categories"`
	Questions  []models.Question `json:"questions"`
	Credits    map[string]int    `json:"credits"`
}

// LoadSeed fills the catalog, bank and balances from JSON
func (s *Store) LoadSeed(r io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	for _, c := range seed.Categories {
		s.AddCategory(c)
	}
	for _, q := range seed.Questions {
		s.AddQuestion(q)
	}
	for u, n := range seed.Credits {
		s.SetCredit(u, n)
	}
	return nil
}

// ---- QuestionBank ----

func (s *Store) bucket(b store.Bucket, keep func(q models.Question) bool) []models.Question {
	var out []models.Question
	for _, q := range s.questions {
		if q.IsActive && q.CategoryID == b.CategoryID && q.Value == b.Value && keep(q) {
			out = append(out, q)
		}
	}
	return out
}

func capped(qs []models.Question, limit int) []models.Question {
	if limit > 0 && len(qs) > limit {
		return qs[:limit]
	}
	return qs
}

func byID(qs []models.Question) {
	sort.Slice(qs, func(i, j int) bool { return qs[i].ID < qs[j].ID })
}

func (s *Store) CountActiveQuestions(ctx context.Context, b store.Bucket) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bucket(b, func(models.Question) bool { return true })), nil
}

func (s *Store) OldestQuestions(ctx context.Context, b store.Bucket, limit int) ([]models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qs := s.bucket(b, func(models.Question) bool { return true })
	sort.Slice(qs, func(i, j int) bool {
		if !qs[i].CreatedAt.Equal(qs[j].CreatedAt) {
			return qs[i].CreatedAt.Before(qs[j].CreatedAt)
		}
		return qs[i].ID < qs[j].ID
	})
	return capped(qs, limit), nil
}

func (s *Store) UnseenQuestions(ctx context.Context, userID string, b store.Bucket, limit int) ([]models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := s.st.seen[userID]
	qs := s.bucket(b, func(q models.Question) bool { _, ok := seen[q.ID]; return !ok })
	byID(qs)
	return capped(qs, limit), nil
}

func (s *Store) SeenQuestions(ctx context.Context, userID string, b store.Bucket, limit int) ([]models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := s.st.seen[userID]
	qs := s.bucket(b, func(q models.Question) bool { _, ok := seen[q.ID]; return ok })
	byID(qs)
	return capped(qs, limit), nil
}

// ---- CategoryCatalog ----

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetCategories(ctx context.Context, ids []string) (map[string]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.Category, len(ids))
	for _, id := range ids {
		if c, ok := s.categories[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

// ---- reads ----

func (s *Store) CountHostedMatches(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.hosted(userID), nil
}

func (st state) hosted(userID string) int {
	n := 0
	for _, m := range st.matches {
		if m.HostUserID == userID {
			n++
		}
	}
	return n
}

func (s *Store) GetCredit(ctx context.Context, userID string) (models.UserCredit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.st.credits[userID]; ok {
		return c, nil
	}
	return models.UserCredit{UserID: userID}, nil
}

func (s *Store) CreditHistory(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.CreditTransaction
	for i := len(s.st.ledger) - 1; i >= 0; i-- {
		if s.st.ledger[i].UserID == userID {
			out = append(out, s.st.ledger[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.st.matches[matchID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (s *Store) ListMatchesByHost(ctx context.Context, userID string, limit int) ([]models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Match
	for _, m := range s.st.matches {
		if m.HostUserID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListStaleMatches(ctx context.Context, startedBefore time.Time, limit int) ([]models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Match
	for _, m := range s.st.matches {
		if m.Status != "ended" && m.StartedAt.Before(startedBefore) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListBoardCategories(ctx context.Context, matchID string) ([]models.BoardCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.BoardCategory(nil), s.st.boardCats[matchID]...), nil
}

func (s *Store) ListTiles(ctx context.Context, matchID string) ([]models.Tile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Tile(nil), s.st.tiles[matchID]...), nil
}

func (s *Store) GetTile(ctx context.Context, matchID, tileID string) (*models.Tile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.st.tiles[matchID] {
		if t.ID == tileID {
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

// SeenCount returns the size of a user's seen-question index
func (s *Store) SeenCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.seen[userID])
}

// ---- transactions ----

// WithTx runs fn against a private copy of the mutable state and publishes
// the copy only if fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&memTx{s: s, st: &work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

type memTx struct {
	s  *Store
	st *state
}

// fault pops an injected failure for op. Caller holds s.mu.
func (tx *memTx) fault(op string) error {
	if err, ok := tx.s.faults[op]; ok {
		delete(tx.s.faults, op)
		return err
	}
	return nil
}

func (tx *memTx) LockCredit(ctx context.Context, userID string) (models.UserCredit, error) {
	if err := tx.fault("LockCredit"); err != nil {
		return models.UserCredit{}, err
	}
	c, ok := tx.st.credits[userID]
	if !ok {
		c = models.UserCredit{UserID: userID, UpdatedAt: time.Now().UTC()}
		tx.st.credits[userID] = c
	}
	return c, nil
}

func (tx *memTx) DebitCredit(ctx context.Context, userID, matchID, description string) (int, error) {
	if err := tx.fault("DebitCredit"); err != nil {
		return 0, err
	}
	c := tx.st.credits[userID]
	if c.Remaining < 1 {
		return c.Remaining, store.ErrInsufficientBalance
	}
	c.UserID = userID
	c.Remaining--
	c.UpdatedAt = time.Now().UTC()
	tx.st.credits[userID] = c
	tx.st.ledger = append(tx.st.ledger, models.CreditTransaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Delta:        -1,
		BalanceAfter: c.Remaining,
		Kind:         store.CreditKindDebit,
		MatchID:      sql.NullString{String: matchID, Valid: matchID != ""},
		Description:  description,
		CreatedAt:    c.UpdatedAt,
	})
	return c.Remaining, nil
}

func (tx *memTx) GrantCredit(ctx context.Context, userID string, amount int, description string) (int, error) {
	if err := tx.fault("GrantCredit"); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	c := tx.st.credits[userID]
	c.UserID = userID
	c.Remaining += amount
	c.UpdatedAt = time.Now().UTC()
	tx.st.credits[userID] = c
	tx.st.ledger = append(tx.st.ledger, models.CreditTransaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Delta:        amount,
		BalanceAfter: c.Remaining,
		Kind:         store.CreditKindGrant,
		Description:  description,
		CreatedAt:    c.UpdatedAt,
	})
	return c.Remaining, nil
}

func (tx *memTx) CountHostedMatches(ctx context.Context, userID string) (int, error) {
	return tx.st.hosted(userID), nil
}

func (tx *memTx) InsertMatch(ctx context.Context, m *models.Match) error {
	if err := tx.fault("InsertMatch"); err != nil {
		return err
	}
	if _, exists := tx.st.matches[m.ID]; exists {
		return fmt.Errorf("duplicate match id %s", m.ID)
	}
	tx.st.matches[m.ID] = *m
	return nil
}

func (tx *memTx) InsertBoardCategories(ctx context.Context, cats []models.BoardCategory) error {
	if err := tx.fault("InsertBoardCategories"); err != nil {
		return err
	}
	for _, c := range cats {
		tx.st.boardCats[c.MatchID] = append(tx.st.boardCats[c.MatchID], c)
	}
	return nil
}

func (tx *memTx) InsertTiles(ctx context.Context, tiles []models.Tile) error {
	if err := tx.fault("InsertTiles"); err != nil {
		return err
	}
	for _, t := range tiles {
		for _, existing := range tx.st.tiles[t.MatchID] {
			if existing.CategoryPosition == t.CategoryPosition && existing.RowIndex == t.RowIndex {
				return fmt.Errorf("duplicate tile %d/%d in match %s", t.CategoryPosition, t.RowIndex, t.MatchID)
			}
		}
		tx.st.tiles[t.MatchID] = append(tx.st.tiles[t.MatchID], t)
	}
	return nil
}

func (tx *memTx) OpenTile(ctx context.Context, matchID, tileID, team string, correct bool, at time.Time) (*models.Tile, bool, error) {
	if err := tx.fault("OpenTile"); err != nil {
		return nil, false, err
	}
	tiles := tx.st.tiles[matchID]
	for i := range tiles {
		if tiles[i].ID != tileID {
			continue
		}
		if tiles[i].Opened {
			return nil, false, nil
		}
		tiles[i].Opened = true
		tiles[i].AssignedTeam = sql.NullString{String: team, Valid: true}
		tiles[i].Correct = sql.NullBool{Bool: correct, Valid: true}
		tiles[i].OpenedAt = sql.NullTime{Time: at, Valid: true}
		t := tiles[i]
		return &t, true, nil
	}
	return nil, false, store.ErrNotFound
}

func (tx *memTx) ApplyResolution(ctx context.Context, matchID string, deltaA, deltaB int, at time.Time) (*models.Match, error) {
	if err := tx.fault("ApplyResolution"); err != nil {
		return nil, err
	}
	m, ok := tx.st.matches[matchID]
	if !ok || m.Status != "active" {
		return nil, store.ErrNotFound
	}
	m.TeamAScore += deltaA
	m.TeamBScore += deltaB
	if m.Turn == "A" {
		m.Turn = "B"
	} else {
		m.Turn = "A"
	}
	m.UpdatedAt = at
	m.Version++
	tx.st.matches[matchID] = m
	return &m, nil
}

func (tx *memTx) CountUnopenedTiles(ctx context.Context, matchID string) (int, error) {
	n := 0
	for _, t := range tx.st.tiles[matchID] {
		if !t.Opened {
			n++
		}
	}
	return n, nil
}

func (tx *memTx) EndMatch(ctx context.Context, matchID string, at time.Time) (bool, error) {
	if err := tx.fault("EndMatch"); err != nil {
		return false, err
	}
	m, ok := tx.st.matches[matchID]
	if !ok {
		return false, store.ErrNotFound
	}
	if m.Status == "ended" {
		return false, nil
	}
	m.Status = "ended"
	m.EndedAt = sql.NullTime{Time: at, Valid: true}
	m.UpdatedAt = at
	m.Version++
	tx.st.matches[matchID] = m
	return true, nil
}

func (tx *memTx) MarkSeen(ctx context.Context, userID, questionID string, at time.Time) error {
	set, ok := tx.st.seen[userID]
	if !ok {
		set = make(map[string]time.Time)
		tx.st.seen[userID] = set
	}
	if _, exists := set[questionID]; !exists {
		set[questionID] = at
	}
	return nil
}
