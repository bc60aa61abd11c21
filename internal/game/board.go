package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/almajlis/backend/internal/models"
	"github.com/almajlis/backend/internal/store"
	log "github.com/sirupsen/logrus"
)

// deletedCategoryName labels a board column whose category left the catalog
const deletedCategoryName = "(deleted)"

// MatchView is the client-facing shape of a match
type MatchView struct {
	ID         string     `json:"id"`
	HostUserID string     `json:"host_user_id"`
	TeamAName  string     `json:"team_a_name"`
	TeamBName  string     `json:"team_b_name"`
	TeamAScore int        `json:"team_a_score"`
	TeamBScore int        `json:"team_b_score"`
	Turn       string     `json:"turn"`
	Status     string     `json:"status"`
	Free       bool       `json:"free"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	// Version increases with every committed change to the match
	Version int64 `json:"version"`
}

// TileView is a tile as shown on the board. Question content is only filled
// in for opened tiles and for Reveal.
type TileView struct {
	ID               string `json:"id"`
	CategoryPosition int    `json:"category_position"`
	RowIndex         int    `json:"row_index"`
	Value            int    `json:"value"`
	Opened           bool   `json:"opened"`
	AssignedTeam     string `json:"assigned_team,omitempty"`
	Correct          *bool  `json:"correct,omitempty"`
	Question         string `json:"question,omitempty"`
	Answer           string `json:"answer,omitempty"`
	ImageURL         string `json:"image_url,omitempty"`
	AnswerImageURL   string `json:"answer_image_url,omitempty"`
}

// Column is one board category with its six tiles ordered by row
type Column struct {
	Position   int        `json:"position"`
	CategoryID string     `json:"category_id"`
	Name       string     `json:"name"`
	ImageURL   string     `json:"image_url,omitempty"`
	Tiles      []TileView `json:"tiles"`
}

// Board is a full snapshot of a match
type Board struct {
	Match          MatchView `json:"match"`
	Columns        []Column  `json:"columns"`
	RemainingTiles int       `json:"remaining_tiles"`
}

// RevealedTile is the content of one tile for display
type RevealedTile struct {
	MatchID      string   `json:"match_id"`
	CategoryName string   `json:"category_name"`
	Turn         string   `json:"turn"`
	Tile         TileView `json:"tile"`
}

// Resolution is the outcome of a successful Resolve
type Resolution struct {
	Tile  TileView  `json:"tile"`
	Match MatchView `json:"match"`
	Ended bool      `json:"ended"`
}

func newMatchView(m *models.Match) MatchView {
	v := MatchView{
		ID:         m.ID,
		HostUserID: m.HostUserID,
		TeamAName:  m.TeamAName,
		TeamBName:  m.TeamBName,
		TeamAScore: m.TeamAScore,
		TeamBScore: m.TeamBScore,
		Turn:       m.Turn,
		Status:     m.Status,
		Free:       m.Free,
		StartedAt:  m.StartedAt,
		Version:    m.Version,
	}
	if m.EndedAt.Valid {
		t := m.EndedAt.Time
		v.EndedAt = &t
	}
	return v
}

func newTileView(t *models.Tile, withContent bool) TileView {
	v := TileView{
		ID:               t.ID,
		CategoryPosition: t.CategoryPosition,
		RowIndex:         t.RowIndex,
		Value:            t.Value,
		Opened:           t.Opened,
	}
	if t.AssignedTeam.Valid {
		v.AssignedTeam = t.AssignedTeam.String
	}
	if t.Correct.Valid {
		c := t.Correct.Bool
		v.Correct = &c
	}
	if withContent || t.Opened {
		v.Question = t.QuestionText
		v.Answer = t.AnswerText
		v.ImageURL = t.ImageURL
		v.AnswerImageURL = t.AnswerImageURL
	}
	return v
}

// GetBoard loads a full snapshot: match, ordered columns with category names
// and tiles ordered by row.
func (m *MatchManager) GetBoard(ctx context.Context, matchID string) (*Board, error) {
	match, err := m.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	cats, err := m.store.ListBoardCategories(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("list board categories: %w", err)
	}
	tiles, err := m.store.ListTiles(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("list tiles: %w", err)
	}

	ids := make([]string, 0, len(cats))
	for _, c := range cats {
		ids = append(ids, c.CategoryID)
	}
	catalog, err := m.store.GetCategories(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	sort.Slice(cats, func(i, j int) bool { return cats[i].Position < cats[j].Position })
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].CategoryPosition != tiles[j].CategoryPosition {
			return tiles[i].CategoryPosition < tiles[j].CategoryPosition
		}
		return tiles[i].RowIndex < tiles[j].RowIndex
	})

	board := &Board{Match: newMatchView(match), Columns: make([]Column, 0, len(cats))}
	byPos := make(map[int]int, len(cats))
	for _, c := range cats {
		col := Column{Position: c.Position, CategoryID: c.CategoryID, Name: deletedCategoryName}
		if info, ok := catalog[c.CategoryID]; ok {
			col.Name = info.Name
			col.ImageURL = info.ImageURL
		}
		byPos[c.Position] = len(board.Columns)
		board.Columns = append(board.Columns, col)
	}
	for i := range tiles {
		idx, ok := byPos[tiles[i].CategoryPosition]
		if !ok {
			continue
		}
		board.Columns[idx].Tiles = append(board.Columns[idx].Tiles, newTileView(&tiles[i], false))
		if !tiles[i].Opened {
			board.RemainingTiles++
		}
	}
	return board, nil
}

// Reveal returns the tile's question content. It never changes state.
func (m *MatchManager) Reveal(ctx context.Context, sess Session, matchID, tileID string) (*RevealedTile, error) {
	if err := sess.validate(); err != nil {
		return nil, err
	}
	match, err := m.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	tile, err := m.store.GetTile(ctx, matchID, tileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTileNotFound
		}
		return nil, fmt.Errorf("load tile: %w", err)
	}

	name := deletedCategoryName
	cats, err := m.store.ListBoardCategories(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("list board categories: %w", err)
	}
	for _, c := range cats {
		if c.Position != tile.CategoryPosition {
			continue
		}
		if info, err := m.store.GetCategories(ctx, []string{c.CategoryID}); err == nil {
			if ci, ok := info[c.CategoryID]; ok {
				name = ci.Name
			}
		}
		break
	}

	return &RevealedTile{
		MatchID:      matchID,
		CategoryName: name,
		Turn:         match.Turn,
		Tile:         newTileView(tile, true),
	}, nil
}

// Resolve opens a tile for team A, team B or nobody. The write only lands if
// the tile is still unopened; otherwise ErrAlreadyResolved is returned and
// nothing changes. On success the tile's value goes to the assigned team and
// the turn flips, even for TeamNone. Resolving the last tile ends the match in
// the same transaction.
func (m *MatchManager) Resolve(ctx context.Context, sess Session, matchID, tileID string, team Team) (*Resolution, error) {
	if err := sess.validate(); err != nil {
		return nil, err
	}
	if _, err := ParseTeam(string(team)); err != nil {
		return nil, err
	}
	match, err := m.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !sess.canControl(match.HostUserID) {
		return nil, ErrForbidden
	}
	if MatchStatus(match.Status) != StatusActive {
		return nil, ErrMatchNotActive
	}

	var res Resolution
	now := m.now()
	err = m.store.WithTx(ctx, func(tx store.Tx) error {
		tile, opened, err := tx.OpenTile(ctx, matchID, tileID, string(team), team != TeamNone, now)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrTileNotFound
			}
			return fmt.Errorf("open tile: %w", err)
		}
		if !opened {
			return ErrAlreadyResolved
		}

		var deltaA, deltaB int
		switch team {
		case TeamA:
			deltaA = tile.Value
		case TeamB:
			deltaB = tile.Value
		}
		updated, err := tx.ApplyResolution(ctx, matchID, deltaA, deltaB, now)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrMatchNotActive
			}
			return fmt.Errorf("apply resolution: %w", err)
		}

		if err := tx.MarkSeen(ctx, updated.HostUserID, tile.QuestionID, now); err != nil {
			return fmt.Errorf("mark seen: %w", err)
		}

		// Counted after the match row update so a concurrent resolve of the
		// last other tile has committed and is visible.
		remaining, err := tx.CountUnopenedTiles(ctx, matchID)
		if err != nil {
			return fmt.Errorf("count unopened tiles: %w", err)
		}
		if remaining == 0 {
			ended, err := tx.EndMatch(ctx, matchID, now)
			if err != nil {
				return fmt.Errorf("end match: %w", err)
			}
			if ended {
				updated.Status = string(StatusEnded)
				updated.EndedAt.Time, updated.EndedAt.Valid = now, true
				updated.Version++
				res.Ended = true
			}
		}

		res.Tile = newTileView(tile, true)
		res.Match = newMatchView(updated)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyResolved) {
			log.WithFields(log.Fields{"match_id": matchID, "tile_id": tileID}).Info("[BOARD] resolve ignored: tile already resolved")
		}
		return nil, err
	}

	log.WithFields(log.Fields{
		"match_id": matchID,
		"tile_id":  tileID,
		"team":     string(team),
		"value":    res.Tile.Value,
		"score_a":  res.Match.TeamAScore,
		"score_b":  res.Match.TeamBScore,
		"turn":     res.Match.Turn,
	}).Info("[BOARD] tile resolved")
	if res.Ended {
		log.WithField("match_id", matchID).Info("[MATCH] board cleared; match ended")
	}

	m.publish(ctx, matchID)
	return &res, nil
}

// ListMatches returns the caller's matches, newest first
func (m *MatchManager) ListMatches(ctx context.Context, sess Session, limit int) ([]MatchView, error) {
	if err := sess.validate(); err != nil {
		return nil, err
	}
	rows, err := m.store.ListMatchesByHost(ctx, sess.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	out := make([]MatchView, 0, len(rows))
	for i := range rows {
		out = append(out, newMatchView(&rows[i]))
	}
	return out, nil
}

func (m *MatchManager) loadMatch(ctx context.Context, matchID string) (*models.Match, error) {
	match, err := m.store.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("load match: %w", err)
	}
	return match, nil
}
