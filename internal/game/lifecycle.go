package game

import (
	"context"
	"fmt"
	"time"

	"github.com/almajlis/backend/internal/store"
	log "github.com/sirupsen/logrus"
)

// Winner values reported by Results
const (
	WinnerA   = "A"
	WinnerB   = "B"
	WinnerTie = "TIE"
)

// EndMatch finalizes a match on an explicit "end match" action. Ending is
// idempotent: the second of two concurrent calls finds the match already
// ended, reports ended=false and leaves the first end timestamp in place.
func (m *MatchManager) EndMatch(ctx context.Context, sess Session, matchID string) (*MatchView, bool, error) {
	if err := sess.validate(); err != nil {
		return nil, false, err
	}
	match, err := m.loadMatch(ctx, matchID)
	if err != nil {
		return nil, false, err
	}
	if !sess.canControl(match.HostUserID) {
		return nil, false, ErrForbidden
	}

	ended, err := m.finalize(ctx, matchID, "ended by host")
	if err != nil {
		return nil, false, err
	}
	match, err = m.loadMatch(ctx, matchID)
	if err != nil {
		return nil, false, err
	}
	view := newMatchView(match)
	return &view, ended, nil
}

// EndStaleMatches ends matches still open after maxAge. Returns how many this
// call ended.
func (m *MatchManager) EndStaleMatches(ctx context.Context, maxAge time.Duration, batch int) (int, error) {
	stale, err := m.store.ListStaleMatches(ctx, m.now().Add(-maxAge), batch)
	if err != nil {
		return 0, fmt.Errorf("list stale matches: %w", err)
	}
	count := 0
	for _, s := range stale {
		ended, err := m.finalize(ctx, s.ID, "stale")
		if err != nil {
			log.Printf("[REAPER] failed to end match %s: %v", s.ID, err)
			continue
		}
		if ended {
			count++
		}
	}
	return count, nil
}

func (m *MatchManager) finalize(ctx context.Context, matchID, reason string) (bool, error) {
	var ended bool
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		ended, err = tx.EndMatch(ctx, matchID, m.now())
		return err
	})
	if err != nil {
		return false, fmt.Errorf("end match: %w", err)
	}
	if !ended {
		log.WithField("match_id", matchID).Debug("[MATCH] end ignored: already ended")
		return false, nil
	}
	log.WithFields(log.Fields{"match_id": matchID, "reason": reason}).Info("[MATCH] match ended")
	m.publish(ctx, matchID)
	return true, nil
}

// Results summarizes a match: winner, score gap and the per-category tile
// breakdown. Reading results does not end the match.
type Results struct {
	Match   MatchView `json:"match"`
	Winner  string    `json:"winner"`
	Diff    int       `json:"diff"`
	Columns []Column  `json:"columns"`
}

// Results builds the results summary of a match
func (m *MatchManager) Results(ctx context.Context, matchID string) (*Results, error) {
	board, err := m.GetBoard(ctx, matchID)
	if err != nil {
		return nil, err
	}
	a, b := board.Match.TeamAScore, board.Match.TeamBScore
	r := &Results{Match: board.Match, Columns: board.Columns, Winner: WinnerTie}
	switch {
	case a > b:
		r.Winner, r.Diff = WinnerA, a-b
	case b > a:
		r.Winner, r.Diff = WinnerB, b-a
	}
	return r, nil
}
