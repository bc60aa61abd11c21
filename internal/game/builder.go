package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/almajlis/backend/internal/models"
	"github.com/almajlis/backend/internal/store"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const maxTeamNameLen = 50

// CreateMatchRequest is the input of CreateMatch
type CreateMatchRequest struct {
	CategoryIDs []string
	TeamAName   string
	TeamBName   string
	// AllowSeen confirms that buckets short of unseen questions may be filled
	// with questions the host has already opened.
	AllowSeen bool
}

// CreateMatch validates stock, samples every bucket and then, in one
// transaction, spends a credit (or proves this is the host's first match) and
// persists the match, its board categories and all tiles. Nothing is written
// unless everything is.
func (m *MatchManager) CreateMatch(ctx context.Context, sess Session, req CreateMatchRequest) (*Board, error) {
	if err := sess.validate(); err != nil {
		return nil, err
	}
	teamA, teamB, err := normalizeTeamNames(req.TeamAName, req.TeamBName)
	if err != nil {
		return nil, err
	}

	if err := m.validator.Validate(ctx, req.CategoryIDs); err != nil {
		return nil, err
	}

	mode := ModePaid
	if m.opts.FirstMatchFree {
		hosted, err := m.store.CountHostedMatches(ctx, sess.UserID)
		if err != nil {
			return nil, fmt.Errorf("count hosted matches: %w", err)
		}
		if hosted == 0 {
			mode = ModeFree
		}
	}

	picks, err := m.sampleBoard(ctx, sess.UserID, req.CategoryIDs, mode, req.AllowSeen)
	if err != nil {
		return nil, err
	}

	now := m.now()
	match := &models.Match{
		ID:         uuid.NewString(),
		HostUserID: sess.UserID,
		TeamAName:  teamA,
		TeamBName:  teamB,
		Turn:       string(TeamA),
		Status:     string(StatusActive),
		Free:       mode == ModeFree,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	cats, tiles := assembleBoard(match.ID, req.CategoryIDs, picks)

	var balanceAfter int
	err = m.store.WithTx(ctx, func(tx store.Tx) error {
		credit, err := tx.LockCredit(ctx, sess.UserID)
		if err != nil {
			return fmt.Errorf("lock credit: %w", err)
		}
		balanceAfter = credit.Remaining

		if mode == ModeFree {
			// The credit row lock serializes this count against every other
			// creation by the same user.
			hosted, err := tx.CountHostedMatches(ctx, sess.UserID)
			if err != nil {
				return fmt.Errorf("recount hosted matches: %w", err)
			}
			if hosted > 0 {
				return fmt.Errorf("%w: first match already created", ErrTransactionConflict)
			}
		} else {
			if credit.Remaining < 1 {
				return ErrInsufficientCredit
			}
			balanceAfter, err = tx.DebitCredit(ctx, sess.UserID, match.ID, "Match created")
			if err != nil {
				return err
			}
		}

		if err := tx.InsertMatch(ctx, match); err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
		if err := tx.InsertBoardCategories(ctx, cats); err != nil {
			return fmt.Errorf("insert board categories: %w", err)
		}
		if err := tx.InsertTiles(ctx, tiles); err != nil {
			return fmt.Errorf("insert tiles: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientCredit) {
			log.WithField("user_id", sess.UserID).Info("[CREDITS] match refused: no credits remaining")
		}
		return nil, err
	}

	log.WithFields(log.Fields{
		"match_id":   match.ID,
		"user_id":    sess.UserID,
		"mode":       mode.String(),
		"categories": len(cats),
		"tiles":      len(tiles),
		"balance":    balanceAfter,
	}).Info("[MATCH] match created")

	return m.GetBoard(ctx, match.ID)
}

// sampleBoard samples every bucket of the selection. Buckets short of unseen
// questions are collected so the caller sees all of them in one
// *SeenFallbackError.
func (m *MatchManager) sampleBoard(ctx context.Context, userID string, categoryIDs []string, mode SampleMode, allowSeen bool) (map[store.Bucket]Pick, error) {
	picks := make(map[store.Bucket]Pick, len(categoryIDs)*len(PointValues))
	var short []store.Bucket

	for _, catID := range categoryIDs {
		for _, value := range PointValues {
			b := store.Bucket{CategoryID: catID, Value: value}
			pick, err := m.sampler.Sample(ctx, userID, b, mode, allowSeen)
			if errors.Is(err, errUnseenShort) {
				short = append(short, b)
				continue
			}
			if err != nil {
				if errors.Is(err, ErrSamplingUnderflow) {
					log.WithField("bucket", fmt.Sprintf("%s/%d", catID, value)).Errorf("[MATCH] sampling underflow after stock validation: %v", err)
				}
				return nil, err
			}
			picks[b] = pick
		}
	}

	if len(short) > 0 {
		return nil, &SeenFallbackError{Buckets: short}
	}
	return picks, nil
}

// assembleBoard lays out board categories in selection order and six tiles per
// category following RowValues.
func assembleBoard(matchID string, categoryIDs []string, picks map[store.Bucket]Pick) ([]models.BoardCategory, []models.Tile) {
	cats := make([]models.BoardCategory, 0, len(categoryIDs))
	tiles := make([]models.Tile, 0, len(categoryIDs)*TilesPerCategory)

	for i, catID := range categoryIDs {
		pos := i + 1
		cats = append(cats, models.BoardCategory{MatchID: matchID, Position: pos, CategoryID: catID})

		for row := 1; row <= TilesPerCategory; row++ {
			value, idx := rowSlot(row)
			q := picks[store.Bucket{CategoryID: catID, Value: value}].Questions[idx]
			tiles = append(tiles, models.Tile{
				ID:               uuid.NewString(),
				MatchID:          matchID,
				CategoryPosition: pos,
				RowIndex:         row,
				Value:            value,
				QuestionID:       q.ID,
				QuestionText:     q.Text,
				AnswerText:       q.Answer,
				ImageURL:         q.ImageURL,
				AnswerImageURL:   q.AnswerImageURL,
			})
		}
	}
	return cats, tiles
}

func normalizeTeamNames(a, b string) (string, string, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	for _, name := range []string{a, b} {
		if name == "" || utf8.RuneCountInString(name) > maxTeamNameLen {
			return "", "", ErrInvalidTeamName
		}
	}
	return a, b, nil
}
