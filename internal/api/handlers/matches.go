package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/almajlis/backend/internal/config"
	"github.com/almajlis/backend/internal/game"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// conflictAttempts bounds how often a handler re-runs an operation that hit
// a transient transaction conflict.
const conflictAttempts = 3

// CreateMatch builds a new board for the caller
func CreateMatch(mgr *game.MatchManager, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			CategoryIDs []string `json:"category_ids"`
			TeamA       string   `json:"team_a"`
			TeamB       string   `json:"team_b"`
			AllowSeen   bool     `json:"allow_seen"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": reasonInvalidRequest, "message": "category_ids, team_a and team_b required"})
			return
		}
		sess := sessionFrom(c)
		ctx := c.Request.Context()

		// Rate limit per user to absorb double submits
		var rateKey string
		if window := cfg.Tunables().CreateMatchRateLimitSeconds; rdb != nil && window > 0 {
			rateKey = fmt.Sprintf("create_match_rate:%s", sess.UserID)
			ok, err := rdb.SetNX(ctx, rateKey, "1", time.Duration(window)*time.Second).Result()
			if err == nil && !ok {
				c.Header("Retry-After", fmt.Sprint(window))
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "message": "a match is already being created"})
				return
			}
			if err != nil {
				log.Printf("[API] create-match rate limit unavailable: %v", err)
				rateKey = ""
			}
		}

		var board *game.Board
		err := game.Retry(ctx, conflictAttempts, func() error {
			var err error
			board, err = mgr.CreateMatch(ctx, sess, game.CreateMatchRequest{
				CategoryIDs: req.CategoryIDs,
				TeamAName:   req.TeamA,
				TeamBName:   req.TeamB,
				AllowSeen:   req.AllowSeen,
			})
			return err
		})
		if err != nil {
			// A refused creation must not block the confirm/retry that follows.
			if rateKey != "" {
				rdb.Del(context.Background(), rateKey)
			}
			respondError(c, err)
			return
		}

		c.Header("X-Match-ID", board.Match.ID)
		c.JSON(http.StatusCreated, board)
	}
}

// ListMatches returns the caller's matches, newest first
func ListMatches(mgr *game.MatchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		matches, err := mgr.ListMatches(c.Request.Context(), sessionFrom(c), queryLimit(c, 20, 100))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": matches})
	}
}

// GetMatch returns the board snapshot
func GetMatch(mgr *game.MatchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, err := mgr.GetBoard(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, board)
	}
}

// RevealTile returns a tile's question and answer without changing state
func RevealTile(mgr *game.MatchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tile, err := mgr.Reveal(c.Request.Context(), sessionFrom(c), c.Param("id"), c.Param("tileId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, tile)
	}
}

// ResolveTile assigns a tile to team A, team B or nobody. Losing a resolve
// race is not an error: the caller gets already_resolved with the current
// board.
func ResolveTile(mgr *game.MatchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Team string `json:"team"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": reasonInvalidRequest, "message": "team required"})
			return
		}
		team, err := game.ParseTeam(req.Team)
		if err != nil {
			respondError(c, err)
			return
		}

		ctx := c.Request.Context()
		sess := sessionFrom(c)
		matchID := c.Param("id")

		var res *game.Resolution
		err = game.Retry(ctx, conflictAttempts, func() error {
			var err error
			res, err = mgr.Resolve(ctx, sess, matchID, c.Param("tileId"), team)
			return err
		})
		if errors.Is(err, game.ErrAlreadyResolved) {
			board, berr := mgr.GetBoard(ctx, matchID)
			if berr != nil {
				respondError(c, berr)
				return
			}
			c.JSON(http.StatusOK, gin.H{"already_resolved": true, "board": board})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"already_resolved": false, "resolution": res})
	}
}

// EndMatch finalizes a match. Ending an ended match reports ended=false.
func EndMatch(mgr *game.MatchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var (
			match *game.MatchView
			ended bool
		)
		err := game.Retry(ctx, conflictAttempts, func() error {
			var err error
			match, ended, err = mgr.EndMatch(ctx, sessionFrom(c), c.Param("id"))
			return err
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ended": ended, "match": match})
	}
}

// GetResults returns winner, score gap and per-category breakdown
func GetResults(mgr *game.MatchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := mgr.Results(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
