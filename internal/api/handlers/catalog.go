package handlers

import (
	"net/http"

	"github.com/almajlis/backend/internal/game"
	"github.com/gin-gonic/gin"
)

// ListCategories returns the category catalog, optionally filtered by ?q=
func ListCategories(mgr *game.MatchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		cats, err := mgr.ListCategories(c.Request.Context(), c.Query("q"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": cats})
	}
}

// GetCredits returns the caller's balance and recent ledger entries
func GetCredits(mgr *game.MatchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := mgr.Credits(c.Request.Context(), sessionFrom(c), queryLimit(c, 20, 100))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
