package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/almajlis/backend/internal/game"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Error reasons returned in the "error" field
const (
	reasonStockInsufficient  = "stock_insufficient"
	reasonInsufficientCredit = "insufficient_credit"
	reasonConfirmRequired    = "confirm_required"
	reasonRetry              = "retry"
	reasonNotFound           = "not_found"
	reasonForbidden          = "forbidden"
	reasonUnauthenticated    = "unauthenticated"
	reasonInvalidRequest     = "invalid_request"
	reasonMatchNotActive     = "match_not_active"
	reasonInternal           = "internal_error"
)

// respondError translates an engine error into a JSON error response
func respondError(c *gin.Context, err error) {
	var stockErr *game.StockError
	var seenErr *game.SeenFallbackError

	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":   reasonStockInsufficient,
			"message": stockErr.Error(),
			"target": gin.H{
				"category_id":   stockErr.CategoryID,
				"category_name": stockErr.CategoryName,
				"value":         stockErr.Value,
			},
		})
	case errors.As(err, &seenErr):
		buckets := make([]gin.H, 0, len(seenErr.Buckets))
		for _, b := range seenErr.Buckets {
			buckets = append(buckets, gin.H{"category_id": b.CategoryID, "value": b.Value})
		}
		c.JSON(http.StatusConflict, gin.H{
			"error":   reasonConfirmRequired,
			"message": "some categories only have questions you've already seen; resend with allow_seen=true to continue",
			"buckets": buckets,
		})
	case errors.Is(err, game.ErrInsufficientCredit):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": reasonInsufficientCredit, "message": "no credits remaining"})
	case errors.Is(err, game.ErrTransactionConflict):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusConflict, gin.H{"error": reasonRetry, "message": "please try again"})
	case errors.Is(err, game.ErrMatchNotFound), errors.Is(err, game.ErrTileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": reasonNotFound, "message": err.Error()})
	case errors.Is(err, game.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": reasonForbidden, "message": err.Error()})
	case errors.Is(err, game.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": reasonUnauthenticated})
	case errors.Is(err, game.ErrInvalidCategories),
		errors.Is(err, game.ErrInvalidTeamName),
		errors.Is(err, game.ErrInvalidTeam):
		c.JSON(http.StatusBadRequest, gin.H{"error": reasonInvalidRequest, "message": err.Error()})
	case errors.Is(err, game.ErrMatchNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": reasonMatchNotActive, "message": err.Error()})
	default:
		// includes ErrSamplingUnderflow
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": reasonInternal})
	}
}

// queryLimit reads ?limit= clamped to [1, max], falling back to def
func queryLimit(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit < 1 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// queryOffset reads a non-negative ?offset=
func queryOffset(c *gin.Context) int {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}
