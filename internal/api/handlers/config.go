package handlers

import (
	"net/http"

	"github.com/almajlis/backend/internal/config"
	"github.com/almajlis/backend/internal/game"
	"github.com/gin-gonic/gin"
)

// GetConfig returns minimal config values required by frontend
func GetConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tun := cfg.Tunables()
		c.JSON(http.StatusOK, gin.H{
			"min_categories":                  game.MinCategories,
			"max_categories":                  game.MaxCategories,
			"point_values":                    game.PointValues,
			"first_match_free":                tun.FirstMatchFree,
			"create_match_rate_limit_seconds": tun.CreateMatchRateLimitSeconds,
		})
	}
}
