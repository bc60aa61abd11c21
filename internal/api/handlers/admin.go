package handlers

import (
	"net/http"
	"strings"

	"github.com/almajlis/backend/internal/admin"
	"github.com/almajlis/backend/internal/game"
	"github.com/almajlis/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

const adminRoleCredits = "credits"

// AdminAuthMiddleware validates X-Admin-Phone + X-Admin-Token against the
// admin_accounts table.
func AdminAuthMiddleware(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		phone := strings.TrimSpace(c.GetHeader("X-Admin-Phone"))
		token := strings.TrimSpace(c.GetHeader("X-Admin-Token"))
		if phone == "" || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin credentials required"})
			return
		}

		acc, err := admin.ValidateAdminPhoneAndToken(db, phone, token)
		if err != nil {
			admin.Record(db, admin.AuditEntry{AdminPhone: phone, IP: c.ClientIP(), Route: c.FullPath(), Action: admin.ActionAuth})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin credentials"})
			return
		}

		c.Set("admin_phone", acc.Phone)
		c.Set("admin_account", acc)
		c.Next()
	}
}

// AdminGrantCredits tops up a user's paid-match balance
func AdminGrantCredits(db *sqlx.DB, mgr *game.MatchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminPhone := c.GetString("admin_phone")

		var req struct {
			UserID string `json:"user_id" binding:"required"`
			Amount int    `json:"amount" binding:"required"`
			Reason string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 || req.Amount > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and amount (1-1000) required"})
			return
		}

		grant := admin.CreditGrant{UserID: req.UserID, Amount: req.Amount}
		if !adminHasRole(c, adminRoleCredits) {
			admin.RecordCreditGrant(db, adminPhone, c.ClientIP(), grant, false)
			c.JSON(http.StatusForbidden, gin.H{"error": "credits role required"})
			return
		}

		grant.Reason = strings.TrimSpace(req.Reason)
		if grant.Reason == "" {
			grant.Reason = "Granted by " + adminPhone
		}

		balance, err := mgr.GrantCredits(c.Request.Context(), req.UserID, req.Amount, grant.Reason)
		if err != nil {
			log.Printf("[ADMIN] Grant to %s failed: %v", req.UserID, err)
			admin.RecordCreditGrant(db, adminPhone, c.ClientIP(), grant, false)
			respondError(c, err)
			return
		}

		grant.Balance = &balance
		admin.RecordCreditGrant(db, adminPhone, c.ClientIP(), grant, true)
		c.JSON(http.StatusOK, gin.H{"user_id": req.UserID, "remaining": balance})
	}
}

func adminHasRole(c *gin.Context, role string) bool {
	v, ok := c.Get("admin_account")
	if !ok {
		return false
	}
	acc, ok := v.(*models.AdminAccount)
	return ok && admin.HasRole(acc, role)
}
