package handlers

import (
	"net/http"

	"github.com/almajlis/backend/internal/admin"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

// GetAdminAuditLogs returns paginated audit log entries. ?admin_phone=,
// ?action= and ?user_id= narrow the listing; user_id matches credit grants to
// that user.
func GetAdminAuditLogs(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := auditFilterFrom(c)
		logs, err := admin.ListAudit(db, f)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch audit logs: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit logs"})
			return
		}

		// Viewing the audit log is not itself audited to avoid noise
		c.JSON(http.StatusOK, gin.H{"logs": logs, "limit": f.Limit, "offset": f.Offset})
	}
}

func auditFilterFrom(c *gin.Context) admin.AuditFilter {
	f := admin.AuditFilter{
		AdminPhone: c.Query("admin_phone"),
		Action:     c.Query("action"),
		UserID:     c.Query("user_id"),
		Limit:      queryLimit(c, 25, 200),
		Offset:     queryOffset(c),
	}
	if f.UserID != "" && f.Action == "" {
		f.Action = admin.ActionGrantCredits
	}
	return f
}
