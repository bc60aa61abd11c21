package admin

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/almajlis/backend/internal/models"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

// Audited admin actions
const (
	ActionAuth         = "auth"
	ActionGrantCredits = "grant_credits"
	ActionUpdateConfig = "update_config"
)

// AuditEntry is one row of the admin audit trail
type AuditEntry struct {
	AdminPhone string
	IP         string
	Route      string
	Action     string
	Details    map[string]interface{}
	Success    bool
}

// Record writes an entry to admin_audit. Failures are logged and returned;
// callers do not fail the admin request on them.
func Record(db *sqlx.DB, e AuditEntry) error {
	detailsJSON, err := json.Marshal(e.Details)
	if err != nil || e.Details == nil {
		detailsJSON = []byte("{}")
	}

	_, err = db.Exec(`
		INSERT INTO admin_audit (admin_phone, ip, route, action, details, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, e.AdminPhone, e.IP, e.Route, e.Action, detailsJSON, e.Success)
	if err != nil {
		log.WithFields(log.Fields{"admin_phone": e.AdminPhone, "action": e.Action}).Errorf("[ADMIN] audit write failed: %v", err)
	}
	return err
}

// CreditGrant is a credit top-up as it appears in the audit trail. Balance is
// set only once the grant has committed.
type CreditGrant struct {
	UserID  string
	Amount  int
	Reason  string
	Balance *int
}

// Entry turns the grant into an audit entry for adminPhone
func (g CreditGrant) Entry(adminPhone, ip string, success bool) AuditEntry {
	details := map[string]interface{}{"user_id": g.UserID, "amount": g.Amount}
	if g.Reason != "" {
		details["reason"] = g.Reason
	}
	if g.Balance != nil {
		details["balance"] = *g.Balance
	}
	return AuditEntry{
		AdminPhone: adminPhone,
		IP:         ip,
		Route:      "/api/v1/admin/credits",
		Action:     ActionGrantCredits,
		Details:    details,
		Success:    success,
	}
}

// RecordCreditGrant audits a grant attempt, successful or not
func RecordCreditGrant(db *sqlx.DB, adminPhone, ip string, g CreditGrant, success bool) error {
	return Record(db, g.Entry(adminPhone, ip, success))
}

// RecordConfigUpdate audits a runtime config change
func RecordConfigUpdate(db *sqlx.DB, adminPhone, ip, key, value string, success bool) error {
	return Record(db, AuditEntry{
		AdminPhone: adminPhone,
		IP:         ip,
		Route:      "/api/v1/admin/config/" + key,
		Action:     ActionUpdateConfig,
		Details:    map[string]interface{}{"key": key, "value": value},
		Success:    success,
	})
}

// AuditFilter narrows an audit listing. Empty fields match everything.
type AuditFilter struct {
	AdminPhone string
	Action     string
	UserID     string // credit grants to this user
	Limit      int
	Offset     int
}

func (f AuditFilter) query() (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.AdminPhone != "" {
		add("admin_phone = $%d", f.AdminPhone)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.UserID != "" {
		add("details->>'user_id' = $%d", f.UserID)
	}

	q := `SELECT id, admin_phone, ip, route, action, details, success, created_at FROM admin_audit`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	q += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return q, args
}

// ListAudit returns audit entries matching f, newest first
func ListAudit(db *sqlx.DB, f AuditFilter) ([]models.AdminAudit, error) {
	q, args := f.query()
	var entries []models.AdminAudit
	err := db.Select(&entries, q, args...)
	return entries, err
}
