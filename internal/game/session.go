package game

// Role values carried in a Session
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Session is the already-verified caller identity passed into every engine
// call. CreditBalance is informational; the ledger is always re-read inside
// the creation transaction.
type Session struct {
	UserID        string `json:"user_id"`
	Role          string `json:"role"`
	CreditBalance int    `json:"credit_balance"`
}

// IsAdmin reports whether the caller may act on any match
func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

func (s Session) validate() error {
	if s.UserID == "" {
		return ErrUnauthenticated
	}
	return nil
}

// canControl reports whether the session may resolve tiles or end the match
func (s Session) canControl(hostUserID string) bool {
	return s.IsAdmin() || s.UserID == hostUserID
}
