package models

// Principal is the authenticated caller resolved from a session token for one request.
type Principal struct {
	UserID    string   `json:"user_id"`
	Email     string   `json:"email"`
	Role      UserRole `json:"role"`
	SessionID string   `json:"-"`
}

// ClientMeta carries diagnostic request details recorded with sessions and audit rows.
type ClientMeta struct {
	IP        string
	UserAgent string
}
