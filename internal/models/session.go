package models

import "time"

// Session binds a refresh-token reference to a user and a validity window.
// RefreshTokenRef is unique across live sessions; ExpiresAt is an absolute
// ceiling fixed at creation and never moved by rotation. IPAddress and
// UserAgent are informational only and never feed authorization decisions.
type Session struct {
	ID              string
	UserID          string
	RefreshTokenRef string
	IPAddress       string
	UserAgent       string
	IsValid         bool
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// ClientMeta is the per-request client context captured at session
// creation and refreshed on every rotation.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// AuditEntry is one fire-and-forget audit-trail row.
type AuditEntry struct {
	ID        string
	UserID    string
	Action    string
	IPAddress string
	UserAgent string
	Detail    string
	CreatedAt time.Time
}

const (
	AuditActionRegister    = "auth.register"
	AuditActionLogin       = "auth.login"
	AuditActionRefresh     = "auth.refresh"
	AuditActionLogout      = "auth.logout"
	AuditActionReuseAlert  = "auth.refresh_reuse"
	AuditActionPasswordSet = "auth.password_change"
	AuditActionUserCreated = "auth.user_created"
)
