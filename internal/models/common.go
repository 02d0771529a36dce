package models

const (
	// MwCurrentUserKey is the echo context key under which the bearer-auth
	// middleware stores the authenticated *User.
	MwCurrentUserKey = "currentUser"

	// RefreshCookieName is the HTTP-only cookie carrying the refresh
	// token. The access token never travels in a cookie.
	RefreshCookieName = "refreshToken"
)
