package models

import "time"

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleStudent   Role = "student"
	RoleRecruiter Role = "recruiter"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStudent, RoleRecruiter:
		return true
	}
	return false
}

// User is the credential-store record. RefreshTokenRef is the fast-check
// reference: it must equal the refresh token most recently issued to the
// user, and is cleared on logout. An empty string means "no live token".
type User struct {
	ID              string
	Name            string
	Email           string
	Phone           string
	PasswordHash    string
	Role            Role
	RefreshTokenRef string
	LastLoginIP     string
	Profile         Profile
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Profile is a role-tagged record: exactly one variant is populated,
// matching the user's role. Admins carry neither.
type Profile struct {
	Student   *StudentProfile   `json:"student,omitempty"`
	Recruiter *RecruiterProfile `json:"recruiter,omitempty"`
}

type StudentProfile struct {
	Course    string   `json:"course"`
	College   string   `json:"college"`
	Year      string   `json:"year"`
	Skills    []string `json:"skills"`
	ResumeURL string   `json:"resumeUrl,omitempty"`
}

type RecruiterProfile struct {
	CompanyID   string `json:"companyId"`
	Designation string `json:"designation"`
}

// UserInfo is the identity payload returned from /auth/me and embedded in
// login/register responses. No token material, no password hash.
type UserInfo struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Role    Role    `json:"role"`
	Profile Profile `json:"profile"`
}

func (u *User) Info() UserInfo {
	return UserInfo{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Role:    u.Role,
		Profile: u.Profile,
	}
}
