package models

type RegisterRequest struct {
	Name     string   `json:"name" validate:"required"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8"`
	Phone    string   `json:"phone" validate:"required"`
	Course   string   `json:"course"`
	College  string   `json:"college"`
	Year     string   `json:"year"`
	Skills   []string `json:"skills"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateUserRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	Role        Role   `json:"role" validate:"required"`
	CompanyID   string `json:"companyId"`
	Designation string `json:"designation"`
}

type UpdateProfileRequest struct {
	Name    string   `json:"name"`
	Course  string   `json:"course"`
	College string   `json:"college"`
	Year    string   `json:"year"`
	Skills  []string `json:"skills"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

// AuthResult is what the lifecycle manager hands back to the transport
// layer. The refresh token goes into the cookie only; the access token
// goes into the body only.
type AuthResult struct {
	User         UserInfo
	AccessToken  string
	RefreshToken string
}

type AccessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type AuthResponse struct {
	User        UserInfo `json:"user"`
	AccessToken string   `json:"accessToken"`
}
