package auth

import "github.com/adopt-a-farmer/client-go/domain"

// LoginRequest is the POST /auth/login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the POST /auth/register payload.
type RegisterRequest struct {
	FirstName   string      `json:"firstName" validate:"required"`
	LastName    string      `json:"lastName" validate:"required"`
	Email       string      `json:"email" validate:"required,email"`
	Password    string      `json:"password" validate:"required,min=8"`
	Role        domain.Role `json:"role" validate:"required"`
	PhoneNumber string      `json:"phoneNumber,omitempty" validate:"omitempty,e164"`
}

// ForgotPasswordRequest is the POST /auth/forgot-password payload.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the POST /auth/reset-password payload.
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// Credentials is what the login and register endpoints hand back inside
// the data envelope.
type Credentials struct {
	Pair domain.TokenPair
	User *domain.User
}

// envelope is the backend's {data:{...}} wrapper.
type envelope struct {
	Data    sessionData `json:"data"`
	Message string      `json:"message,omitempty"`
}

type sessionData struct {
	Token        string       `json:"token,omitempty"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	User         *domain.User `json:"user,omitempty"`
}
