package auth

import (
	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/internal/users"
	"github.com/clubline/clubline-backend/pkg/enums"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ClubSummary describes a club the user belongs to, returned after login.
type ClubSummary struct {
	ID   uuid.UUID        `json:"id"`
	Name string           `json:"name"`
	Slug string           `json:"slug"`
	Role enums.MemberRole `json:"role"`
}

// LoginResponse contains the tokens, user, and club list produced by a successful login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	Clubs        []ClubSummary  `json:"clubs"`
	User         *users.UserDTO `json:"user"`
}

// AdminLoginResponse mirrors LoginResponse while exposing the admin user.
type AdminLoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}
