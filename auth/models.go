package auth

import "time"

// User is the domain representation of a marketplace account. It mirrors the
// users table and should not include JSON annotations so it can be reused by
// different presentation layers.
type User struct {
	ID            string
	Email         string
	FullName      string
	PasswordHash  string
	WalletAddress string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RegisterRequest contains account registration data supplied by callers.
type RegisterRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FullName      string `json:"full_name"`
	WalletAddress string `json:"wallet_address"`
}

// LoginRequest contains account login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
