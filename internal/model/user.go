package model

import "time"

// Role distinguishes student and admin accounts.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// User represents a platform account. Year, Branch and Division describe the
// student's cohort and are matched against a quiz's access scope.
type User struct {
	ID           int       `json:"id"`
	RollNo       string    `json:"roll_no"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Year         string    `json:"year"`
	Branch       string    `json:"branch"`
	Division     string    `json:"division"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterRequest is the payload for creating a student account.
type RegisterRequest struct {
	RollNo   string `json:"roll_no" binding:"required,min=2,max=20"`
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
	Year     string `json:"year" binding:"required,max=10"`
	Branch   string `json:"branch" binding:"required,max=50"`
	Division string `json:"division" binding:"required,max=10"`
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// LoginResponse is returned after successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ForgotPasswordRequest starts the OTP reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest completes the OTP reset flow.
type ResetPasswordRequest struct {
	Email    string `json:"email" binding:"required,email"`
	OTP      string `json:"otp" binding:"required,len=6"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}
