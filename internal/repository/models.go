package repository

import "time"

// Role is the closed set of account roles
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	}
	return false
}

// User represents an account identity
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	IsVerified   bool
	OTP          *int
	OTPCreatedAt *time.Time
	LastLoginAt  *time.Time
	// SessionToken mirrors the last issued token for audit; it is never checked
	SessionToken *string
	CompanyID    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Company represents the organisation an owner registers with
type Company struct {
	ID         string
	Name       string
	IsApproved bool
	OwnerID    *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AuthEvent represents one row of the authentication audit log
type AuthEvent struct {
	ID            int64
	UserID        string
	EventType     string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	CreatedAt     time.Time
}

// Auth event types
const (
	EventRegister       = "register"
	EventVerifyOTP      = "verify_otp"
	EventLogin          = "login"
	EventChangePassword = "change_password"
)
