package auth

import (
	"time"

	"github.com/pelita-edu/pelita/internal/identity"
)

// User represents an account row with credentials.
type User struct {
	ID           string
	TenantID     string
	Email        string
	FullName     string
	Role         identity.Role
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
