package model

import "time"

// Roles carried in the access token. Hosting is not a role: any USER who
// owns a listing acts as its host.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User represents a row in the `users` table. Handlers expose a trimmed
// view of it; the password hash never leaves the repository layer.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	Role         string    // users.role (USER or ADMIN)
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// IsAdmin reports whether the user may use the admin endpoints.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
