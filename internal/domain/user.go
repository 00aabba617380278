package domain

import "time"

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// AccountState tells whether a user may sign in.
type AccountState string

const (
	AccountActive      AccountState = "active"
	AccountDeactivated AccountState = "deactivated"
)

// DefaultPhotoURL is assigned to users that never uploaded a photo.
const DefaultPhotoURL = "/default/no-photo.png"

// User is a registered account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	PhotoURL     string
	Status       *string
	State        AccountState
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserStats counts accounts per state.
type UserStats struct {
	Total       int64
	Active      int64
	Deactivated int64
}

// Follow is a directed follower relationship.
type Follow struct {
	FollowerID string
	FolloweeID string
	CreatedAt  time.Time
}
