package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// UserRole represents user roles
type UserRole string

const (
	UserRoleAdmin     UserRole = "admin"
	UserRoleModerator UserRole = "moderator"
	UserRoleSupport   UserRole = "support"
	UserRoleUser      UserRole = "user"
)

// UnlimitedInvites marks a monthly invite limit without a cap.
const UnlimitedInvites = -1

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleModerator, UserRoleSupport, UserRoleUser:
		return true
	}
	return false
}

// InviteLimitForRole returns the monthly invite limit granted by a role.
func InviteLimitForRole(role UserRole) int {
	switch role {
	case UserRoleAdmin:
		return UnlimitedInvites
	case UserRoleModerator:
		return 10
	case UserRoleUser:
		return 2
	default:
		return 0
	}
}

// User represents a user entity
type User struct {
	ID                   uuid.UUID     `json:"id"`
	Username             string        `json:"username"`
	Email                string        `json:"email"`
	PasswordHash         string        `json:"-"`
	Role                 UserRole      `json:"role"`
	IsBanned             bool          `json:"isBanned"`
	BanReason            null.String   `json:"banReason"`
	DiscordID            null.String   `json:"discordId"`
	DiscordUsername      null.String   `json:"discordUsername"`
	DiscordAvatar        null.String   `json:"discordAvatar"`
	RegisteredIP         string        `json:"registeredIp,omitempty"`
	LastLoginIP          null.String   `json:"lastLoginIp"`
	LastLoginAt          null.Time     `json:"lastLoginAt"`
	InvitedBy            uuid.NullUUID `json:"invitedBy"`
	MonthlyInviteLimit   int           `json:"monthlyInviteLimit"`
	InvitesUsedThisMonth int           `json:"invitesUsedThisMonth"`
	LastInviteReset      time.Time     `json:"lastInviteReset"`
	Notes                string        `json:"notes,omitempty"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// Actor is the authenticated principal performing an operation.
// A zero ID denotes the system (background jobs).
type Actor struct {
	ID       uuid.UUID
	Username string
	Role     UserRole
}

// SystemActor performs scheduled transitions.
var SystemActor = Actor{Username: "system", Role: UserRoleAdmin}

// IsSystem reports whether the actor is the system.
func (a Actor) IsSystem() bool {
	return a.ID == uuid.Nil
}

// NullID returns the actor id, null for the system.
func (a Actor) NullID() uuid.NullUUID {
	if a.IsSystem() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: a.ID, Valid: true}
}

// UserFilter narrows user listings
type UserFilter struct {
	Search   string
	Role     UserRole
	IsBanned *bool
	Limit    int
	Offset   int
}

// RegisterInput represents input for invite-based registration
type RegisterInput struct {
	Username   string `json:"username" binding:"required,min=3,max=50"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	InviteCode string `json:"inviteCode" binding:"required"`
}

// LoginInput represents input for user login
type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshInput represents input for refreshing a token pair
type RefreshInput struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user"`
}

// BanUserInput represents input for banning a user
type BanUserInput struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ChangeRoleInput represents input for changing a user's role
type ChangeRoleInput struct {
	Role UserRole `json:"role" binding:"required"`
}
