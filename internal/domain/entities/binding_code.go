package entities

import (
	"time"

	"github.com/google/uuid"
)

// BindingCode links a Discord account to a user once
type BindingCode struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Code      string    `json:"code"`
	IsUsed    bool      `json:"isUsed"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Usable reports whether the code can still be redeemed at now.
func (b *BindingCode) Usable(now time.Time) bool {
	return !b.IsUsed && now.Before(b.ExpiresAt)
}

// DiscordBindInput is sent by the bot when a user redeems a binding code
type DiscordBindInput struct {
	Code            string `json:"code" binding:"required,len=6"`
	DiscordID       string `json:"discordId" binding:"required"`
	DiscordUsername string `json:"discordUsername" binding:"required"`
	DiscordAvatar   string `json:"discordAvatar"`
}
