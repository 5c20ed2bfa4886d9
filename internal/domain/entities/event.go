package entities

import (
	"time"

	"github.com/google/uuid"
)

// Topic names a notification channel
type Topic string

const (
	TopicKeyStatus  Topic = "key_status_updates"
	TopicUserStatus Topic = "user_status_updates"
)

// Event types carried on each topic
const (
	EventTypeKeyStatus  = "key_status_update"
	EventTypeUserStatus = "user_status_update"
)

// Event actions
const (
	EventActionCreated       = "created"
	EventActionStatusChanged = "status_changed"
	EventActionBanned        = "banned"
	EventActionUnbanned      = "unbanned"
	EventActionRoleChanged   = "role_changed"
)

// StatusEvent is a real-time status change broadcast to subscribers
type StatusEvent struct {
	Type      string    `json:"type"`
	EntityID  uuid.UUID `json:"entityId"`
	Status    string    `json:"status"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// NewKeyEvent builds a key_status_updates event.
func NewKeyEvent(key *Key, action string, now time.Time) StatusEvent {
	return StatusEvent{
		Type:      EventTypeKeyStatus,
		EntityID:  key.ID,
		Status:    string(key.Status),
		Action:    action,
		Timestamp: now,
	}
}

// NewUserEvent builds a user_status_updates event. Status is "banned" or "active".
func NewUserEvent(user *User, action string, now time.Time) StatusEvent {
	status := "active"
	if user.IsBanned {
		status = "banned"
	}
	return StatusEvent{
		Type:      EventTypeUserStatus,
		EntityID:  user.ID,
		Status:    status,
		Action:    action,
		Timestamp: now,
	}
}
