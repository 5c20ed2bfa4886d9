package entities

// Permission is an (object, action) pair checked by the authorizer
type Permission struct {
	Object string
	Action string
}

const (
	ObjectKey     = "key"
	ObjectInvite  = "invite"
	ObjectUser    = "user"
	ObjectLog     = "activity_log"
	ObjectDiscord = "discord"
	ObjectTopic   = "topic"
)

var (
	PermKeyCreate   = Permission{ObjectKey, "create"}
	PermKeyView     = Permission{ObjectKey, "view"}
	PermKeyRevoke   = Permission{ObjectKey, "revoke"}
	PermKeyActivate = Permission{ObjectKey, "activate"}

	PermInviteCreate  = Permission{ObjectInvite, "create"}
	PermInviteViewAll = Permission{ObjectInvite, "view_all"}
	PermInviteRevoke  = Permission{ObjectInvite, "revoke"}

	PermUserView       = Permission{ObjectUser, "view"}
	PermUserBan        = Permission{ObjectUser, "ban"}
	PermUserChangeRole = Permission{ObjectUser, "change_role"}

	PermLogView = Permission{ObjectLog, "view"}

	PermDiscordBind   = Permission{ObjectDiscord, "bind"}
	PermDiscordLookup = Permission{ObjectDiscord, "lookup"}
)

// SubscribePermission is the permission to receive events on topic.
func SubscribePermission(topic Topic) Permission {
	return Permission{ObjectTopic + ":" + string(topic), "subscribe"}
}
