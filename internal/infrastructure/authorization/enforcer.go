package authorization

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
)

//go:embed model.conf
var modelText string

func roleSubject(role entities.UserRole) string {
	return "role:" + string(role)
}

func perm(role entities.UserRole, p entities.Permission) []string {
	return []string{roleSubject(role), p.Object, p.Action}
}

// defaultPolicies is the static role matrix. Ownership rules (a user
// revoking their own invite, moderators not banning admins) live in the usecases.
func defaultPolicies() [][]string {
	keyTopic := entities.SubscribePermission(entities.TopicKeyStatus)
	userTopic := entities.SubscribePermission(entities.TopicUserStatus)

	return [][]string{
		{roleSubject(entities.UserRoleAdmin), "*", "*"},

		perm(entities.UserRoleModerator, entities.PermKeyCreate),
		perm(entities.UserRoleModerator, entities.PermKeyView),
		perm(entities.UserRoleModerator, entities.PermKeyRevoke),
		perm(entities.UserRoleModerator, entities.PermKeyActivate),
		perm(entities.UserRoleModerator, entities.PermInviteCreate),
		perm(entities.UserRoleModerator, entities.PermInviteViewAll),
		perm(entities.UserRoleModerator, entities.PermInviteRevoke),
		perm(entities.UserRoleModerator, entities.PermUserView),
		perm(entities.UserRoleModerator, entities.PermUserBan),
		perm(entities.UserRoleModerator, entities.PermLogView),
		perm(entities.UserRoleModerator, entities.PermDiscordBind),
		perm(entities.UserRoleModerator, entities.PermDiscordLookup),
		perm(entities.UserRoleModerator, keyTopic),
		perm(entities.UserRoleModerator, userTopic),

		perm(entities.UserRoleSupport, entities.PermKeyView),
		perm(entities.UserRoleSupport, entities.PermKeyActivate),
		perm(entities.UserRoleSupport, entities.PermUserView),
		perm(entities.UserRoleSupport, entities.PermDiscordBind),
		perm(entities.UserRoleSupport, entities.PermDiscordLookup),
		perm(entities.UserRoleSupport, userTopic),

		perm(entities.UserRoleUser, entities.PermKeyActivate),
		perm(entities.UserRoleUser, entities.PermInviteCreate),
		perm(entities.UserRoleUser, entities.PermDiscordBind),
	}
}

// NewEnforcer builds an in-memory casbin enforcer seeded with the role matrix.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse authorization model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if _, err := enforcer.AddPolicies(defaultPolicies()); err != nil {
		return nil, fmt.Errorf("failed to seed policies: %w", err)
	}
	for _, role := range []entities.UserRole{
		entities.UserRoleAdmin, entities.UserRoleModerator, entities.UserRoleSupport, entities.UserRoleUser,
	} {
		if _, err := enforcer.AddGroupingPolicy(string(role), roleSubject(role)); err != nil {
			return nil, fmt.Errorf("failed to seed role %s: %w", role, err)
		}
	}
	return enforcer, nil
}

// Authorizer answers capability checks for actors
type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
}

func NewAuthorizer(enforcer *casbin.SyncedEnforcer) *Authorizer {
	return &Authorizer{enforcer: enforcer}
}

// Can reports whether role holds p.
func (a *Authorizer) Can(role entities.UserRole, p entities.Permission) bool {
	allowed, err := a.enforcer.Enforce(string(role), p.Object, p.Action)
	return err == nil && allowed
}

// Authorize returns ErrForbidden unless the actor's role holds p.
func (a *Authorizer) Authorize(actor entities.Actor, p entities.Permission) error {
	if actor.IsSystem() {
		return nil
	}
	if !actor.Role.Valid() || !a.Can(actor.Role, p) {
		return domainerrors.ErrForbidden
	}
	return nil
}

// CanSubscribe reports whether role may receive events on topic.
func (a *Authorizer) CanSubscribe(role entities.UserRole, topic entities.Topic) bool {
	return a.Can(role, entities.SubscribePermission(topic))
}
