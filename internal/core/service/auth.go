package service

import (
	"context"
	"csbot/internal/core/port"

	"github.com/rs/zerolog/log"
)

type Authorizer interface {
	IsPrivileged(ctx context.Context, userID int64) bool
}

// Zulip role values, see https://zulip.com/api/roles-and-permissions.
const (
	RoleOwner         = 100
	RoleAdministrator = 200
)

type RoleAuthorizer struct {
	users port.UserDirectory
}

func NewAuthorizer(users port.UserDirectory) *RoleAuthorizer {
	return &RoleAuthorizer{users: users}
}

// IsPrivileged reports whether the user is an owner or administrator of the organization. Servers
// predating roles only expose is_admin, which is honored as well.
func (a *RoleAuthorizer) IsPrivileged(ctx context.Context, userID int64) bool {
	user, err := a.users.User(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Int64("userId", userID).Msg("failed to look up user, treating as unprivileged")
		return false
	}

	switch user.Role {
	case RoleOwner, RoleAdministrator:
		return true
	}

	return user.IsAdmin
}
