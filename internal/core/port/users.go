package port

import (
	"context"
	"csbot/internal/core/domain"
)

type UserDirectory interface {
	// User fetches the profile of a single user of the organization.
	User(ctx context.Context, userID int64) (domain.User, error)
}
