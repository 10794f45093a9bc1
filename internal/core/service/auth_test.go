package service

import (
	"context"
	"csbot/internal/core/domain"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) User(ctx context.Context, userID int64) (domain.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(domain.User)
	return user, args.Error(1)
}

func TestRoleAuthorizer_IsPrivileged(t *testing.T) {
	tests := []struct {
		name string
		user domain.User
		err  error
		want bool
	}{
		{name: "owner", user: domain.User{ID: 1, Role: RoleOwner}, want: true},
		{name: "administrator", user: domain.User{ID: 1, Role: RoleAdministrator}, want: true},
		{name: "moderator", user: domain.User{ID: 1, Role: 300}, want: false},
		{name: "member", user: domain.User{ID: 1, Role: 400}, want: false},
		{name: "legacy admin flag", user: domain.User{ID: 1, IsAdmin: true}, want: true},
		{name: "lookup fails", err: errors.New("network down"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users := new(MockUserDirectory)
			users.On("User", mock.Anything, int64(1)).Return(tc.user, tc.err)

			auth := NewAuthorizer(users)

			assert.Equal(t, tc.want, auth.IsPrivileged(testContext(t), 1))
			users.AssertExpectations(t)
		})
	}
}
