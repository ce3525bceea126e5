package user

import (
	"context"
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/knowledge-gateway/internal/core/datamodel/user"
	"github.com/frahmantamala/knowledge-gateway/internal/permission"
)

// User is a whitelisted account with its role memberships. The identity
// store is the sole writer; everything else reads.
type User struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	IsActive    bool       `json:"is_active"`
	Roles       []string   `json:"roles"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) HasAnyRole(roles []string) bool {
	for _, userRole := range u.Roles {
		for _, required := range roles {
			if userRole == required {
				return true
			}
		}
	}
	return false
}

func (u *User) IsSuperAdmin() bool {
	return u.HasRole(permission.RoleSuperAdmin)
}

func (u *User) IsActiveUser() bool {
	return u.IsActive
}

type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}

var ErrNotFound = errors.New("user not found")

// RepositoryAPI is the identity store surface. GetActiveUser and
// GetActiveUserByEmail return nil for missing or deactivated users, which
// is how token revocation takes effect. The role methods double as the
// resolver's IdentityStore.
type RepositoryAPI interface {
	GetActiveUser(ctx context.Context, id int64) (*User, error)
	GetActiveUserByEmail(ctx context.Context, email string) (*User, error)
	GetRoles(ctx context.Context, userID int64) ([]string, error)
	GetRolePermissionKinds(ctx context.Context, roleNames []string) ([]permission.Kind, error)
	ListUsers(ctx context.Context) ([]*User, error)
	CreateUser(ctx context.Context, u *User, roles []string) error
	UpdateUser(ctx context.Context, id int64, name *string, isActive *bool) error
	ReplaceRoles(ctx context.Context, userID int64, roles []string) error
	TouchLastLogin(ctx context.Context, userID int64, name, avatarURL string, at time.Time) error
	ListRoles(ctx context.Context) ([]*Role, error)
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		AvatarURL:   u.AvatarURL,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		LastLoginAt: u.LastLoginAt,
		Roles:       []string{},
	}
}

func FromDataModelWithRoles(u *userDatamodel.User, roles []string) *User {
	domainUser := FromDataModel(u)
	domainUser.Roles = roles
	return domainUser
}
