package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/knowledge-gateway/internal/permission"
	"github.com/frahmantamala/knowledge-gateway/internal/user"
)

// Claims is the session token payload: identity plus a role-name snapshot.
// The snapshot serves coarse gating only; permission-sensitive paths
// re-read roles from the identity store (see Service.Authenticate).
type Claims struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Identity is an authenticated user with roles read fresh from the
// identity store at authentication time.
type Identity struct {
	ID    int64    `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

func (i *Identity) HasAnyRole(roles []string) bool {
	for _, have := range i.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// TokenCodec issues and verifies signed session tokens. Verify reports
// expected failures (bad signature, malformed, expired) through the
// sentinel errors, never by panicking.
type TokenCodec interface {
	Issue(userID int64, email string, roles []string) (string, error)
	Verify(token string) (*Claims, error)
}

// UserStore is the slice of the identity store the gate needs: freshness
// reads plus the login bookkeeping writes.
type UserStore interface {
	GetActiveUser(ctx context.Context, id int64) (*user.User, error)
	GetActiveUserByEmail(ctx context.Context, email string) (*user.User, error)
	TouchLastLogin(ctx context.Context, userID int64, name, avatarURL string, at time.Time) error
}

// PermissionResolver is the decision procedure the gate delegates to.
type PermissionResolver interface {
	Resolve(ctx context.Context, userID int64, kind permission.Kind, ref *permission.ResourceRef) (bool, error)
}

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO) (*LoginResult, error)
	Authenticate(ctx context.Context, rawToken string) (*Identity, error)
	Authorize(ctx context.Context, identity *Identity, kind permission.Kind, ref *permission.ResourceRef) error
	VerifyToken(rawToken string) (*Claims, error)
}

type LoginResult struct {
	Token string    `json:"token"`
	User  *Identity `json:"user"`
}

var (
	ErrMissingToken = errors.New("missing authorization token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	// ErrUserInactive covers deactivated and deleted accounts alike: a
	// cryptographically valid token is rejected once the freshness read
	// comes back empty.
	ErrUserInactive   = errors.New("user is inactive")
	ErrNotWhitelisted = errors.New("email is not whitelisted")
	ErrInvalidAPIKey  = errors.New("invalid gateway api key")
)

// PermissionDeniedError names the permission kind that failed so boundary
// layers can report it.
type PermissionDeniedError struct {
	Kind permission.Kind
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Kind)
}

type ctxKey string

const ContextIdentityKey ctxKey = "identity"

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(ContextIdentityKey).(*Identity)
	return identity, ok
}

func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, ContextIdentityKey, identity)
}
