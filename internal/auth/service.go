package auth

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/knowledge-gateway/internal/core/events"
	"github.com/frahmantamala/knowledge-gateway/internal/permission"
)

// Service is the authorization gate: it adapts the token codec and the
// permission resolver into boundary checks for request handlers.
type Service struct {
	users          UserStore
	resolver       PermissionResolver
	codec          TokenCodec
	gatewayKeyHash []byte
	eventBus       *events.EventBus
	logger         *slog.Logger
	now            permission.Clock
}

func NewService(users UserStore, resolver PermissionResolver, codec TokenCodec, gatewayKeyHash string, eventBus *events.EventBus, logger *slog.Logger, now permission.Clock) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		users:          users,
		resolver:       resolver,
		codec:          codec,
		gatewayKeyHash: []byte(gatewayKeyHash),
		eventBus:       eventBus,
		logger:         logger,
		now:            now,
	}
}

// Login checks the whitelist for an OAuth-verified email and issues a
// session token. Unknown or deactivated emails fail with ErrNotWhitelisted
// so the frontend can show the "ask an admin" page.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*LoginResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(s.gatewayKeyHash, []byte(dto.APIKey)); err != nil {
		return nil, ErrInvalidAPIKey
	}

	u, err := s.users.GetActiveUserByEmail(ctx, dto.Email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		s.logger.Warn("login rejected: email not whitelisted", "email", dto.Email)
		return nil, ErrNotWhitelisted
	}

	if err := s.users.TouchLastLogin(ctx, u.ID, dto.Name, dto.AvatarURL, s.now()); err != nil {
		s.logger.Error("failed to record last login", "user_id", u.ID, "error", err)
	}

	token, err := s.codec.Issue(u.ID, u.Email, u.Roles)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "user_id", u.ID, "email", u.Email, "roles", u.Roles)
	s.publish(ctx, events.NewUserLoggedInEvent(u.ID, u.Email, u.Roles))

	return &LoginResult{
		Token: token,
		User: &Identity{
			ID:    u.ID,
			Email: u.Email,
			Name:  u.Name,
			Roles: u.Roles,
		},
	}, nil
}

// Authenticate verifies the token and re-reads the user from the identity
// store. The re-read is the revocation mechanism: a deactivated user is
// rejected even while their token is cryptographically valid, and the
// returned roles are current rather than the token's snapshot.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*Identity, error) {
	if rawToken == "" {
		return nil, ErrMissingToken
	}

	claims, err := s.codec.Verify(rawToken)
	if err != nil {
		return nil, err
	}

	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	u, err := s.users.GetActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		s.logger.Warn("authentication rejected: user missing or deactivated", "user_id", userID)
		return nil, ErrUserInactive
	}

	return &Identity{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Roles: u.Roles,
	}, nil
}

// Authorize asks the resolver for a decision and maps a deny to a
// PermissionDeniedError naming the kind.
func (s *Service) Authorize(ctx context.Context, identity *Identity, kind permission.Kind, ref *permission.ResourceRef) error {
	allowed, err := s.resolver.Resolve(ctx, identity.ID, kind, ref)
	if err != nil {
		return err
	}
	if !allowed {
		return &PermissionDeniedError{Kind: kind}
	}
	return nil
}

// VerifyToken exposes the codec for the soft gating path: callers get the
// embedded role snapshot without a store read, trading staleness bounded
// by the token TTL for latency.
func (s *Service) VerifyToken(rawToken string) (*Claims, error) {
	return s.codec.Verify(rawToken)
}

func (s *Service) publish(ctx context.Context, event events.BaseEvent) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish audit event", "event_type", event.EventType(), "error", err)
	}
}
