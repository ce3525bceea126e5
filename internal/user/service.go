package user

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/knowledge-gateway/internal"
	"github.com/frahmantamala/knowledge-gateway/internal/core/events"
)

const defaultRole = "viewer"

// Service covers the admin-facing whitelist management. Authentication
// lives in the auth package; this service only mutates identity.
type Service struct {
	repo     RepositoryAPI
	eventBus *events.EventBus
	logger   *slog.Logger
}

func NewService(repo RepositoryAPI, eventBus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
	}
}

func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list users", err)
	}
	return users, nil
}

// AddUser whitelists an email so the OAuth frontend will accept it. The
// account is created active with the requested roles.
func (s *Service) AddUser(ctx context.Context, dto CreateUserDTO, actorID int64) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	roles := dto.Roles
	if len(roles) == 0 {
		roles = []string{defaultRole}
	}
	if err := s.checkRolesExist(ctx, roles); err != nil {
		return nil, err
	}

	u := &User{
		Email:    dto.Email,
		Name:     dto.Name,
		IsActive: true,
		Roles:    roles,
	}
	if err := s.repo.CreateUser(ctx, u, roles); err != nil {
		return nil, internal.NewConflictError("User already exists", internal.ErrCodeUserExists).WithCause(err)
	}

	s.logger.Info("user whitelisted", "user_id", u.ID, "email", u.Email, "roles", roles, "actor_id", actorID)
	s.publish(ctx, events.NewUserAddedEvent(u.ID, u.Email, roles, actorID))

	return u, nil
}

// UpdateUser applies partial changes; a role list replaces the whole set.
func (s *Service) UpdateUser(ctx context.Context, id int64, dto UpdateUserDTO, actorID int64) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	if dto.Roles != nil {
		if err := s.checkRolesExist(ctx, *dto.Roles); err != nil {
			return err
		}
	}

	if dto.Name != nil || dto.IsActive != nil {
		if err := s.repo.UpdateUser(ctx, id, dto.Name, dto.IsActive); err != nil {
			if err == ErrNotFound {
				return internal.ErrUserNotFound
			}
			return internal.NewInternalError("failed to update user", err)
		}
	}

	if dto.Roles != nil {
		if err := s.repo.ReplaceRoles(ctx, id, *dto.Roles); err != nil {
			return internal.NewInternalError("failed to replace roles", err)
		}
	}

	s.logger.Info("user updated", "user_id", id, "actor_id", actorID)
	s.publish(ctx, events.NewUserUpdatedEvent(id, actorID))

	return nil
}

// DeactivateUser soft-deletes: the row stays so grants and audit history
// keep their references, but authentication fails from now on.
func (s *Service) DeactivateUser(ctx context.Context, id int64, actorID int64) error {
	inactive := false
	if err := s.repo.UpdateUser(ctx, id, nil, &inactive); err != nil {
		if err == ErrNotFound {
			return internal.ErrUserNotFound
		}
		return internal.NewInternalError("failed to deactivate user", err)
	}

	s.logger.Info("user deactivated", "user_id", id, "actor_id", actorID)
	s.publish(ctx, events.NewUserDeactivatedEvent(id, actorID))

	return nil
}

func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list roles", err)
	}
	return roles, nil
}

func (s *Service) checkRolesExist(ctx context.Context, roleNames []string) error {
	known, err := s.repo.ListRoles(ctx)
	if err != nil {
		return internal.NewInternalError("failed to list roles", err)
	}
	knownNames := make(map[string]struct{}, len(known))
	for _, r := range known {
		knownNames[r.Name] = struct{}{}
	}
	for _, name := range roleNames {
		if _, ok := knownNames[name]; !ok {
			return internal.NewValidationError("unknown role: "+name, internal.ErrCodeInvalidRole)
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event events.BaseEvent) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish audit event", "event_type", event.EventType(), "error", err)
	}
}
