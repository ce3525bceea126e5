package permission

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/knowledge-gateway/internal"
	"github.com/frahmantamala/knowledge-gateway/internal/core/events"
)

// Repository is the full store surface: the resolver's read interface plus
// the admin write operations.
type Repository interface {
	ResourceStore
	CreateResource(ctx context.Context, res *Resource) error
	UpdateResourceParent(ctx context.Context, resourceID int64, parentID *int64) error
	ListResources(ctx context.Context) ([]*Resource, error)
	UpsertGrant(ctx context.Context, grant *Grant) error
	DeleteGrant(ctx context.Context, userID, resourceID int64, kind Kind) error
	ListGrantsForUser(ctx context.Context, userID int64) ([]*Grant, error)
}

// Service owns resource registration and grant management, and fronts the
// resolver for callers that check permissions directly.
type Service struct {
	repo     Repository
	resolver *Resolver
	eventBus *events.EventBus
	logger   *slog.Logger
}

func NewService(repo Repository, resolver *Resolver, eventBus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Resolve exposes the resolver decision to boundary code.
func (s *Service) Resolve(ctx context.Context, userID int64, kind Kind, ref *ResourceRef) (bool, error) {
	return s.resolver.Resolve(ctx, userID, kind, ref)
}

// RegisterResource adds a protectable resource node. The parent, when
// given, must already be registered; the (type, external_id) pair must be
// new.
func (s *Service) RegisterResource(ctx context.Context, dto RegisterResourceDTO, actorID int64) (*Resource, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.Find(ctx, dto.Type, dto.ExternalID)
	if err != nil {
		return nil, internal.NewInternalError("failed to look up resource", err)
	}
	if existing != nil {
		return nil, internal.ErrResourceExists
	}

	var parentID *int64
	if dto.Parent != nil {
		parent, err := s.repo.Find(ctx, dto.Parent.Type, dto.Parent.ExternalID)
		if err != nil {
			return nil, internal.NewInternalError("failed to look up parent resource", err)
		}
		if parent == nil {
			return nil, internal.ErrResourceNotFound
		}
		parentID = &parent.ID
	}

	res := &Resource{
		Type:       dto.Type,
		ExternalID: dto.ExternalID,
		Name:       dto.Name,
		ParentID:   parentID,
	}
	if err := s.repo.CreateResource(ctx, res); err != nil {
		return nil, internal.NewInternalError("failed to register resource", err)
	}

	s.logger.Info("resource registered",
		"resource_id", res.ID, "type", res.Type, "external_id", res.ExternalID, "actor_id", actorID)
	s.publish(ctx, events.NewResourceRegisteredEvent(res.ID, res.Type, res.ExternalID, actorID))

	return res, nil
}

// SetResourceParent re-parents a resource. The new parent chain is walked
// upward first: re-parenting is the only write that can close a cycle, so
// this is where the forest invariant is enforced.
func (s *Service) SetResourceParent(ctx context.Context, resourceID int64, parent *ResourceRef, actorID int64) error {
	res, err := s.repo.FindByID(ctx, resourceID)
	if err != nil {
		return internal.NewInternalError("failed to look up resource", err)
	}
	if res == nil {
		return internal.ErrResourceNotFound
	}

	var parentID *int64
	if parent != nil {
		parentRes, err := s.repo.Find(ctx, parent.Type, parent.ExternalID)
		if err != nil {
			return internal.NewInternalError("failed to look up parent resource", err)
		}
		if parentRes == nil {
			return internal.ErrResourceNotFound
		}
		if err := s.checkNoCycle(ctx, resourceID, parentRes); err != nil {
			return err
		}
		parentID = &parentRes.ID
	}

	if err := s.repo.UpdateResourceParent(ctx, resourceID, parentID); err != nil {
		return internal.NewInternalError("failed to update resource parent", err)
	}

	s.logger.Info("resource re-parented", "resource_id", resourceID, "actor_id", actorID)
	return nil
}

// checkNoCycle walks from the candidate parent to the root and fails if
// the chain passes through the resource being re-parented.
func (s *Service) checkNoCycle(ctx context.Context, resourceID int64, parent *Resource) error {
	seen := make(map[int64]struct{}, 4)
	node := parent
	for depth := 0; node != nil; depth++ {
		if node.ID == resourceID {
			return internal.ErrResourceCycle
		}
		if _, ok := seen[node.ID]; ok || depth >= maxWalkDepth {
			// Existing chain is already corrupt; refuse to extend it.
			s.logger.Error("corrupt resource parent chain", "resource_id", node.ID)
			return internal.ErrResourceCycle
		}
		seen[node.ID] = struct{}{}

		if node.ParentID == nil {
			return nil
		}
		next, err := s.repo.FindByID(ctx, *node.ParentID)
		if err != nil {
			return internal.NewInternalError("failed to walk parent chain", err)
		}
		node = next
	}
	return nil
}

func (s *Service) ListResources(ctx context.Context) ([]*Resource, error) {
	resources, err := s.repo.ListResources(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list resources", err)
	}
	return resources, nil
}

// Grant writes an explicit allow or deny for (user, resource, kind),
// replacing any previous grant for the same triple.
func (s *Service) Grant(ctx context.Context, dto GrantDTO, actorID int64) (*Grant, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	res, err := s.repo.Find(ctx, dto.Resource.Type, dto.Resource.ExternalID)
	if err != nil {
		return nil, internal.NewInternalError("failed to look up resource", err)
	}
	if res == nil {
		return nil, internal.ErrResourceNotFound
	}

	var expiresAt *time.Time
	if dto.ExpiresAt != nil {
		t := *dto.ExpiresAt
		expiresAt = &t
	}

	grant := &Grant{
		UserID:     dto.UserID,
		ResourceID: res.ID,
		Kind:       Kind(dto.Kind),
		Granted:    dto.Granted,
		GrantedBy:  &actorID,
		ExpiresAt:  expiresAt,
	}
	if err := s.repo.UpsertGrant(ctx, grant); err != nil {
		return nil, internal.NewInternalError("failed to save grant", err)
	}

	s.logger.Info("grant saved",
		"user_id", grant.UserID, "resource_id", grant.ResourceID,
		"kind", grant.Kind, "granted", grant.Granted, "actor_id", actorID)
	s.publish(ctx, events.NewGrantChangedEvent(grant.UserID, grant.ResourceID, grant.Kind.String(), grant.Granted, actorID))

	return grant, nil
}

// Revoke removes the grant for (user, resource, kind). The user falls back
// to role permissions afterwards.
func (s *Service) Revoke(ctx context.Context, dto RevokeDTO, actorID int64) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	res, err := s.repo.Find(ctx, dto.Resource.Type, dto.Resource.ExternalID)
	if err != nil {
		return internal.NewInternalError("failed to look up resource", err)
	}
	if res == nil {
		return internal.ErrResourceNotFound
	}

	existing, err := s.repo.GetGrant(ctx, dto.UserID, res.ID, Kind(dto.Kind))
	if err != nil {
		return internal.NewInternalError("failed to look up grant", err)
	}
	if existing == nil {
		return internal.ErrGrantNotFound
	}

	if err := s.repo.DeleteGrant(ctx, dto.UserID, res.ID, Kind(dto.Kind)); err != nil {
		return internal.NewInternalError("failed to delete grant", err)
	}

	s.logger.Info("grant revoked",
		"user_id", dto.UserID, "resource_id", res.ID, "kind", dto.Kind, "actor_id", actorID)
	s.publish(ctx, events.NewGrantRevokedEvent(dto.UserID, res.ID, dto.Kind, actorID))

	return nil
}

func (s *Service) ListUserGrants(ctx context.Context, userID int64) ([]*Grant, error) {
	grants, err := s.repo.ListGrantsForUser(ctx, userID)
	if err != nil {
		return nil, internal.NewInternalError("failed to list grants", err)
	}
	return grants, nil
}

func (s *Service) publish(ctx context.Context, event events.BaseEvent) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish audit event", "event_type", event.EventType(), "error", err)
	}
}
