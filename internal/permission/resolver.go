package permission

import (
	"context"
	"log/slog"
	"time"
)

// maxWalkDepth caps the inheritance walk. The resource forest is shallow
// in practice (folder > notebook > document); anything deeper than this is
// a data bug and resolution falls through instead of recursing forever.
const maxWalkDepth = 32

// Resolver decides allow/deny for (user, kind, resource). It is stateless
// per call: grants and roles are read fresh on every resolution so admin
// edits take effect immediately, and concurrent calls need no coordination.
type Resolver struct {
	identities IdentityStore
	resources  ResourceStore
	now        Clock
	logger     *slog.Logger
}

func NewResolver(identities IdentityStore, resources ResourceStore, now Clock, logger *slog.Logger) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		identities: identities,
		resources:  resources,
		now:        now,
		logger:     logger,
	}
}

// Resolve runs the layered decision procedure:
//
//  1. unknown kind -> deny
//  2. super_admin role -> allow
//  3. explicit grant on the resource, or inherited from the nearest
//     ancestor that has one -> its granted flag (allow or deny)
//  4. any of the user's roles maps to the kind -> allow
//  5. default deny
//
// An explicit deny found in step 3 is final; it is not overridable by a
// role grant. Expired grants and unregistered resources are transparent.
func (r *Resolver) Resolve(ctx context.Context, userID int64, kind Kind, ref *ResourceRef) (bool, error) {
	if !kind.Valid() {
		r.logger.Warn("permission check for unknown kind", "kind", kind, "user_id", userID)
		return false, nil
	}

	roles, err := r.identities.GetRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if role == RoleSuperAdmin {
			return true, nil
		}
	}

	if ref != nil {
		decision, err := r.resolveOnResource(ctx, userID, kind, *ref)
		if err != nil {
			return false, err
		}
		if decision != nil {
			return *decision, nil
		}
	}

	kinds, err := r.identities.GetRolePermissionKinds(ctx, roles)
	if err != nil {
		return false, err
	}
	for _, k := range kinds {
		if k == kind {
			return true, nil
		}
	}

	return false, nil
}

// resolveOnResource walks the parent chain upward looking for the nearest
// unexpired grant. It returns nil when no ancestor holds one, so the
// caller falls through to role permissions. The visited set plus depth cap
// guard against a cyclic parent chain; a detected cycle is logged and
// treated as "no grant found" rather than an error.
func (r *Resolver) resolveOnResource(ctx context.Context, userID int64, kind Kind, ref ResourceRef) (*bool, error) {
	res, err := r.resources.Find(ctx, ref.Type, ref.ExternalID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		// Unregistered resources rely on role permissions only.
		return nil, nil
	}

	visited := make(map[int64]struct{}, 4)
	for depth := 0; res != nil; depth++ {
		if depth >= maxWalkDepth {
			r.logger.Error("inheritance walk exceeded max depth",
				"resource_id", res.ID, "resource_type", res.Type, "depth", depth)
			return nil, nil
		}
		if _, seen := visited[res.ID]; seen {
			r.logger.Error("cycle detected in resource parent chain",
				"resource_id", res.ID, "resource_type", res.Type, "external_id", res.ExternalID)
			return nil, nil
		}
		visited[res.ID] = struct{}{}

		grant, err := r.resources.GetGrant(ctx, userID, res.ID, kind)
		if err != nil {
			return nil, err
		}
		if grant != nil && !grant.Expired(r.now()) {
			return &grant.Granted, nil
		}

		if res.ParentID == nil {
			return nil, nil
		}
		res, err = r.resources.FindByID(ctx, *res.ParentID)
		if err != nil {
			return nil, err
		}
	}

	return nil, nil
}
