package permission

import (
	"context"
	"time"
)

// Kind is one action category from the closed permission catalog. Codes
// outside the catalog resolve to deny, never to an error.
type Kind string

const (
	KindView              Kind = "view"
	KindUpload            Kind = "upload"
	KindEdit              Kind = "edit"
	KindDelete            Kind = "delete"
	KindApprove           Kind = "approve"
	KindManageUsers       Kind = "manage_users"
	KindManagePermissions Kind = "manage_permissions"
)

// Kinds lists the full catalog in display order.
func Kinds() []Kind {
	return []Kind{
		KindView,
		KindUpload,
		KindEdit,
		KindDelete,
		KindApprove,
		KindManageUsers,
		KindManagePermissions,
	}
}

func (k Kind) Valid() bool {
	switch k {
	case KindView, KindUpload, KindEdit, KindDelete, KindApprove, KindManageUsers, KindManagePermissions:
		return true
	}
	return false
}

func (k Kind) String() string {
	return string(k)
}

// RoleSuperAdmin short-circuits resolution: members hold every permission
// kind on every resource, registered or not.
const RoleSuperAdmin = "super_admin"

// Resource types the gateway protects. "system" is a synthetic root used
// for gateway-wide grants.
const (
	ResourceTypeFolder   = "folder"
	ResourceTypeNotebook = "notebook"
	ResourceTypeDocument = "document"
	ResourceTypeSystem   = "system"
)

func ResourceTypes() []string {
	return []string{ResourceTypeFolder, ResourceTypeNotebook, ResourceTypeDocument, ResourceTypeSystem}
}

// ResourceRef identifies a resource by its owning system's ID, e.g. a
// Google Drive folder ID. Registration is optional: an unregistered ref
// resolves through role permissions only.
type ResourceRef struct {
	Type       string `json:"type"`
	ExternalID string `json:"external_id"`
}

// Resource is the domain view of a registered resource node.
type Resource struct {
	ID         int64     `json:"id"`
	Type       string    `json:"type"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	ParentID   *int64    `json:"parent_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r *Resource) Ref() ResourceRef {
	return ResourceRef{Type: r.Type, ExternalID: r.ExternalID}
}

// Grant is an explicit allow or deny of one kind for one user on one
// resource. Granted=false is an explicit deny that a role grant cannot
// override.
type Grant struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	ResourceID int64      `json:"resource_id"`
	Kind       Kind       `json:"permission_code"`
	Granted    bool       `json:"granted"`
	GrantedBy  *int64     `json:"granted_by,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Expired reports whether the grant's expiry has passed at the given time.
func (g *Grant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && !now.Before(*g.ExpiresAt)
}

// IdentityStore is the read surface the resolver needs from the identity
// layer. The resolver never mutates identity.
type IdentityStore interface {
	GetRoles(ctx context.Context, userID int64) ([]string, error)
	GetRolePermissionKinds(ctx context.Context, roleNames []string) ([]Kind, error)
}

// ResourceStore is the read surface over the resource tree and its grants.
// Find and FindByID return nil without error when nothing matches.
type ResourceStore interface {
	Find(ctx context.Context, resourceType, externalID string) (*Resource, error)
	FindByID(ctx context.Context, id int64) (*Resource, error)
	GetGrant(ctx context.Context, userID, resourceID int64, kind Kind) (*Grant, error)
}

// Clock is injected so grant-expiry decisions are testable.
type Clock func() time.Time
