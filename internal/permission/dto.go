package permission

import (
	"time"

	errors "github.com/frahmantamala/knowledge-gateway/internal"
	"github.com/frahmantamala/knowledge-gateway/internal/core/common/validation"
)

// RegisterResourceDTO is the transport shape for registering a protectable
// resource, optionally under a parent.
type RegisterResourceDTO struct {
	Type       string       `json:"type"`
	ExternalID string       `json:"external_id"`
	Name       string       `json:"name"`
	Parent     *ResourceRef `json:"parent,omitempty"`
}

func (d RegisterResourceDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("type", d.Type).Required().OneOf(ResourceTypes(), errors.ErrCodeValidationFailed)
	v.Field("external_id", d.ExternalID).Required().MaxLength(255)
	v.Field("name", d.Name).MaxLength(255)
	if d.Parent != nil {
		v.Field("parent.type", d.Parent.Type).Required().OneOf(ResourceTypes(), errors.ErrCodeValidationFailed)
		v.Field("parent.external_id", d.Parent.ExternalID).Required()
	}
	return v.Validate()
}

// GrantDTO creates or replaces an explicit allow/deny grant.
type GrantDTO struct {
	UserID    int64       `json:"user_id"`
	Resource  ResourceRef `json:"resource"`
	Kind      string      `json:"permission_code"`
	Granted   bool        `json:"granted"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

func (d GrantDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("user_id", d.UserID).Required()
	v.Field("resource.type", d.Resource.Type).Required().OneOf(ResourceTypes(), errors.ErrCodeValidationFailed)
	v.Field("resource.external_id", d.Resource.ExternalID).Required()
	v.Field("permission_code", d.Kind).Required().OneOf(kindStrings(), errors.ErrCodeUnknownPermissionKind)
	return v.Validate()
}

// RevokeDTO removes a grant for a (user, resource, kind) triple.
type RevokeDTO struct {
	UserID   int64       `json:"user_id"`
	Resource ResourceRef `json:"resource"`
	Kind     string      `json:"permission_code"`
}

func (d RevokeDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("user_id", d.UserID).Required()
	v.Field("resource.type", d.Resource.Type).Required()
	v.Field("resource.external_id", d.Resource.ExternalID).Required()
	v.Field("permission_code", d.Kind).Required().OneOf(kindStrings(), errors.ErrCodeUnknownPermissionKind)
	return v.Validate()
}

func kindStrings() []string {
	kinds := Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out
}
