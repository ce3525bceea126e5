package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	resourceDatamodel "github.com/frahmantamala/knowledge-gateway/internal/core/datamodel/resource"
	"github.com/frahmantamala/knowledge-gateway/internal/permission"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) permission.Repository {
	return &Repository{db: db}
}

func (r *Repository) Find(ctx context.Context, resourceType, externalID string) (*permission.Resource, error) {
	var row resourceDatamodel.Resource
	err := r.db.WithContext(ctx).
		Where("resource_type = ? AND external_id = ?", resourceType, externalID).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return toResource(&row), nil
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*permission.Resource, error) {
	var row resourceDatamodel.Resource
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return toResource(&row), nil
}

func (r *Repository) GetGrant(ctx context.Context, userID, resourceID int64, kind permission.Kind) (*permission.Grant, error) {
	var row resourceDatamodel.Grant
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND resource_id = ? AND permission_code = ?", userID, resourceID, kind.String()).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return toGrant(&row), nil
}

func (r *Repository) CreateResource(ctx context.Context, res *permission.Resource) error {
	row := resourceDatamodel.Resource{
		ResourceType: res.Type,
		ExternalID:   res.ExternalID,
		Name:         res.Name,
		ParentID:     res.ParentID,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	res.ID = row.ID
	res.CreatedAt = row.CreatedAt
	return nil
}

func (r *Repository) UpdateResourceParent(ctx context.Context, resourceID int64, parentID *int64) error {
	return r.db.WithContext(ctx).
		Model(&resourceDatamodel.Resource{}).
		Where("id = ?", resourceID).
		Update("parent_id", parentID).Error
}

func (r *Repository) ListResources(ctx context.Context) ([]*permission.Resource, error) {
	var rows []resourceDatamodel.Resource
	if err := r.db.WithContext(ctx).Order("resource_type ASC, name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	resources := make([]*permission.Resource, len(rows))
	for i := range rows {
		resources[i] = toResource(&rows[i])
	}
	return resources, nil
}

// UpsertGrant replaces any existing grant for the same
// (user, resource, kind) triple, flipping allow/deny and expiry in place.
func (r *Repository) UpsertGrant(ctx context.Context, grant *permission.Grant) error {
	row := resourceDatamodel.Grant{
		UserID:         grant.UserID,
		ResourceID:     grant.ResourceID,
		PermissionCode: grant.Kind.String(),
		Granted:        grant.Granted,
		GrantedBy:      grant.GrantedBy,
		ExpiresAt:      grant.ExpiresAt,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "resource_id"}, {Name: "permission_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"granted", "granted_by", "expires_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return err
	}
	grant.ID = row.ID
	grant.CreatedAt = row.CreatedAt
	return nil
}

func (r *Repository) DeleteGrant(ctx context.Context, userID, resourceID int64, kind permission.Kind) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND resource_id = ? AND permission_code = ?", userID, resourceID, kind.String()).
		Delete(&resourceDatamodel.Grant{}).Error
}

func (r *Repository) ListGrantsForUser(ctx context.Context, userID int64) ([]*permission.Grant, error) {
	var rows []resourceDatamodel.Grant
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("resource_id ASC, permission_code ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	grants := make([]*permission.Grant, len(rows))
	for i := range rows {
		grants[i] = toGrant(&rows[i])
	}
	return grants, nil
}

func toResource(row *resourceDatamodel.Resource) *permission.Resource {
	return &permission.Resource{
		ID:         row.ID,
		Type:       row.ResourceType,
		ExternalID: row.ExternalID,
		Name:       row.Name,
		ParentID:   row.ParentID,
		CreatedAt:  row.CreatedAt,
	}
}

func toGrant(row *resourceDatamodel.Grant) *permission.Grant {
	return &permission.Grant{
		ID:         row.ID,
		UserID:     row.UserID,
		ResourceID: row.ResourceID,
		Kind:       permission.Kind(row.PermissionCode),
		Granted:    row.Granted,
		GrantedBy:  row.GrantedBy,
		ExpiresAt:  row.ExpiresAt,
		CreatedAt:  row.CreatedAt,
	}
}
