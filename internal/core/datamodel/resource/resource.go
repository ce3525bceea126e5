package resource

import "time"

// Resource is a protectable entity (folder, notebook, document, system).
// Resources form a forest: ParentID is optional and cycles are rejected at
// write time by the permission service, not by the database.
type Resource struct {
	ID           int64     `gorm:"primaryKey"`
	ResourceType string    `gorm:"column:resource_type;not null;uniqueIndex:uq_resource,priority:1"`
	ExternalID   string    `gorm:"column:external_id;not null;uniqueIndex:uq_resource,priority:2"`
	Name         string    `gorm:"column:name"`
	ParentID     *int64    `gorm:"column:parent_id"`
	CreatedAt    time.Time `gorm:"column:created_at;default:now()"`
}

func (Resource) TableName() string {
	return "resources"
}

// Grant ties a user, a resource and a permission kind to an explicit
// allow or deny. An expired grant is treated as absent by the resolver.
type Grant struct {
	ID             int64      `gorm:"primaryKey"`
	UserID         int64      `gorm:"column:user_id;not null;uniqueIndex:uq_user_resource_permission,priority:1;index:ix_grant_user_resource,priority:1"`
	ResourceID     int64      `gorm:"column:resource_id;not null;uniqueIndex:uq_user_resource_permission,priority:2;index:ix_grant_user_resource,priority:2"`
	PermissionCode string     `gorm:"column:permission_code;not null;uniqueIndex:uq_user_resource_permission,priority:3"`
	Granted        bool       `gorm:"column:granted;default:true;not null"`
	GrantedBy      *int64     `gorm:"column:granted_by"`
	ExpiresAt      *time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;default:now()"`
}

func (Grant) TableName() string {
	return "grants"
}
