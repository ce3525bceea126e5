package user

import "time"

// User is a whitelisted account. Admins add users before they can log in
// through the gateway's OAuth frontend; deactivation is a soft delete.
type User struct {
	ID          int64      `gorm:"primaryKey"`
	Email       string     `gorm:"column:email;uniqueIndex;not null"`
	Name        string     `gorm:"column:name"`
	AvatarURL   string     `gorm:"column:avatar_url"`
	IsActive    bool       `gorm:"column:is_active;default:true"`
	CreatedAt   time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;default:now()"`
	LastLoginAt *time.Time `gorm:"column:last_login_at"`
}

func (User) TableName() string {
	return "users"
}

// Role groups permission kinds. Higher priority means more powerful.
type Role struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"column:name;uniqueIndex;not null"`
	Description string `gorm:"column:description"`
	Priority    int    `gorm:"column:priority;default:0;not null"`
}

func (Role) TableName() string {
	return "roles"
}

type UserRole struct {
	ID         int64     `gorm:"primaryKey"`
	UserID     int64     `gorm:"column:user_id;not null;uniqueIndex:uq_user_role,priority:1"`
	RoleID     int64     `gorm:"column:role_id;not null;uniqueIndex:uq_user_role,priority:2"`
	AssignedAt time.Time `gorm:"column:assigned_at;default:now()"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

// RolePermission maps a role to a permission kind code. The catalog of
// codes lives in the permission package, not in the database.
type RolePermission struct {
	ID             int64  `gorm:"primaryKey"`
	RoleID         int64  `gorm:"column:role_id;not null;uniqueIndex:uq_role_permission,priority:1"`
	PermissionCode string `gorm:"column:permission_code;not null;uniqueIndex:uq_role_permission,priority:2"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}
