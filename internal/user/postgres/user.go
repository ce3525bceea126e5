package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	userDatamodel "github.com/frahmantamala/knowledge-gateway/internal/core/datamodel/user"
	"github.com/frahmantamala/knowledge-gateway/internal/permission"
	"github.com/frahmantamala/knowledge-gateway/internal/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) user.RepositoryAPI {
	return &Repository{db: db}
}

func (r *Repository) GetActiveUser(ctx context.Context, id int64) (*user.User, error) {
	return r.getActive(ctx, "id = ?", id)
}

func (r *Repository) GetActiveUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getActive(ctx, "email = ?", email)
}

// getActive filters on is_active so a deactivated account reads as absent.
// Callers treat nil as revoked.
func (r *Repository) getActive(ctx context.Context, cond string, arg interface{}) (*user.User, error) {
	var row userDatamodel.User
	err := r.db.WithContext(ctx).Where(cond, arg).Where("is_active = ?", true).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	roles, err := r.GetRoles(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	return user.FromDataModelWithRoles(&row, roles), nil
}

func (r *Repository) GetRoles(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.WithContext(ctx).Raw(`
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ?
		ORDER BY r.priority DESC`, userID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

func (r *Repository) GetRolePermissionKinds(ctx context.Context, roleNames []string) ([]permission.Kind, error) {
	if len(roleNames) == 0 {
		return nil, nil
	}

	rows, err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT rp.permission_code
		FROM role_permissions rp
		JOIN roles r ON r.id = rp.role_id
		WHERE r.name IN ?`, roleNames).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kinds []permission.Kind
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		kinds = append(kinds, permission.Kind(code))
	}
	return kinds, rows.Err()
}

func (r *Repository) ListUsers(ctx context.Context) ([]*user.User, error) {
	var rows []userDatamodel.User
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	users := make([]*user.User, 0, len(rows))
	for i := range rows {
		roles, err := r.GetRoles(ctx, rows[i].ID)
		if err != nil {
			return nil, err
		}
		users = append(users, user.FromDataModelWithRoles(&rows[i], roles))
	}
	return users, nil
}

func (r *Repository) CreateUser(ctx context.Context, u *user.User, roles []string) error {
	row := userDatamodel.User{
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		IsActive:  u.IsActive,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return assignRoles(tx, row.ID, roles)
	})
	if err != nil {
		return err
	}

	u.ID = row.ID
	u.CreatedAt = row.CreatedAt
	u.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *Repository) UpdateUser(ctx context.Context, id int64, name *string, isActive *bool) error {
	updates := map[string]interface{}{"updated_at": time.Now()}
	if name != nil {
		updates["name"] = *name
	}
	if isActive != nil {
		updates["is_active"] = *isActive
	}

	result := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *Repository) ReplaceRoles(ctx context.Context, userID int64, roles []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&userDatamodel.UserRole{}).Error; err != nil {
			return err
		}
		return assignRoles(tx, userID, roles)
	})
}

func (r *Repository) TouchLastLogin(ctx context.Context, userID int64, name, avatarURL string, at time.Time) error {
	updates := map[string]interface{}{"last_login_at": at, "updated_at": at}
	if name != "" {
		// Only fill the name when the whitelist entry was created without one.
		var current string
		if err := r.db.WithContext(ctx).Raw(`SELECT name FROM users WHERE id = ?`, userID).Row().Scan(&current); err != nil {
			return err
		}
		if current == "" {
			updates["name"] = name
		}
	}
	if avatarURL != "" {
		updates["avatar_url"] = avatarURL
	}

	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", userID).Updates(updates).Error
}

func (r *Repository) ListRoles(ctx context.Context) ([]*user.Role, error) {
	var rows []userDatamodel.Role
	if err := r.db.WithContext(ctx).Order("priority DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	roles := make([]*user.Role, len(rows))
	for i, row := range rows {
		roles[i] = &user.Role{
			ID:          row.ID,
			Name:        row.Name,
			Description: row.Description,
			Priority:    row.Priority,
		}
	}
	return roles, nil
}

func assignRoles(tx *gorm.DB, userID int64, roles []string) error {
	for _, roleName := range roles {
		var role userDatamodel.Role
		if err := tx.Where("name = ?", roleName).First(&role).Error; err != nil {
			return err
		}
		userRole := userDatamodel.UserRole{UserID: userID, RoleID: role.ID}
		if err := tx.Create(&userRole).Error; err != nil {
			return err
		}
	}
	return nil
}
