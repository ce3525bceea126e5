package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/frahmantamala/knowledge-gateway/internal/permission"
	"github.com/spf13/cobra"
)

type seedRole struct {
	Name        string
	Description string
	Priority    int
	Kinds       []permission.Kind
}

var defaultRoles = []seedRole{
	{"super_admin", "Full system access", 100, permission.Kinds()},
	{"admin", "Manage users, approve, edit, view", 90, []permission.Kind{
		permission.KindView, permission.KindUpload, permission.KindEdit,
		permission.KindDelete, permission.KindApprove, permission.KindManageUsers,
	}},
	{"approver", "Approve documents, view", 70, []permission.Kind{
		permission.KindView, permission.KindApprove,
	}},
	{"editor", "Upload, edit, view", 50, []permission.Kind{
		permission.KindView, permission.KindUpload, permission.KindEdit,
	}},
	{"viewer", "View only", 10, []permission.Kind{permission.KindView}},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with default roles and permissions",
	Long:  `Seed the role catalog and role permissions, and optionally create the initial super_admin user.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		db, err := initGorm(sqlxDB)
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		for _, r := range defaultRoles {
			var roleID int64
			row := db.Raw("SELECT id FROM roles WHERE name = ?", r.Name).Row()
			if err := row.Scan(&roleID); err != nil {
				if err := db.Exec("INSERT INTO roles (name, description, priority) VALUES (?, ?, ?)",
					r.Name, r.Description, r.Priority).Error; err != nil {
					log.Fatalf("failed to insert role %s: %v", r.Name, err)
				}
				if err := db.Raw("SELECT id FROM roles WHERE name = ?", r.Name).Row().Scan(&roleID); err != nil {
					log.Fatalf("role not found after insert %s: %v", r.Name, err)
				}
				fmt.Println("Seeded role:", r.Name)
			}

			for _, kind := range r.Kinds {
				var exists int
				if err := db.Raw("SELECT 1 FROM role_permissions WHERE role_id = ? AND permission_code = ?",
					roleID, kind.String()).Row().Scan(&exists); err == nil {
					continue
				}
				if err := db.Exec("INSERT INTO role_permissions (role_id, permission_code) VALUES (?, ?)",
					roleID, kind.String()).Error; err != nil {
					log.Fatalf("failed to map permission %s to role %s: %v", kind, r.Name, err)
				}
			}
		}

		fmt.Println("Role permissions seeded successfully")

		if seedAdminEmail == "" {
			return
		}

		var exists int
		if err := db.Raw("SELECT 1 FROM users WHERE email = ?", seedAdminEmail).Row().Scan(&exists); err == nil {
			fmt.Println("admin user already exists:", seedAdminEmail)
			return
		}

		name := seedAdminName
		if name == "" {
			name = strings.SplitN(seedAdminEmail, "@", 2)[0]
		}

		if err := db.Exec("INSERT INTO users (email, name, is_active, created_at, updated_at) VALUES (?, ?, true, now(), now())",
			seedAdminEmail, name).Error; err != nil {
			log.Fatalf("failed to insert admin user: %v", err)
		}

		var adminUserID, adminRoleID int64
		if err := db.Raw("SELECT id FROM users WHERE email = ?", seedAdminEmail).Row().Scan(&adminUserID); err != nil {
			log.Fatalf("failed to lookup admin user id: %v", err)
		}
		if err := db.Raw("SELECT id FROM roles WHERE name = ?", permission.RoleSuperAdmin).Row().Scan(&adminRoleID); err != nil {
			log.Fatalf("failed to lookup super_admin role id: %v", err)
		}

		if err := db.Exec("INSERT INTO user_roles (user_id, role_id, assigned_at) VALUES (?, ?, now())",
			adminUserID, adminRoleID).Error; err != nil {
			log.Fatalf("failed to assign super_admin role: %v", err)
		}

		fmt.Println("Created initial super_admin user:", seedAdminEmail)
	},
}
