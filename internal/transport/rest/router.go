package rest

import (
	"database/sql"
	"log/slog"

	"github.com/frahmantamala/knowledge-gateway/internal/auth"
	"github.com/frahmantamala/knowledge-gateway/internal/permission"
	"github.com/frahmantamala/knowledge-gateway/internal/transport/middleware"
	"github.com/frahmantamala/knowledge-gateway/internal/user"
	"github.com/go-chi/chi"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, authHandler *auth.Handler, userHandler *user.Handler, permissionHandler *permission.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Mount API under /api/v1
	router.Route("/api/v1", func(r chi.Router) {
		// Health check routes
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Auth routes
		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", authHandler.Login)
			sr.Post("/logout", authHandler.Logout)

			sr.Group(func(pr chi.Router) {
				pr.Use(authHandler.AuthMiddleware)
				pr.Get("/me", authHandler.Me)
			})
		})

		// Coarse page-level reads; the token's role snapshot is enough here
		r.Group(func(sr chi.Router) {
			sr.Use(authHandler.RequireRoleSnapshot(permission.RoleSuperAdmin, "admin"))
			sr.Get("/admin/roles", userHandler.ListRoles)
			sr.Get("/admin/permission-kinds", permissionHandler.ListPermissionKinds)
		})

		// Protected routes that require fresh authentication
		r.Group(func(pr chi.Router) {
			pr.Use(authHandler.AuthMiddleware)

			// Permission check for the frontend and upstream services
			pr.Get("/permissions/check", permissionHandler.CheckPermission)

			// User administration
			pr.Route("/admin/users", func(ur chi.Router) {
				ur.Use(authHandler.RequirePermission(permission.KindManageUsers, ""))
				ur.Get("/", userHandler.ListUsers)
				ur.Post("/", userHandler.CreateUser)
				ur.Patch("/{id}", userHandler.UpdateUser)
				ur.Delete("/{id}", userHandler.DeactivateUser)
			})

			// Resource registry and grant administration
			pr.Group(func(ar chi.Router) {
				ar.Use(authHandler.RequirePermission(permission.KindManagePermissions, ""))

				ar.Route("/admin/resources", func(rr chi.Router) {
					rr.Post("/", permissionHandler.RegisterResource)
					rr.Get("/", permissionHandler.ListResources)
					rr.Patch("/{id}/parent", permissionHandler.SetResourceParent)
				})

				ar.Route("/admin/grants", func(gr chi.Router) {
					gr.Post("/", permissionHandler.CreateGrant)
					gr.Delete("/", permissionHandler.RevokeGrant)
					gr.Get("/users/{id}", permissionHandler.ListUserGrants)
				})
			})
		})
	})
}
