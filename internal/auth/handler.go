package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/knowledge-gateway/internal"
	"github.com/frahmantamala/knowledge-gateway/internal/permission"
	"github.com/frahmantamala/knowledge-gateway/internal/transport"
	"github.com/frahmantamala/knowledge-gateway/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.Logger.Error("login failed", "error", err)

		switch {
		case errors.Is(err, ErrNotWhitelisted):
			h.WriteError(w, http.StatusUnauthorized, "email is not whitelisted")
		case errors.Is(err, ErrInvalidAPIKey):
			h.WriteError(w, http.StatusUnauthorized, "invalid gateway api key")
		default:
			if appErr, ok := internal.IsAppError(err); ok {
				status, body := appErr.ToHTTPResponse()
				h.WriteJSON(w, status, body)
			} else {
				h.WriteError(w, http.StatusInternalServerError, "internal server error")
			}
		}
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

// Me returns the authenticated identity with roles read fresh by the
// middleware, so a role change shows up here before the token expires.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok || identity == nil {
		h.WriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	h.WriteJSON(w, http.StatusOK, identity)
}

// Logout is a client-side operation for a stateless token; the handler
// only validates the credential so the frontend can clear it confidently.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	if _, err := h.Service.VerifyToken(token); err != nil {
		h.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AuthMiddleware is the hard authentication path: token verification plus
// the identity-store freshness read. Handlers behind it see the identity
// and the actor id in the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)

		identity, err := h.Service.Authenticate(r.Context(), token)
		if err != nil {
			h.writeAuthError(w, err)
			return
		}

		ctx := ContextWithIdentity(r.Context(), identity)
		ctx = internal.ContextWithUserID(ctx, identity.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission gates a route on the resolver's decision. When
// resourceType is non-empty the resource's external id is taken from the
// {external_id} URL param or the external_id query param; absence of both
// degrades to a role-only check, matching how unregistered resources
// resolve.
func (h *Handler) RequirePermission(kind permission.Kind, resourceType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || identity == nil {
				h.WriteError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			var ref *permission.ResourceRef
			if resourceType != "" {
				externalID := chi.URLParam(r, "external_id")
				if externalID == "" {
					externalID = r.URL.Query().Get("external_id")
				}
				if externalID != "" {
					ref = &permission.ResourceRef{Type: resourceType, ExternalID: externalID}
				}
			}

			if err := h.Service.Authorize(r.Context(), identity, kind, ref); err != nil {
				var denied *PermissionDeniedError
				if errors.As(err, &denied) {
					h.Logger.Warn("access denied",
						"user_id", identity.ID, "permission_code", denied.Kind, "path", r.URL.Path)
					h.WriteError(w, http.StatusForbidden, denied.Error())
					return
				}
				h.Logger.Error("authorization check failed", "error", err, "user_id", identity.ID)
				h.WriteError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoleSnapshot is the soft gating path for coarse page-level
// checks: it trusts the token's embedded role snapshot and skips the
// identity-store read. A role downgrade therefore lags by at most the
// token TTL. Anything permission-sensitive must use RequirePermission.
func (h *Handler) RequireRoleSnapshot(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := h.ExtractTokenFromHeader(r)
			if token == "" {
				h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
				return
			}

			claims, err := h.Service.VerifyToken(token)
			if err != nil {
				h.writeAuthError(w, err)
				return
			}

			hasRole := false
			for _, have := range claims.Roles {
				for _, want := range roles {
					if have == want {
						hasRole = true
						break
					}
				}
				if hasRole {
					break
				}
			}

			if !hasRole {
				h.Logger.Warn("access denied: role snapshot lacks required role",
					"user_id", claims.UserID, "required_roles", roles, "token_roles", claims.Roles)
				h.WriteError(w, http.StatusForbidden, "insufficient role")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMissingToken):
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
	case errors.Is(err, ErrTokenExpired):
		h.WriteError(w, http.StatusUnauthorized, "token has expired")
	case errors.Is(err, ErrInvalidToken):
		h.WriteError(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, ErrUserInactive):
		h.WriteError(w, http.StatusUnauthorized, "user not found or deactivated")
	default:
		h.Logger.Error("authentication failed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
