package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/knowledge-gateway/internal/permission"
)

// Stub gate service with scripted behavior per method
type stubService struct {
	loginResult  *LoginResult
	loginErr     error
	identity     *Identity
	authErr      error
	authorizeErr error
	claims       *Claims
	verifyErr    error

	authorizedKind permission.Kind
	authorizedRef  *permission.ResourceRef
}

func (s *stubService) Login(_ context.Context, _ LoginDTO) (*LoginResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubService) Authenticate(_ context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	return s.identity, s.authErr
}

func (s *stubService) Authorize(_ context.Context, _ *Identity, kind permission.Kind, ref *permission.ResourceRef) error {
	s.authorizedKind = kind
	s.authorizedRef = ref
	return s.authorizeErr
}

func (s *stubService) VerifyToken(_ string) (*Claims, error) {
	return s.claims, s.verifyErr
}

var _ = ginkgo.Describe("AuthHandler", func() {
	var (
		handler *Handler
		service *stubService
	)

	ginkgo.BeforeEach(func() {
		service = &stubService{
			identity: &Identity{ID: 2, Email: "editor@example.com", Roles: []string{"editor"}},
			claims:   &Claims{UserID: "2", Email: "editor@example.com", Roles: []string{"editor"}},
		}
		handler = NewHandler(service)
	})

	ginkgo.Describe("Login", func() {
		ginkgo.It("should return the token and identity on success", func() {
			service.loginResult = &LoginResult{
				Token: "signed-token",
				User:  service.identity,
			}

			body, _ := json.Marshal(LoginDTO{Email: "editor@example.com", APIKey: "key"})
			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
			w := httptest.NewRecorder()

			handler.Login(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))

			var result LoginResult
			gomega.Expect(json.NewDecoder(w.Body).Decode(&result)).To(gomega.Succeed())
			gomega.Expect(result.Token).To(gomega.Equal("signed-token"))
			gomega.Expect(result.User.Email).To(gomega.Equal("editor@example.com"))
		})

		ginkgo.It("should map a non-whitelisted email to 401", func() {
			service.loginErr = ErrNotWhitelisted

			body, _ := json.Marshal(LoginDTO{Email: "stranger@example.com", APIKey: "key"})
			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
			w := httptest.NewRecorder()

			handler.Login(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should map a bad gateway key to 401", func() {
			service.loginErr = ErrInvalidAPIKey

			body, _ := json.Marshal(LoginDTO{Email: "editor@example.com", APIKey: "bad"})
			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
			w := httptest.NewRecorder()

			handler.Login(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should reject a malformed body", func() {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte("{not json")))
			w := httptest.NewRecorder()

			handler.Login(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Describe("AuthMiddleware", func() {
		var nextIdentity *Identity

		next := func() http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextIdentity, _ = IdentityFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})
		}

		ginkgo.BeforeEach(func() {
			nextIdentity = nil
		})

		ginkgo.It("should place the identity in the request context", func() {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer token")
			w := httptest.NewRecorder()

			handler.AuthMiddleware(next()).ServeHTTP(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(nextIdentity).ToNot(gomega.BeNil())
			gomega.Expect(nextIdentity.ID).To(gomega.Equal(int64(2)))
		})

		ginkgo.It("should return 401 without a token", func() {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			w := httptest.NewRecorder()

			handler.AuthMiddleware(next()).ServeHTTP(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(nextIdentity).To(gomega.BeNil())
		})

		ginkgo.It("should return 401 for a deactivated user", func() {
			service.authErr = ErrUserInactive

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer token")
			w := httptest.NewRecorder()

			handler.AuthMiddleware(next()).ServeHTTP(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should return 401 for an expired token", func() {
			service.authErr = ErrTokenExpired

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer token")
			w := httptest.NewRecorder()

			handler.AuthMiddleware(next()).ServeHTTP(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.Describe("RequirePermission", func() {
		ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		authedRequest := func(target string) *http.Request {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			return req.WithContext(ContextWithIdentity(req.Context(), service.identity))
		}

		ginkgo.It("should pass an allowed request through", func() {
			w := httptest.NewRecorder()

			handler.RequirePermission(permission.KindManageUsers, "")(ok).ServeHTTP(w, authedRequest("/admin/users"))

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(service.authorizedKind).To(gomega.Equal(permission.KindManageUsers))
			gomega.Expect(service.authorizedRef).To(gomega.BeNil())
		})

		ginkgo.It("should forward the resource ref from the query", func() {
			w := httptest.NewRecorder()

			handler.RequirePermission(permission.KindView, permission.ResourceTypeFolder)(ok).
				ServeHTTP(w, authedRequest("/folders?external_id=F1"))

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(service.authorizedRef).ToNot(gomega.BeNil())
			gomega.Expect(service.authorizedRef.Type).To(gomega.Equal(permission.ResourceTypeFolder))
			gomega.Expect(service.authorizedRef.ExternalID).To(gomega.Equal("F1"))
		})

		ginkgo.It("should map a denial to 403", func() {
			service.authorizeErr = &PermissionDeniedError{Kind: permission.KindManageUsers}
			w := httptest.NewRecorder()

			handler.RequirePermission(permission.KindManageUsers, "")(ok).ServeHTTP(w, authedRequest("/admin/users"))

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusForbidden))
		})

		ginkgo.It("should return 401 without an authenticated identity", func() {
			req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
			w := httptest.NewRecorder()

			handler.RequirePermission(permission.KindManageUsers, "")(ok).ServeHTTP(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.Describe("RequireRoleSnapshot", func() {
		ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		request := func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/admin/roles", nil)
			req.Header.Set("Authorization", "Bearer token")
			return req
		}

		ginkgo.It("should pass when the snapshot carries a required role", func() {
			w := httptest.NewRecorder()

			handler.RequireRoleSnapshot("admin", "editor")(ok).ServeHTTP(w, request())

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
		})

		ginkgo.It("should return 403 when no required role is present", func() {
			w := httptest.NewRecorder()

			handler.RequireRoleSnapshot("super_admin")(ok).ServeHTTP(w, request())

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusForbidden))
		})

		ginkgo.It("should return 401 for an expired token", func() {
			service.claims = nil
			service.verifyErr = ErrTokenExpired
			w := httptest.NewRecorder()

			handler.RequireRoleSnapshot("editor")(ok).ServeHTTP(w, request())

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should return 401 without a token", func() {
			req := httptest.NewRequest(http.MethodGet, "/admin/roles", nil)
			w := httptest.NewRecorder()

			handler.RequireRoleSnapshot("editor")(ok).ServeHTTP(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.Describe("Me", func() {
		ginkgo.It("should return the context identity", func() {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			req = req.WithContext(ContextWithIdentity(req.Context(), service.identity))
			w := httptest.NewRecorder()

			handler.Me(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))

			var identity Identity
			gomega.Expect(json.NewDecoder(w.Body).Decode(&identity)).To(gomega.Succeed())
			gomega.Expect(identity.Email).To(gomega.Equal("editor@example.com"))
		})

		ginkgo.It("should return 401 without one", func() {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			w := httptest.NewRecorder()

			handler.Me(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})
})
