package permission

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/knowledge-gateway/internal"
	"github.com/frahmantamala/knowledge-gateway/internal/transport"
	"github.com/frahmantamala/knowledge-gateway/pkg/logger"
)

type ServiceAPI interface {
	Resolve(ctx context.Context, userID int64, kind Kind, ref *ResourceRef) (bool, error)
	RegisterResource(ctx context.Context, dto RegisterResourceDTO, actorID int64) (*Resource, error)
	SetResourceParent(ctx context.Context, resourceID int64, parent *ResourceRef, actorID int64) error
	ListResources(ctx context.Context) ([]*Resource, error)
	Grant(ctx context.Context, dto GrantDTO, actorID int64) (*Grant, error)
	Revoke(ctx context.Context, dto RevokeDTO, actorID int64) error
	ListUserGrants(ctx context.Context, userID int64) ([]*Grant, error)
}

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

func (h *Handler) RegisterResource(w http.ResponseWriter, r *http.Request) {
	var dto RegisterResourceDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Service.RegisterResource(r.Context(), dto, internal.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, err, "register resource failed")
		return
	}

	h.WriteJSON(w, http.StatusCreated, res)
}

type setParentRequest struct {
	Parent *ResourceRef `json:"parent"`
}

func (h *Handler) SetResourceParent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid resource id")
		return
	}

	var req setParentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.SetResourceParent(r.Context(), id, req.Parent, internal.UserIDFromContext(r.Context())); err != nil {
		h.writeServiceError(w, err, "set resource parent failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.Service.ListResources(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "list resources failed")
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"resources": resources})
}

func (h *Handler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	var dto GrantDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	grant, err := h.Service.Grant(r.Context(), dto, internal.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, err, "create grant failed")
		return
	}

	h.WriteJSON(w, http.StatusCreated, grant)
}

func (h *Handler) RevokeGrant(w http.ResponseWriter, r *http.Request) {
	var dto RevokeDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.Revoke(r.Context(), dto, internal.UserIDFromContext(r.Context())); err != nil {
		h.writeServiceError(w, err, "revoke grant failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListUserGrants(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	grants, err := h.Service.ListUserGrants(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "list grants failed")
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"grants": grants})
}

// CheckPermission lets boundary services ask for a decision directly:
// GET /permissions/check?permission_code=view&type=folder&external_id=F1.
// The resource params are optional; without them only role permissions
// apply.
func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	code := r.URL.Query().Get("permission_code")
	if code == "" {
		h.WriteError(w, http.StatusBadRequest, "permission_code is required")
		return
	}

	var ref *ResourceRef
	resourceType := r.URL.Query().Get("type")
	externalID := r.URL.Query().Get("external_id")
	if resourceType != "" && externalID != "" {
		ref = &ResourceRef{Type: resourceType, ExternalID: externalID}
	}

	allowed, err := h.Service.Resolve(r.Context(), userID, Kind(code), ref)
	if err != nil {
		h.writeServiceError(w, err, "permission check failed")
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"permission_code": code,
		"allowed":         allowed,
	})
}

func (h *Handler) ListPermissionKinds(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"permission_kinds": Kinds()})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	h.Logger.Error(logMsg, "error", err)
	if appErr, ok := internal.IsAppError(err); ok {
		status, body := appErr.ToHTTPResponse()
		h.WriteJSON(w, status, body)
		return
	}
	h.WriteError(w, http.StatusInternalServerError, "internal server error")
}
