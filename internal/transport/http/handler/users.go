package handler

import (
	"net/http"
	"strconv"

	"github.com/api-yamdb/internal/application/user"
	"github.com/api-yamdb/internal/domain"
	"github.com/api-yamdb/internal/pkg/validate"
	"github.com/api-yamdb/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// UserHandler handles profile endpoints. Admin-only routes are guarded in the router.
type UserHandler struct {
	svc user.Service
}

func NewUserHandler(svc user.Service) *UserHandler { return &UserHandler{svc: svc} }

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, ok := h.me(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateMe patches the caller's own profile. The role field is ignored here.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	me, ok := h.me(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Update(r.Context(), me.Username, req, false)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	users, next, err := h.svc.List(r.Context(), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UsersPageEnvelope{Results: users, Next: next})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	u, err := h.svc.Update(r.Context(), chi.URLParam(r, "username"), req, true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "username")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) me(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	u, err := h.svc.GetByID(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	return u, true
}
