package handler

import (
	"net/http"

	"github.com/api-yamdb/internal/application/auth"
	"github.com/api-yamdb/internal/domain"
	"github.com/api-yamdb/internal/pkg/validate"
)

// AuthHandler serves the sign-up and token endpoints. Both are public.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

// SignUp registers a user and mails a confirmation code.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req domain.SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := h.svc.SignUp(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Token exchanges a confirmation code for a session token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req domain.TokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	token, err := h.svc.IssueToken(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{Token: token})
}
