package handler

import (
	"encoding/json"
	"net/http"

	"github.com/api-yamdb/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TokenEnvelope is the body of a successful POST /auth/token.
type TokenEnvelope struct {
	Token string `json:"token"`
}

// UsersPageEnvelope wraps cursor-paginated user list responses.
type UsersPageEnvelope struct {
	Results []domain.User `json:"results"`
	Next    string        `json:"next,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// writeFieldError writes a single {"field": ["message"]} failure.
func writeFieldError(w http.ResponseWriter, status int, field, msg string) {
	writeJSON(w, status, map[string][]string{field: {msg}})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeFieldError(w, http.StatusBadRequest, domain.NonFieldErrors, "invalid request body")
		return false
	}
	return true
}
