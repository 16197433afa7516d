package http

import (
	"github.com/api-yamdb/internal/application/auth"
	"github.com/api-yamdb/internal/application/user"
	jwtinfra "github.com/api-yamdb/internal/infrastructure/jwt"
)

// Deps holds the services and token provider the router wires into handlers.
type Deps struct {
	AuthService auth.Service
	UserService user.Service
	JWTProvider *jwtinfra.Provider
}
