package domain

// Role names stored on User.Role and carried in JWT claims.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// ValidRole reports whether name is one of the known roles.
func ValidRole(name string) bool {
	switch name {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}
