package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// IsAdmin reports whether role bypasses route role checks.
func IsAdmin(role string) bool { return role == RoleAdmin }

// Valid reports whether role is one the service issues tokens for.
func Valid(role string) bool { return role == RoleAdmin || role == RoleModerator }
