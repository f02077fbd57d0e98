// Package rbac normalizes the global account roles carried in access tokens.
// Board-level authorization lives in the board package; the global ADMIN
// role only matters there as the "member with administrative role" half of
// the manager predicate, and for user administration endpoints.
package rbac

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}

func IsAdmin(role string) bool {
	return Normalize(role) == RoleAdmin
}
