package auth

import "slices"

// Identity is the authorization context threaded explicitly through
// every core operation: who the caller is and whether the community
// gate (guild membership plus an allowed role) let them in. It is never
// read from ambient state.
type Identity struct {
	UserID     string
	Authorized bool
	Roles      []string
}

// Identity derives the authorization context from the verified claims.
// Authorized requires membership in guildID and at least one of
// allowedRoles.
func (c *Claims) Identity(guildID string, allowedRoles []string) Identity {
	member := slices.Contains(c.GuildIDs, guildID)

	hasRole := false
	for _, role := range c.RoleIDs {
		if slices.Contains(allowedRoles, role) {
			hasRole = true
			break
		}
	}

	return Identity{
		UserID:     c.UserID,
		Authorized: member && hasRole,
		Roles:      c.RoleIDs,
	}
}

// HasAnyRole reports whether the identity carries one of the given roles.
func (id Identity) HasAnyRole(roles []string) bool {
	for _, role := range id.Roles {
		if slices.Contains(roles, role) {
			return true
		}
	}
	return false
}
