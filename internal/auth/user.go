package auth

import (
	"cost-control-api/internal/apierr"
)

type Role string

const (
	RoleViewer         Role = "Viewer"
	RoleProjectManager Role = "ProjectManager"
	RoleAdmin          Role = "Admin"
)

var roleRank = map[Role]int{
	RoleAdmin:          3,
	RoleProjectManager: 2,
	RoleViewer:         1,
}

// User is the authenticated caller.
type User struct {
	UserID     string   `json:"userId"`
	Email      string   `json:"email"`
	GivenName  string   `json:"givenName"`
	FamilyName string   `json:"familyName"`
	Groups     []string `json:"groups"`
	Role       Role     `json:"role"`
}

// RoleFromGroups picks the highest role named by the groups, Viewer if none.
func RoleFromGroups(groups []string) Role {
	role := RoleViewer
	for _, g := range groups {
		r := Role(g)
		if rank, ok := roleRank[r]; ok && rank > roleRank[role] {
			role = r
		}
	}
	return role
}

// UserFromClaims builds the caller identity. A token without a subject
// is not an identity.
func UserFromClaims(c *Claims) (*User, error) {
	if c == nil {
		return nil, apierr.Unauthorized("No authorization claims found")
	}
	if c.Subject == "" {
		return nil, apierr.Unauthorized("Token has no subject")
	}
	groups := []string(c.Groups)
	if groups == nil {
		groups = []string{}
	}
	return &User{
		UserID:     c.Subject,
		Email:      c.Email,
		GivenName:  c.GivenName,
		FamilyName: c.FamilyName,
		Groups:     groups,
		Role:       RoleFromGroups(groups),
	}, nil
}

// HasRole reports whether the user ranks at least min.
func (u *User) HasRole(min Role) bool {
	return u != nil && roleRank[u.Role] >= roleRank[min]
}

// RequireRole fails with UNAUTHORIZED when there is no caller and with
// FORBIDDEN when the caller ranks below min.
func RequireRole(u *User, min Role) error {
	if u == nil {
		return apierr.Unauthorized("Authentication required")
	}
	if !u.HasRole(min) {
		return apierr.Forbidden("Insufficient permissions: " + string(min) + " role required")
	}
	return nil
}
