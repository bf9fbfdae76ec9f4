package users

import (
	"strings"
)

// RoleType represents a portal role assigned to an authenticated user
type RoleType string

const (
	RoleCompanyOwner      RoleType = "COMPANY_OWNER"      // Can manage a company and its employees
	RoleCompanyAuthorizer RoleType = "COMPANY_AUTHORIZER" // Can act on behalf of a company owner
	RoleSponsor           RoleType = "SPONSOR"            // Can manage domestic workers
	RoleAdmin             RoleType = "ADMIN"              // Full administrative access
)

// AllRoles is the closed set of roles the portal recognises.
var AllRoles = []RoleType{RoleCompanyOwner, RoleCompanyAuthorizer, RoleSponsor, RoleAdmin}

// PermissionWildcard grants every permission (admin only).
const PermissionWildcard = "*"

var roleLabels = map[RoleType]string{
	RoleCompanyOwner:      "Company Owner",
	RoleCompanyAuthorizer: "Company Authorizer",
	RoleSponsor:           "Sponsor",
	RoleAdmin:             "Administrator",
}

var rolePermissions = map[RoleType][]string{
	RoleCompanyOwner:      {"view_company", "manage_employees", "add_work_permit"},
	RoleCompanyAuthorizer: {"view_company", "manage_employees", "add_work_permit"},
	RoleSponsor:           {"view_sponsor", "manage_domestic_workers"},
	RoleAdmin:             {PermissionWildcard},
}

// Known reports whether the role belongs to the closed enumeration.
func (r RoleType) Known() bool {
	_, ok := roleLabels[r]
	return ok
}

// Label returns the display name for the role
func (r RoleType) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return formatRole(string(r))
}

// Permissions returns the permission set granted by the role
func (r RoleType) Permissions() []string {
	return rolePermissions[r]
}

// User is the authenticated identity attached to a session. It is immutable
// once attached except by a fresh login.
type User struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	NationalID string     `json:"nationalId"` // National identity reference (e.g. Emirates ID)
	Roles      []RoleType `json:"roles"`
	Avatar     string     `json:"avatar,omitempty"`
}

// HasRole reports whether the user holds the given role
func (u *User) HasRole(role RoleType) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the user holds at least one of the given roles.
// An empty required set grants access.
func (u *User) HasAnyRole(required ...RoleType) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if u.HasRole(r) {
			return true
		}
	}
	return false
}

// HasPermission reports whether any of the user's roles grants the permission
func (u *User) HasPermission(permission string) bool {
	for _, role := range u.Roles {
		for _, p := range role.Permissions() {
			if p == PermissionWildcard || p == permission {
				return true
			}
		}
	}
	return false
}

// Initials returns up to two uppercase initials for avatar fallbacks
func (u *User) Initials() string {
	var initials []rune
	for _, part := range strings.Fields(u.Name) {
		runes := []rune(part)
		initials = append(initials, runes[0])
		if len(initials) >= 2 {
			break
		}
	}
	return strings.ToUpper(string(initials))
}

func formatRole(role string) string {
	words := strings.Split(strings.ToLower(role), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
