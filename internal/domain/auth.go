package domain

import "sort"

// Role names known to the access policy. The set is open: any name stored in
// the roles table is a valid role, but these are the ones the route rules use.
const (
	RoleEmployee    = "EMPLOYEE"
	RoleBookManager = "BOOK_MANAGER"
	RoleAdmin       = "ADMIN"
)

// DefaultRole is granted on registration.
const DefaultRole = RoleEmployee

// Role is a named permission group. Roles do not imply one another.
type Role struct {
	ID   string
	Name string
}

// Principal is the verified identity attached to a single request.
type Principal struct {
	Subject string
	roles   map[string]struct{}
}

// NewPrincipal builds a principal from a subject and its role names.
func NewPrincipal(subject string, roles []string) *Principal {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return &Principal{Subject: subject, roles: set}
}

// HasRole reports exact, case-sensitive membership.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	_, ok := p.roles[role]
	return ok
}

// HasAnyRole reports whether at least one of roles is held.
func (p *Principal) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

// Roles returns the role names sorted for stable output.
func (p *Principal) Roles() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.roles))
	for r := range p.roles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
