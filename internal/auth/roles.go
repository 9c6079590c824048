package auth

import "github.com/bookstore/auth-service/internal/domain"

// StaffRoles is every role that may read user records.
var StaffRoles = []string{domain.RoleEmployee, domain.RoleBookManager, domain.RoleAdmin}

// DefaultRules is the bookstore access table. Order matters: management
// routes are listed before the broader read rules they would otherwise
// fall under.
func DefaultRules() []Rule {
	bookManager := AnyRole(domain.RoleBookManager)
	admin := AnyRole(domain.RoleAdmin)

	return []Rule{
		{Method: "*", Pattern: "/auth/**", Requirement: Permit()},
		{Method: "GET", Pattern: "/health/metrics", Requirement: admin},

		{Method: "*", Pattern: "/swagger-ui/**", Requirement: Permit()},
		{Method: "*", Pattern: "/swagger-ui.html", Requirement: Permit()},
		{Method: "*", Pattern: "/v3/api-docs/**", Requirement: Permit()},

		{Method: "POST", Pattern: "/books/manage", Requirement: bookManager},
		{Method: "PUT", Pattern: "/books/{id}/manage", Requirement: bookManager},
		{Method: "DELETE", Pattern: "/books/{id}/manage", Requirement: bookManager},
		{Method: "POST", Pattern: "/books", Requirement: bookManager},
		{Method: "PUT", Pattern: "/books/{id}", Requirement: bookManager},
		{Method: "DELETE", Pattern: "/books/{id}", Requirement: bookManager},

		{Method: "PUT", Pattern: "/users/{id}/manage", Requirement: admin},
		{Method: "DELETE", Pattern: "/users/{id}/manage", Requirement: admin},
		{Method: "PUT", Pattern: "/users/{id}/role", Requirement: admin},
		{Method: "PUT", Pattern: "/users/{id}", Requirement: admin},
		{Method: "DELETE", Pattern: "/users/{id}", Requirement: admin},

		{Method: "GET", Pattern: "/books", Requirement: Permit()},
		{Method: "GET", Pattern: "/books/{id}", Requirement: Permit()},

		{Method: "*", Pattern: "/users", Requirement: AnyRole(StaffRoles...)},
		{Method: "*", Pattern: "/users/{id}", Requirement: AnyRole(StaffRoles...)},
	}
}

// DefaultPolicy compiles DefaultRules.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultRules())
	if err != nil {
		panic(err)
	}
	return p
}
