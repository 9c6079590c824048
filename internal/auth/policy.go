package auth

import (
	"fmt"
	"path"
	"strings"

	"github.com/bookstore/auth-service/internal/domain"
)

// RequirementKind selects what a rule demands of the caller.
type RequirementKind int

const (
	PermitAll RequirementKind = iota
	RequireAuthenticated
	RequireAnyRole
)

// Requirement is a rule's demand; Roles is only read for RequireAnyRole.
type Requirement struct {
	Kind  RequirementKind
	Roles []string
}

// Permit lets anyone through.
func Permit() Requirement { return Requirement{Kind: PermitAll} }

// Authenticated requires any verified principal.
func Authenticated() Requirement { return Requirement{Kind: RequireAuthenticated} }

// AnyRole requires a principal holding at least one of roles.
func AnyRole(roles ...string) Requirement {
	return Requirement{Kind: RequireAnyRole, Roles: roles}
}

// Decision is the outcome of evaluating a request against the policy.
type Decision int

const (
	DecisionPermit Decision = iota
	DecisionDenyUnauthenticated
	DecisionDenyForbidden
)

func (d Decision) String() string {
	switch d {
	case DecisionPermit:
		return "permit"
	case DecisionDenyUnauthenticated:
		return "deny_unauthenticated"
	case DecisionDenyForbidden:
		return "deny_forbidden"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Rule binds a method and path pattern to a requirement. Method "" or "*"
// matches any method. Pattern segments are literals, "*" or "{name}" for one
// segment, and a final "**" for zero or more trailing segments.
type Rule struct {
	Method      string
	Pattern     string
	Requirement Requirement
}

type compiledRule struct {
	method      string
	segments    []string
	tail        bool
	requirement Requirement
}

// Policy is an ordered rule table. The first matching rule wins; requests
// matching nothing fall back to RequireAuthenticated. A Policy is immutable
// after construction and safe for concurrent use.
type Policy struct {
	rules []compiledRule
}

// NewPolicy compiles rules in order.
func NewPolicy(rules []Rule) (*Policy, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		cr, err := compileRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s %s): %w", i, r.Method, r.Pattern, err)
		}
		compiled = append(compiled, cr)
	}
	return &Policy{rules: compiled}, nil
}

func compileRule(r Rule) (compiledRule, error) {
	if !strings.HasPrefix(r.Pattern, "/") {
		return compiledRule{}, fmt.Errorf("pattern must start with /")
	}
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method == "*" {
		method = ""
	}
	segments := splitPath(r.Pattern)
	tail := false
	for i, seg := range segments {
		if seg == "**" {
			if i != len(segments)-1 {
				return compiledRule{}, fmt.Errorf("** only allowed as the last segment")
			}
			tail = true
			segments = segments[:i]
		}
	}
	if r.Requirement.Kind == RequireAnyRole && len(r.Requirement.Roles) == 0 {
		return compiledRule{}, fmt.Errorf("RequireAnyRole needs at least one role")
	}
	req := r.Requirement
	req.Roles = append([]string(nil), r.Requirement.Roles...)
	return compiledRule{method: method, segments: segments, tail: tail, requirement: req}, nil
}

// Decide evaluates method and path for principal, which is nil for
// anonymous requests.
func (p *Policy) Decide(method, requestPath string, principal *domain.Principal) Decision {
	return evaluate(p.Requirement(method, requestPath), principal)
}

// Requirement returns the requirement of the first matching rule.
func (p *Policy) Requirement(method, requestPath string) Requirement {
	method = strings.ToUpper(method)
	segments := splitPath(normalizePath(requestPath))
	for _, r := range p.rules {
		if r.matches(method, segments) {
			return r.requirement
		}
	}
	return Authenticated()
}

func evaluate(req Requirement, principal *domain.Principal) Decision {
	switch req.Kind {
	case PermitAll:
		return DecisionPermit
	case RequireAnyRole:
		if principal == nil {
			return DecisionDenyUnauthenticated
		}
		if principal.HasAnyRole(req.Roles...) {
			return DecisionPermit
		}
		return DecisionDenyForbidden
	default:
		if principal == nil {
			return DecisionDenyUnauthenticated
		}
		return DecisionPermit
	}
}

func (r compiledRule) matches(method string, segments []string) bool {
	if r.method != "" && r.method != method {
		return false
	}
	if r.tail {
		if len(segments) < len(r.segments) {
			return false
		}
	} else if len(segments) != len(r.segments) {
		return false
	}
	for i, want := range r.segments {
		if isWildcardSegment(want) {
			continue
		}
		// Routing is case-insensitive, so matching must be too.
		if !strings.EqualFold(want, segments[i]) {
			return false
		}
	}
	return true
}

func isWildcardSegment(seg string) bool {
	return seg == "*" || (strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"))
}

// normalizePath collapses duplicate slashes, dot segments and a trailing
// slash so "/books/1/" and "//books/./1" evaluate like "/books/1".
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
