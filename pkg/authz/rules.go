// Package authz implements the route authorization table: a declarative,
// startup-built, immutable mapping from (HTTP method, path pattern) to an
// authorization predicate, evaluated with first-match-wins semantics.
package authz

import (
	"path"
	"strings"

	"github.com/openskills/skillhub/pkg/auth"
)

// PredicateKind classifies an authorization requirement.
type PredicateKind int

const (
	// Public routes permit anonymous access.
	Public PredicateKind = iota
	// Authenticated routes require any identity, with no role check.
	Authenticated
	// AnyOf routes require at least one role from the attached set.
	AnyOf
	// Deny routes reject every request unconditionally.
	Deny
)

func (k PredicateKind) String() string {
	switch k {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case AnyOf:
		return "any-of"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}

// Predicate is the authorization requirement attached to a route rule.
type Predicate struct {
	Kind  PredicateKind
	Roles []string
}

// Allows evaluates the predicate against a (possibly nil) identity.
func (p Predicate) Allows(identity *auth.Identity) bool {
	switch p.Kind {
	case Public:
		return true
	case Authenticated:
		return identity != nil
	case AnyOf:
		return identity.HasAnyRole(p.Roles...)
	default:
		return false
	}
}

// Equal reports whether two predicates are identical, including role order.
func (p Predicate) Equal(other Predicate) bool {
	if p.Kind != other.Kind || len(p.Roles) != len(other.Roles) {
		return false
	}
	for i := range p.Roles {
		if p.Roles[i] != other.Roles[i] {
			return false
		}
	}
	return true
}

func publicRule() Predicate        { return Predicate{Kind: Public} }
func authenticatedRule() Predicate { return Predicate{Kind: Authenticated} }
func denyRule() Predicate          { return Predicate{Kind: Deny} }
func anyOfRule(roles ...string) Predicate {
	return Predicate{Kind: AnyOf, Roles: roles}
}

// Rule maps one (method, pattern) pair to a predicate. An empty method
// matches every method.
type Rule struct {
	Method    string
	Pattern   string
	Predicate Predicate
}

// Matches reports whether the rule covers the given request.
func (r Rule) Matches(method, requestPath string) bool {
	if r.Method != "" && r.Method != method {
		return false
	}
	return patternMatches(r.Pattern, requestPath)
}

// patternMatches implements ant-style matching: literal segments, {var}
// single-segment wildcards, glob segments such as *.js, and a trailing /**
// that matches the prefix itself plus any descendant path.
func patternMatches(pattern, requestPath string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		if prefix == "" {
			return true
		}
		return requestPath == prefix || strings.HasPrefix(requestPath, prefix+"/")
	}

	patSegs := splitPath(pattern)
	reqSegs := splitPath(requestPath)
	if len(patSegs) != len(reqSegs) {
		return false
	}

	for i, seg := range patSegs {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if reqSegs[i] == "" {
				return false
			}
			continue
		}
		if strings.ContainsAny(seg, "*?") {
			if ok, err := path.Match(seg, reqSegs[i]); err != nil || !ok {
				return false
			}
			continue
		}
		if seg != reqSegs[i] {
			return false
		}
	}

	return true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Table is the ordered route authorization table. Built once at startup,
// never mutated; evaluation is read-only and safe for concurrent use.
type Table struct {
	rules []Rule
}

// Rules returns the ordered rule list.
func (t *Table) Rules() []Rule {
	return t.rules
}

// Evaluate returns the predicate of the first matching rule. A request no
// rule covers is denied; in practice every table terminates with catch-alls.
func (t *Table) Evaluate(method, requestPath string) Predicate {
	for _, rule := range t.rules {
		if rule.Matches(method, requestPath) {
			return rule.Predicate
		}
	}
	return denyRule()
}

func (t *Table) append(method string, predicate Predicate, patterns ...string) {
	for _, pattern := range patterns {
		t.rules = append(t.rules, Rule{Method: method, Pattern: pattern, Predicate: predicate})
	}
}
