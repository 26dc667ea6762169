package auth

// ClaimValueKind distinguishes the shapes a roles claim can take in tokens
// from different identity providers.
type ClaimValueKind int

const (
	// ClaimAbsent means the claim was not present in the token.
	ClaimAbsent ClaimValueKind = iota
	// ClaimSingle means the claim carried one string authority.
	ClaimSingle
	// ClaimMultiple means the claim carried a list of string authorities.
	ClaimMultiple
)

// ClaimValue is a tagged union over the heterogeneous shapes of a role claim:
// absent, a single string, or a collection of strings. Providers disagree on
// the shape, so normalization happens in exactly one place.
type ClaimValue struct {
	Kind   ClaimValueKind
	Single string
	Values []string
}

// ClaimValueOf inspects a raw decoded claim and classifies it. Non-string
// entries inside a collection are dropped; any other type is treated as
// absent.
func ClaimValueOf(raw interface{}) ClaimValue {
	switch v := raw.(type) {
	case nil:
		return ClaimValue{Kind: ClaimAbsent}
	case string:
		if v == "" {
			return ClaimValue{Kind: ClaimAbsent}
		}
		return ClaimValue{Kind: ClaimSingle, Single: v}
	case []string:
		return claimValueFromStrings(v)
	case []interface{}:
		strs := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				strs = append(strs, s)
			}
		}
		return claimValueFromStrings(strs)
	default:
		return ClaimValue{Kind: ClaimAbsent}
	}
}

func claimValueFromStrings(values []string) ClaimValue {
	filtered := make([]string, 0, len(values))
	for _, s := range values {
		if s != "" {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return ClaimValue{Kind: ClaimAbsent}
	}
	return ClaimValue{Kind: ClaimMultiple, Values: filtered}
}

// Roles flattens the claim value to a normalized role set.
func (c ClaimValue) Roles() []string {
	switch c.Kind {
	case ClaimSingle:
		return []string{c.Single}
	case ClaimMultiple:
		out := make([]string, len(c.Values))
		copy(out, c.Values)
		return out
	default:
		return nil
	}
}

// RolesFromClaims extracts and normalizes the role set from a decoded claim
// map using the configured claim name.
func RolesFromClaims(claims map[string]interface{}, claimName string) []string {
	return ClaimValueOf(claims[claimName]).Roles()
}

func stringClaim(claims map[string]interface{}, name string) string {
	if s, ok := claims[name].(string); ok {
		return s
	}
	return ""
}
