package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimValueOf(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		want ClaimValue
	}{
		{"nil", nil, ClaimValue{Kind: ClaimAbsent}},
		{"empty string", "", ClaimValue{Kind: ClaimAbsent}},
		{"single string", "ROLE_Osmt_Admin", ClaimValue{Kind: ClaimSingle, Single: "ROLE_Osmt_Admin"}},
		{"string slice", []string{"a", "b"}, ClaimValue{Kind: ClaimMultiple, Values: []string{"a", "b"}}},
		{"interface slice", []interface{}{"a", "b"}, ClaimValue{Kind: ClaimMultiple, Values: []string{"a", "b"}}},
		{"interface slice with junk", []interface{}{"a", 42, nil, "b"}, ClaimValue{Kind: ClaimMultiple, Values: []string{"a", "b"}}},
		{"empty slice", []interface{}{}, ClaimValue{Kind: ClaimAbsent}},
		{"slice of empties", []string{"", ""}, ClaimValue{Kind: ClaimAbsent}},
		{"number", 42, ClaimValue{Kind: ClaimAbsent}},
		{"map", map[string]interface{}{"x": "y"}, ClaimValue{Kind: ClaimAbsent}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClaimValueOf(tt.raw))
		})
	}
}

func TestClaimValueRoles(t *testing.T) {
	assert.Nil(t, ClaimValue{Kind: ClaimAbsent}.Roles())
	assert.Equal(t, []string{"a"}, ClaimValue{Kind: ClaimSingle, Single: "a"}.Roles())
	assert.Equal(t, []string{"a", "b"}, ClaimValue{Kind: ClaimMultiple, Values: []string{"a", "b"}}.Roles())
}

func TestRolesFromClaims(t *testing.T) {
	claims := map[string]interface{}{
		"roles":  []interface{}{"ROLE_Osmt_Curator"},
		"single": "ROLE_Osmt_View",
	}

	assert.Equal(t, []string{"ROLE_Osmt_Curator"}, RolesFromClaims(claims, "roles"))
	assert.Equal(t, []string{"ROLE_Osmt_View"}, RolesFromClaims(claims, "single"))
	assert.Nil(t, RolesFromClaims(claims, "missing"))
	assert.Nil(t, RolesFromClaims(nil, "roles"))
}
