package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSuccess(t *testing.T) {
	v := NewCredentialValidator("admin", "s3cret", "ROLE_Osmt_Admin", nil)

	roles, err := v.Validate("admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_Osmt_Admin"}, roles)
}

func TestValidateSingleCharacterMutations(t *testing.T) {
	v := NewCredentialValidator("admin", "s3cret", "ROLE_Osmt_Admin", nil)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password char", "admin", "s3creT"},
		{"wrong username char", "admiN", "s3cret"},
		{"password prefix", "admin", "s3cre"},
		{"password suffix", "admin", "s3cret "},
		{"empty username", "", "s3cret"},
		{"empty password", "admin", ""},
		{"both empty", "", ""},
		{"swapped", "s3cret", "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roles, err := v.Validate(tt.username, tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.Nil(t, roles)
		})
	}
}

func TestValidateBasicHeader(t *testing.T) {
	v := NewCredentialValidator("admin", "admin", "ROLE_Osmt_Admin", nil)

	good := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:admin"))
	roles, err := v.ValidateBasic(good)
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_Osmt_Admin"}, roles)

	bad := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:wrong"))
	_, err = v.ValidateBasic(bad)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = v.ValidateBasic("Bearer token")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseBasicAuth(t *testing.T) {
	username, password, err := ParseBasicAuth("Basic " + base64.StdEncoding.EncodeToString([]byte("user:pa:ss")))
	require.NoError(t, err)
	assert.Equal(t, "user", username)
	// Only the first colon separates; passwords may contain colons.
	assert.Equal(t, "pa:ss", password)

	_, _, err = ParseBasicAuth("Basic %%%not-base64%%%")
	assert.Error(t, err)

	_, _, err = ParseBasicAuth("Basic " + base64.StdEncoding.EncodeToString([]byte("no-separator")))
	assert.Error(t, err)

	_, _, err = ParseBasicAuth("Digest whatever")
	assert.Error(t, err)
}
