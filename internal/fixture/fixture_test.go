package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_BundledFixtures(t *testing.T) {
	set, err := Load(filepath.Join("..", "..", "fixtures", "users.json"))
	require.NoError(t, err)

	assert.Equal(t, "Sincere@april.biz", set.Get("validUser.email").String())
	assert.True(t, set.Has("newUser.name"))
	assert.False(t, set.Has("newUser.nothing"))

	valid := set.Credentials(true)
	assert.Equal(t, "valid_user", valid.Username)
	assert.Equal(t, "correct_pass", valid.Password)

	invalid := set.Credentials(false)
	assert.Equal(t, "invalid_user", invalid.Username)

	user, err := set.User("validUser")
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)
	assert.Equal(t, "Bret", user.Username)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_MissingGroup(t *testing.T) {
	tests := []struct {
		name  string
		input string
		group string
	}{
		{
			name:  "no invalidUser",
			input: `{"validUser":{},"newUser":{},"loginCredentials":{"valid":{},"invalid":{}}}`,
			group: "invalidUser",
		},
		{
			name:  "credentials not an object",
			input: `{"validUser":{},"newUser":{},"invalidUser":{},"loginCredentials":{"valid":"x","invalid":{}}}`,
			group: "loginCredentials.valid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingGroup)
			assert.Contains(t, err.Error(), tt.group)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`{broken`))
	assert.ErrorIs(t, err, ErrInvalidFixture)

	_, err = Parse([]byte(`[1, 2]`))
	assert.ErrorIs(t, err, ErrInvalidFixture)
}

func TestSet_MapIsCopy(t *testing.T) {
	set, err := Load(filepath.Join("..", "..", "fixtures", "users.json"))
	require.NoError(t, err)

	m := set.Map()
	m["validUser"].(map[string]any)["email"] = "changed"

	assert.Equal(t, "Sincere@april.biz", set.Get("validUser.email").String())
	assert.Equal(t, "Sincere@april.biz", set.Map()["validUser"].(map[string]any)["email"])
}

func TestSet_NilSafe(t *testing.T) {
	var set *Set
	assert.False(t, set.Has("validUser"))
	assert.Empty(t, set.Map())
}
