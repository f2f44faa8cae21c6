package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coresistem/sip-api-sub000/pkg/sdk"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStoreAt(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load()
	assert.ErrorIs(t, err, sdk.ErrNoCredentials)

	pair := &sdk.Credentials{AccessToken: "a1", RefreshToken: "r1"}
	require.NoError(t, store.Save(pair))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, pair, loaded)

	require.NoError(t, store.Clear())
	_, err = store.Load()
	assert.ErrorIs(t, err, sdk.ErrNoCredentials)

	// Clearing twice must stay a no-op.
	require.NoError(t, store.Clear())
}

func TestFileStoreActiveRolePreference(t *testing.T) {
	store, err := NewFileStoreAt(t.TempDir())
	require.NoError(t, err)

	role, err := store.LoadActiveRole()
	require.NoError(t, err)
	assert.Empty(t, role)

	require.NoError(t, store.SaveActiveRole(sdk.RoleCoach))
	role, err = store.LoadActiveRole()
	require.NoError(t, err)
	assert.Equal(t, sdk.RoleCoach, role)

	require.NoError(t, store.ClearActiveRole())
	role, err = store.LoadActiveRole()
	require.NoError(t, err)
	assert.Empty(t, role)
}
