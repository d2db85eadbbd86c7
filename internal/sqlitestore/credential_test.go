package sqlitestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benaskins/credvault/internal/credential"
	"github.com/benaskins/credvault/internal/keychain"
)

func TestCredentialLifecycleOnSQLite(t *testing.T) {
	s := setupStore(t, Options{})
	ctx := context.Background()
	id := credential.ServiceIdentity{Service: "com.example.api", Account: "alice"}

	rec, err := credential.CreateAndStoreService(ctx, s, id, &credential.Options{Label: "api", Password: "s1"})
	require.NoError(t, err)
	assert.True(t, rec.Exists())
	assert.False(t, rec.HasUncommittedChanges())

	rec.SetPassword("s2")
	rec.SetComment("rotated")
	require.NoError(t, rec.Commit(ctx))

	fresh, found, err := credential.LookupService(ctx, s, id, "")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "api", fresh.Label())
	assert.Equal(t, "rotated", fresh.Comment())
	pw, err := fresh.Password(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s2", pw)

	_, err = credential.CreateAndStoreService(ctx, s, id, nil)
	assert.ErrorIs(t, err, credential.ErrDuplicateItem)

	require.NoError(t, fresh.Delete(ctx))
	_, found, err = credential.LookupService(ctx, s, id, "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCredentialLockedVaultIsUnavailable(t *testing.T) {
	s := setupStore(t, Options{})
	ctx := context.Background()

	rec, err := credential.CreateAndStoreNetwork(ctx, s, credential.NetworkIdentity{
		Server:   "db.internal",
		Protocol: keychain.ProtocolSSH,
		Account:  "ops",
	}, &credential.Options{Password: "pw"})
	require.NoError(t, err)

	s.Lock()
	_, err = rec.Password(ctx)
	require.ErrorIs(t, err, credential.ErrUnavailable)
	assert.Equal(t, credential.CodeUnavailable, credential.CodeOf(err))
}
