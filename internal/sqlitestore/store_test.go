package sqlitestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benaskins/credvault/internal/keychain"
)

func genericAttrs(service, account string) keychain.Attributes {
	return keychain.Attributes{Class: keychain.ClassGeneric, Service: service, Account: account}
}

func TestStore_AddAndQuery(t *testing.T) {
	s := setupStore(t, Options{})
	ctx := context.Background()

	attrs := genericAttrs("com.example.chat", "alice")
	attrs.Label = "chat"
	attrs.Creator = 0x6161706c
	attrs.Invisible = true
	attrs.Generic = []byte{1, 2, 3}
	attrs.Accessible = keychain.AccessibleWhenUnlocked

	added, err := s.Add(ctx, attrs, []byte("s1"))
	require.NoError(t, err)
	assert.False(t, added.Handle.IsZero())
	assert.Len(t, added.PersistentRef, 16)
	assert.False(t, added.CreationDate.IsZero())

	got, err := s.Query(ctx, attrs.Key())
	require.NoError(t, err)
	assert.Equal(t, added.Handle, got.Handle)
	assert.Equal(t, "chat", got.Label)
	assert.Equal(t, uint32(0x6161706c), got.Creator)
	assert.True(t, got.Invisible)
	assert.Equal(t, []byte{1, 2, 3}, got.Generic)
	assert.Equal(t, keychain.AccessibleWhenUnlocked, got.Accessible)
	assert.True(t, added.CreationDate.Equal(got.CreationDate))

	secret, err := s.Secret(ctx, got.Handle)
	require.NoError(t, err)
	assert.Equal(t, []byte("s1"), secret)
}

func TestStore_AddDuplicate(t *testing.T) {
	s := setupStore(t, Options{})
	ctx := context.Background()
	attrs := genericAttrs("svc", "bob")

	first, err := s.Add(ctx, attrs, []byte("first"))
	require.NoError(t, err)

	_, err = s.Add(ctx, attrs, []byte("second"))
	require.ErrorIs(t, err, keychain.ErrDuplicateItem)

	secret, err := s.Secret(ctx, first.Handle)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), secret)
}

func TestStore_AccessGroupIsPartOfIdentity(t *testing.T) {
	s := setupStore(t, Options{})
	ctx := context.Background()

	a := genericAttrs("svc", "carol")
	a.AccessGroup = "team-a"
	b := genericAttrs("svc", "carol")
	b.AccessGroup = "team-b"

	_, err := s.Add(ctx, a, nil)
	require.NoError(t, err)
	_, err = s.Add(ctx, b, nil)
	require.NoError(t, err)

	got, err := s.Query(ctx, b.Key())
	require.NoError(t, err)
	assert.Equal(t, "team-b", got.AccessGroup)
}

func TestStore_InternetIdentity(t *testing.T) {
	s := setupStore(t, Options{})
	ctx := context.Background()

	attrs := keychain.Attributes{
		Class:              keychain.ClassInternet,
		Server:             "git.example.com",
		Protocol:           keychain.ProtocolHTTPS,
		Port:               443,
		Path:               "/org",
		Account:            "dave",
		AuthenticationType: keychain.AuthenticationHTTPBasic,
		SecurityDomain:     "realm",
	}
	_, err := s.Add(ctx, attrs, []byte("tok"))
	require.NoError(t, err)

	got, err := s.Query(ctx, attrs.Key())
	require.NoError(t, err)
	assert.Equal(t, keychain.ProtocolHTTPS, got.Protocol)
	assert.Equal(t, keychain.AuthenticationHTTPBasic, got.AuthenticationType)
	assert.Equal(t, "realm", got.SecurityDomain)

	other := attrs.Key()
	other.Port = 8443
	_, err = s.Query(ctx, other)
	assert.ErrorIs(t, err, keychain.ErrNotFound)
}

func TestStore_UpdateAppliesOnlyDiff(t *testing.T) {
	s := setupStore(t, Options{})
	ctx := context.Background()

	attrs := genericAttrs("svc", "erin")
	attrs.Label = "one"
	attrs.Comment = "keep"
	added, err := s.Add(ctx, attrs, []byte("old"))
	require.NoError(t, err)

	next := attrs
	next.Label = "two"
	next.Comment = "ignored"
	updated, err := s.Update(ctx, added.Handle, keychain.Diff{
		Fields:     keychain.FieldLabel | keychain.FieldData,
		Attributes: next,
		Data:       []byte("new"),
	})
	require.NoError(t, err)
	assert.Equal(t, "two", updated.Label)
	assert.Equal(t, "keep", updated.Comment)
	assert.False(t, updated.ModificationDate.Before(added.ModificationDate))

	secret, err := s.Secret(ctx, added.Handle)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), secret)
}

func TestStore_EmptySecret(t *testing.T) {
	s := setupStore(t, Options{})
	ctx := context.Background()

	withNone, err := s.Add(ctx, genericAttrs("svc", "none"), nil)
	require.NoError(t, err)
	secret, err := s.Secret(ctx, withNone.Handle)
	require.NoError(t, err)
	assert.Empty(t, secret)

	withEmpty, err := s.Add(ctx, genericAttrs("svc", "empty"), []byte{})
	require.NoError(t, err)
	secret, err = s.Secret(ctx, withEmpty.Handle)
	require.NoError(t, err)
	assert.Empty(t, secret)
}

func TestStore_DeleteAndLookupByRef(t *testing.T) {
	s := setupStore(t, Options{})
	ctx := context.Background()

	added, err := s.Add(ctx, genericAttrs("svc", "frank"), []byte("pw"))
	require.NoError(t, err)

	byRef, err := s.QueryPersistent(ctx, added.PersistentRef)
	require.NoError(t, err)
	assert.Equal(t, added.Handle, byRef.Handle)

	require.NoError(t, s.Delete(ctx, added.Handle))

	_, err = s.QueryHandle(ctx, added.Handle)
	assert.ErrorIs(t, err, keychain.ErrNotFound)
	_, err = s.QueryPersistent(ctx, added.PersistentRef)
	assert.ErrorIs(t, err, keychain.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, added.Handle), keychain.ErrNotFound)
	_, err = s.QueryPersistent(ctx, []byte("short"))
	assert.ErrorIs(t, err, keychain.ErrNotFound)
}

func TestStore_List(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seed := New(db, Options{})
	require.NoError(t, seed.Unlock(ctx, []byte("pw")))

	hidden := genericAttrs("secret", "a")
	hidden.AccessGroup = "hidden"
	for _, attrs := range []keychain.Attributes{
		genericAttrs("zeta", "a"),
		genericAttrs("alpha", "a"),
		{Class: keychain.ClassInternet, Server: "h", Protocol: keychain.ProtocolSSH, Account: "a"},
		hidden,
	} {
		_, err := seed.Add(ctx, attrs, nil)
		require.NoError(t, err)
	}

	s := New(db, Options{DeniedAccessGroups: []string{"hidden"}})

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].Service)
	assert.Equal(t, "zeta", all[1].Service)
	assert.Equal(t, keychain.ClassInternet, all[2].Class)

	generic, err := s.List(ctx, keychain.ClassGeneric)
	require.NoError(t, err)
	assert.Len(t, generic, 2)
}

func TestStore_DeniedAccessGroup(t *testing.T) {
	s := setupStore(t, Options{DeniedAccessGroups: []string{"restricted"}})
	ctx := context.Background()

	attrs := genericAttrs("svc", "grace")
	attrs.AccessGroup = "restricted"

	_, err := s.Add(ctx, attrs, nil)
	assert.ErrorIs(t, err, keychain.ErrAccessDenied)
	_, err = s.Query(ctx, attrs.Key())
	assert.ErrorIs(t, err, keychain.ErrAccessDenied)
}

func TestStore_LockedVault(t *testing.T) {
	s := setupStore(t, Options{})
	ctx := context.Background()

	added, err := s.Add(ctx, genericAttrs("svc", "heidi"), []byte("pw"))
	require.NoError(t, err)

	s.Lock()
	assert.True(t, s.Locked())

	// Metadata stays readable.
	_, err = s.QueryHandle(ctx, added.Handle)
	require.NoError(t, err)

	_, err = s.Secret(ctx, added.Handle)
	assert.ErrorIs(t, err, keychain.ErrUnavailable)
	_, err = s.Add(ctx, genericAttrs("svc", "ivan"), nil)
	assert.ErrorIs(t, err, keychain.ErrUnavailable)
	_, err = s.Update(ctx, added.Handle, keychain.Diff{Fields: keychain.FieldData, Data: []byte("x")})
	assert.ErrorIs(t, err, keychain.ErrUnavailable)

	// Attribute-only updates do not need the key.
	next := genericAttrs("svc", "heidi")
	next.Label = "renamed"
	_, err = s.Update(ctx, added.Handle, keychain.Diff{Fields: keychain.FieldLabel, Attributes: next})
	require.NoError(t, err)
}

func TestStore_UnlockPassphrase(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := New(db, Options{})
	require.NoError(t, first.Unlock(ctx, []byte("right")))
	added, err := first.Add(ctx, genericAttrs("svc", "judy"), []byte("pw"))
	require.NoError(t, err)

	second := New(db, Options{})
	assert.True(t, second.Locked())
	err = second.Unlock(ctx, []byte("wrong"))
	require.ErrorIs(t, err, keychain.ErrAccessDenied)
	assert.True(t, second.Locked())

	require.NoError(t, second.Unlock(ctx, []byte("right")))
	secret, err := second.Secret(ctx, added.Handle)
	require.NoError(t, err)
	assert.Equal(t, []byte("pw"), secret)
}
