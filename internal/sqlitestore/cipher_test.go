package sqlitestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealUnseal(t *testing.T) {
	key := deriveKey([]byte("passphrase"), []byte("0123456789abcdef"))
	require.Len(t, key, keySize)

	sealed, err := seal(key, []byte("secret"), []byte("item-1"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "secret")

	plain, err := unseal(key, sealed, []byte("item-1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), plain)
}

func TestUnsealRejectsWrongBinding(t *testing.T) {
	key := deriveKey([]byte("passphrase"), []byte("0123456789abcdef"))
	sealed, err := seal(key, []byte("secret"), []byte("item-1"))
	require.NoError(t, err)

	_, err = unseal(key, sealed, []byte("item-2"))
	assert.Error(t, err, "ciphertext moved to another row must not decrypt")

	other := deriveKey([]byte("other"), []byte("0123456789abcdef"))
	_, err = unseal(other, sealed, []byte("item-1"))
	assert.Error(t, err)

	_, err = unseal(key, []byte{1, 2}, nil)
	assert.Error(t, err)
}

func TestVerifierIsDeterministic(t *testing.T) {
	salt, err := newSalt()
	require.NoError(t, err)
	require.Len(t, salt, saltSize)

	a := makeVerifier(deriveKey([]byte("pw"), salt))
	b := makeVerifier(deriveKey([]byte("pw"), salt))
	c := makeVerifier(deriveKey([]byte("pw2"), salt))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
