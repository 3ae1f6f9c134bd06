// internal/utils/crypto_test.go
package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ciphertext, err := Encrypt("sk-ant-very-secret", "my-passphrase")
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "sk-ant-very-secret")

	plaintext, err := Decrypt(ciphertext, "my-passphrase")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-very-secret", plaintext)
}

func TestEncryptProducesDistinctCiphertexts(t *testing.T) {
	first, err := Encrypt("same input", "key")
	require.NoError(t, err)
	second, err := Encrypt("same input", "key")
	require.NoError(t, err)

	// Random nonce per call.
	assert.NotEqual(t, first, second)
}

func TestDecryptWithWrongKey(t *testing.T) {
	ciphertext, err := Encrypt("payload", "right-key")
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, "wrong-key")
	assert.Error(t, err)
}

func TestDecryptGarbage(t *testing.T) {
	_, err := Decrypt("not base64 at all!!!", "key")
	assert.Error(t, err)
}

func TestGenerateSecureKey(t *testing.T) {
	first, err := GenerateSecureKey(32)
	require.NoError(t, err)
	assert.Len(t, first, 32)

	second, err := GenerateSecureKey(32)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
