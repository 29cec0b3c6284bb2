package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-care-keeper/models"
)

const testSecret = "4f1c0e9d7a6b5c4d3e2f1a0b9c8d7e6f5a4b3c2d1e0f9a8b7c6d5e4f3a2b1c0d"

func TestCipher_RoundTrip(t *testing.T) {
	c := NewCipherService()

	inputs := [][]byte{
		[]byte(`{"patientName":"Maria da Silva"}`),
		[]byte(""),
		bytes.Repeat([]byte{0x00, 0xFF}, 4096),
	}

	for _, in := range inputs {
		payload, err := c.Encrypt(in, testSecret)
		require.NoError(t, err)

		assert.Len(t, payload.Salt, saltLength)
		assert.Len(t, payload.IV, nonceLength)

		out, err := c.Decrypt(payload, testSecret)
		require.NoError(t, err)
		assert.Equal(t, len(in), len(out))
		assert.True(t, bytes.Equal(in, out))
	}
}

func TestCipher_FreshSaltAndIVPerCall(t *testing.T) {
	c := NewCipherService()

	a, err := c.Encrypt([]byte("same"), testSecret)
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same"), testSecret)
	require.NoError(t, err)

	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestCipher_WrongSecret(t *testing.T) {
	c := NewCipherService()

	payload, err := c.Encrypt([]byte("secret data"), testSecret)
	require.NoError(t, err)

	_, err = c.Decrypt(payload, "another-secret")
	assert.ErrorIs(t, err, ErrDecrypt)
}

// TestCipher_TamperDetection flips one byte in each part of the payload and
// expects decryption to fail rather than return different plaintext.
func TestCipher_TamperDetection(t *testing.T) {
	c := NewCipherService()

	payload, err := c.Encrypt([]byte("clinical notes: stable"), testSecret)
	require.NoError(t, err)

	clone := func(p models.EncryptedPayload) models.EncryptedPayload {
		return models.EncryptedPayload{
			Ciphertext: append([]byte(nil), p.Ciphertext...),
			IV:         append([]byte(nil), p.IV...),
			Salt:       append([]byte(nil), p.Salt...),
		}
	}

	tests := []struct {
		name   string
		mutate func(p *models.EncryptedPayload)
	}{
		{name: "ciphertext first byte", mutate: func(p *models.EncryptedPayload) { p.Ciphertext[0] ^= 0x01 }},
		{name: "ciphertext tag", mutate: func(p *models.EncryptedPayload) { p.Ciphertext[len(p.Ciphertext)-1] ^= 0x80 }},
		{name: "iv", mutate: func(p *models.EncryptedPayload) { p.IV[5] ^= 0x01 }},
		{name: "salt", mutate: func(p *models.EncryptedPayload) { p.Salt[0] ^= 0x01 }},
		{name: "short iv", mutate: func(p *models.EncryptedPayload) { p.IV = p.IV[:8] }},
		{name: "short salt", mutate: func(p *models.EncryptedPayload) { p.Salt = p.Salt[:4] }},
		{name: "truncated ciphertext", mutate: func(p *models.EncryptedPayload) { p.Ciphertext = p.Ciphertext[:3] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := clone(payload)
			tt.mutate(&p)

			out, err := c.Decrypt(p, testSecret)
			assert.ErrorIs(t, err, ErrDecrypt)
			assert.Nil(t, out)
		})
	}
}

func TestCipher_EmptySecret(t *testing.T) {
	c := NewCipherService()

	_, err := c.Encrypt([]byte("x"), "")
	assert.ErrorIs(t, err, ErrEmptySecret)

	_, err = c.Decrypt(models.EncryptedPayload{}, "")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestCipher_Integrity(t *testing.T) {
	c := NewCipherService()

	digest := c.GenerateHash([]byte("payload"))
	assert.Len(t, digest, 32)
	assert.True(t, c.VerifyIntegrity([]byte("payload"), digest))
	assert.False(t, c.VerifyIntegrity([]byte("payload!"), digest))
	assert.False(t, c.VerifyIntegrity([]byte("payload"), digest[:16]))
	assert.False(t, c.VerifyIntegrity([]byte("payload"), nil))
}
