package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/MKhiriev/go-care-keeper/models"
)

const (
	// KDFIterations is the PBKDF2-HMAC-SHA256 work factor.
	KDFIterations = 100_000

	keyLength   = 32 // AES-256
	saltLength  = 16
	nonceLength = 12
	tagLength   = 16
)

type cipherService struct {
	iterations int
}

// NewCipherService returns the AES-256-GCM [CipherService].
func NewCipherService() CipherService {
	return &cipherService{iterations: KDFIterations}
}

// Encrypt implements [CipherService].
func (c *cipherService) Encrypt(plaintext []byte, secret string) (models.EncryptedPayload, error) {
	if secret == "" {
		return models.EncryptedPayload{}, ErrEmptySecret
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return models.EncryptedPayload{}, fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return models.EncryptedPayload{}, fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := c.aead(secret, salt)
	if err != nil {
		return models.EncryptedPayload{}, err
	}

	return models.EncryptedPayload{
		Ciphertext: gcm.Seal(nil, nonce, plaintext, nil),
		IV:         nonce,
		Salt:       salt,
	}, nil
}

// Decrypt implements [CipherService].
func (c *cipherService) Decrypt(payload models.EncryptedPayload, secret string) ([]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if len(payload.Salt) != saltLength {
		return nil, fmt.Errorf("%w: salt length %d", ErrDecrypt, len(payload.Salt))
	}
	if len(payload.IV) != nonceLength {
		return nil, fmt.Errorf("%w: iv length %d", ErrDecrypt, len(payload.IV))
	}
	if len(payload.Ciphertext) < tagLength {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	gcm, err := c.aead(secret, payload.Salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, payload.IV, payload.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	return plaintext, nil
}

// GenerateHash implements [CipherService].
func (c *cipherService) GenerateHash(plaintext []byte) []byte {
	sum := sha256.Sum256(plaintext)
	return sum[:]
}

// VerifyIntegrity implements [CipherService].
func (c *cipherService) VerifyIntegrity(plaintext, digest []byte) bool {
	return subtle.ConstantTimeCompare(c.GenerateHash(plaintext), digest) == 1
}

func (c *cipherService) aead(secret string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(secret), salt, c.iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}
