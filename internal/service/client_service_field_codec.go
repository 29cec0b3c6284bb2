package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MKhiriev/go-care-keeper/internal/crypto"
	"github.com/MKhiriev/go-care-keeper/internal/logger"
	"github.com/MKhiriev/go-care-keeper/models"
)

// fieldValue is the parsed form of one sensitive field: either plainText or
// encryptedValue.
type fieldValue interface {
	isFieldValue()
}

type plainText struct {
	value string
}

type encryptedValue struct {
	payload models.EncryptedPayload
}

func (plainText) isFieldValue()      {}
func (encryptedValue) isFieldValue() {}

// parseFieldValue classifies raw. Anything that is not a complete serialized
// payload is plain text.
func parseFieldValue(raw string) fieldValue {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return plainText{value: raw}
	}

	var payload models.EncryptedPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return plainText{value: raw}
	}
	if len(payload.Ciphertext) == 0 || len(payload.IV) == 0 || len(payload.Salt) == 0 {
		return plainText{value: raw}
	}
	return encryptedValue{payload: payload}
}

type fieldCodec struct {
	secrets interface{ DeviceSecret() (string, error) }
	cipher  crypto.CipherService
	logger  *logger.Logger
}

// NewFieldCodec creates a codec that encrypts with the device secret held by
// store.
func NewFieldCodec(store SecureStore, cipher crypto.CipherService, logger *logger.Logger) FieldCodec {
	return &fieldCodec{
		secrets: store,
		cipher:  cipher,
		logger:  logger,
	}
}

func (c *fieldCodec) EncryptFields(ctx context.Context, entity models.Entity, fields []string) (models.Entity, error) {
	secret, err := c.secrets.DeviceSecret()
	if err != nil {
		return nil, err
	}

	out := entity.Clone()
	for _, field := range fields {
		value, ok := out.String(field)
		if !ok || value == "" {
			continue
		}
		if _, already := parseFieldValue(value).(encryptedValue); already {
			continue
		}

		payload, err := c.cipher.Encrypt([]byte(value), secret)
		if err != nil {
			return nil, fmt.Errorf("encrypt field %q: %w", field, err)
		}
		serialized, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("serialize field %q: %w", field, err)
		}
		out[field] = string(serialized)
	}

	return out, nil
}

func (c *fieldCodec) DecryptFields(ctx context.Context, entity models.Entity, fields []string) (models.Entity, error) {
	log := logger.FromContext(ctx)

	secret, err := c.secrets.DeviceSecret()
	if err != nil {
		return nil, err
	}

	out := entity.Clone()
	for _, field := range fields {
		value, ok := out.String(field)
		if !ok || value == "" {
			continue
		}

		switch v := parseFieldValue(value).(type) {
		case plainText:
			// legacy record written before field encryption
		case encryptedValue:
			plaintext, err := c.cipher.Decrypt(v.payload, secret)
			if err != nil {
				log.Warn().
					Err(err).
					Str("func", "fieldCodec.DecryptFields").
					Str("id", entity.ID()).
					Str("field", field).
					Msg("field left encrypted")
				continue
			}
			out[field] = string(plaintext)
		}
	}

	return out, nil
}
