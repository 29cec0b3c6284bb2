package models

import (
	"time"
)

// Entity field keys the sync engine relies on.
const (
	EntityIDField        = "id"
	EntityUpdatedAtField = "updatedAt"
)

// Entity is an opaque, caller-defined record. Only the "id" and "updatedAt"
// keys have meaning to the data layer; sensitive fields may hold serialized
// [EncryptedPayload] strings in place of their plaintext.
type Entity map[string]any

// ID returns the entity identifier or an empty string when it is missing.
func (e Entity) ID() string {
	id, _ := e[EntityIDField].(string)
	return id
}

// UpdatedAt returns the last-modified timestamp of the entity. ok is false
// when the field is missing or not an RFC 3339 string.
func (e Entity) UpdatedAt() (t time.Time, ok bool) {
	raw, isString := e[EntityUpdatedAtField].(string)
	if !isString || raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetUpdatedAt stores t in the entity in the same format [Entity.UpdatedAt]
// reads.
func (e Entity) SetUpdatedAt(t time.Time) {
	e[EntityUpdatedAtField] = t.UTC().Format(time.RFC3339Nano)
}

// String returns the value of field when it holds a string.
func (e Entity) String(field string) (string, bool) {
	s, ok := e[field].(string)
	return s, ok
}

// Clone returns a shallow copy of the entity.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
