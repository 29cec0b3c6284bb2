package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"
	"sync"
	"sync/atomic"
)

// hasherPool holds reusable HMAC-SHA256 instances keyed with the mutation
// hash key. It is nil until InitHasherPool is called.
var hasherPool atomic.Pointer[sync.Pool]

// InitHasherPool installs a fresh pool of HMAC-SHA256 hashers keyed with
// hashKey. Calling it again replaces the key for subsequent [Hash] calls.
//
// Example usage:
//
//	utils.InitHasherPool(cfg.App.HashKey)
func InitHasherPool(hashKey string) {
	key := []byte(hashKey)
	hasherPool.Store(&sync.Pool{
		New: func() any {
			return hmac.New(sha256.New, key)
		},
	})
}

// Hash returns the HMAC-SHA256 of data using a pooled hasher, or nil when
// InitHasherPool has not been called.
//
// Example usage:
//
//	digest := utils.Hash(mutation.Data)
func Hash(data []byte) []byte {
	pool := hasherPool.Load()
	if pool == nil {
		return nil
	}

	h := pool.Get().(hash.Hash)
	h.Reset()
	h.Write(data)
	sum := h.Sum(nil)
	pool.Put(h)

	return sum
}
