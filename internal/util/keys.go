package util

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrEmptyKey is returned for keys that are empty after trimming whitespace.
var ErrEmptyKey = errors.New("key is empty")

// HashLen is the length of the hex digest appended to the namespace.
const HashLen = sha256.Size * 2

// StorageKey derives the canonical storage key for a logical key:
// namespace + hex(sha256(key)). The digest has a fixed width, so two distinct
// namespaces never produce the same storage key.
func StorageKey(namespace, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrEmptyKey
	}
	sum := sha256.Sum256([]byte(key))
	var b strings.Builder
	b.Grow(len(namespace) + HashLen)
	b.WriteString(namespace)
	b.WriteString(hex.EncodeToString(sum[:]))
	return b.String(), nil
}
