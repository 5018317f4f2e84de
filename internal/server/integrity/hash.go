// Package integrity computes the content hashes used for optimistic
// concurrency control. A hash covers all of an entity's persisted fields
// except an explicit set of volatile ones, so that read-modify-write cycles
// only change the hash when actual content changes.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// VolatileFields is the exclusion set applied uniformly to every versioned
// entity: the revision stamp itself plus connection and row timestamps.
var VolatileFields = []string{"_rev", "last_connection", "created_time", "updated_time"}

// ComputeHash returns a deterministic hex SHA-256 over v's JSON fields,
// excluding the given keys. The object is canonicalized through a map before
// hashing (encoding/json sorts map keys), so field declaration order never
// affects the result.
func ComputeHash(v any, exclude ...string) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal error: %w", err)
	}

	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", fmt.Errorf("unmarshal error: %w", err)
	}

	for _, key := range exclude {
		delete(fields, key)
	}

	canonical, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal error: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// ValidateHash recomputes v's hash and compares it to expected.
func ValidateHash(v any, expected string, exclude ...string) (bool, error) {
	h, err := ComputeHash(v, exclude...)
	if err != nil {
		return false, err
	}
	return h == expected, nil
}
