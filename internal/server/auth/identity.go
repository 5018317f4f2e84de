// Package auth implements signed access tokens: a compact HS256 signer, the
// claims payload embedding an owner identity, and per-owner-kind projections
// that decide what goes into a token and for how long it stays valid.
package auth

// OwnerKind is the closed set of principals a token can assert an identity
// for. Keeping it a tagged variant (instead of a boolean flag) makes kind
// checks exhaustive at the call sites.
type OwnerKind string

const (
	OwnerAdmin  OwnerKind = "admin"
	OwnerUser   OwnerKind = "user"
	OwnerServer OwnerKind = "server"
)

// Identity is the minimal owner identity embedded in a token's claims.
// It is derived fresh from an entity on every token operation and never
// persisted on its own.
type Identity struct {
	ID   int64     `json:"id"`
	Name string    `json:"name"`
	Kind OwnerKind `json:"kind"`
}

// IsAdmin reports whether the identity belongs to an admin user.
func (i Identity) IsAdmin() bool { return i.Kind == OwnerAdmin }

// Equal compares two identities field by field.
func (i Identity) Equal(other Identity) bool {
	return i.ID == other.ID && i.Name == other.Name && i.Kind == other.Kind
}
