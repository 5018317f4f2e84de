package auth

import (
	"time"

	"github.com/anpetrov/filegate/internal/common"
)

// Projection maps a domain entity onto the identity and expiration policy
// used in its signed tokens. One value exists per owner kind; the tiered
// lifetimes reflect trust level (operator-controlled credentials rotate less
// often than end-user sessions).
type Projection struct {
	kind OwnerKind
	ttl  time.Duration
}

var (
	AdminProjection  = Projection{kind: OwnerAdmin, ttl: 12 * time.Hour}
	UserProjection   = Projection{kind: OwnerUser, ttl: time.Hour}
	ServerProjection = Projection{kind: OwnerServer, ttl: 12 * time.Hour}
)

// Kind returns the owner kind this projection issues tokens for.
func (p Projection) Kind() OwnerKind { return p.kind }

// TTL returns the token lifetime for this owner kind.
func (p Projection) TTL() time.Duration { return p.ttl }

// Identity builds the claims identity from an entity's stable fields.
func (p Projection) Identity(id int64, name string) Identity {
	return Identity{ID: id, Name: name, Kind: p.kind}
}

// OwnerIDFromToken decodes tokenString and returns the owner id, rejecting
// tokens issued for a different owner kind with common.ErrInvalidTokenKind.
// This is a capability-separation guard: an application-user token must not
// be accepted where an admin token is required, and vice versa.
func (p Projection) OwnerIDFromToken(s *Signer, tokenString string) (int64, error) {
	claims, err := s.Decode(tokenString)
	if err != nil {
		return 0, err
	}

	switch claims.Data.Kind {
	case OwnerAdmin, OwnerUser, OwnerServer:
		if claims.Data.Kind != p.kind {
			return 0, common.ErrInvalidTokenKind
		}
	default:
		return 0, common.ErrInvalidTokenKind
	}

	return claims.Data.ID, nil
}
