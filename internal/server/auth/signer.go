package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/anpetrov/filegate/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload: registered claims (expiry) plus the owner
// identity under "data".
type Claims struct {
	jwt.RegisteredClaims
	Data Identity `json:"data"`
}

// SignedToken is an issued token together with its embedded expiration
// instant as a Unix timestamp in seconds.
type SignedToken struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"tokenExpiration"`
}

// Signer signs and verifies compact claims with an HMAC secret. It is
// stateless and performs no I/O.
type Signer struct {
	secret []byte
}

func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign issues a token for the given identity, valid for the given duration.
func (s *Signer) Sign(id Identity, validity time.Duration) (*SignedToken, error) {
	expiresAt := time.Now().Add(validity)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Data: id,
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorSigning, err)
	}

	return &SignedToken{Token: tokenString, ExpiresAt: expiresAt.Unix()}, nil
}

// Decode verifies the signature and expiry of tokenString and returns its
// claims. Expired tokens yield common.ErrTokenExpired; any other parse or
// verification failure yields common.ErrInvalidToken, so callers can branch
// on "regenerate" vs "reject". An exp claim is mandatory; a token without
// one is invalid, which keeps claims.ExpiresAt non-nil for all callers.
func (s *Signer) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// Validate decodes tokenString and evaluates pred against the embedded
// identity. A false predicate yields common.ErrTokenValidationFailed. On
// success the original token is returned together with its embedded expiry.
func (s *Signer) Validate(tokenString string, pred func(Identity) bool) (*SignedToken, error) {
	claims, err := s.Decode(tokenString)
	if err != nil {
		return nil, err
	}

	if !pred(claims.Data) {
		return nil, common.ErrTokenValidationFailed
	}

	return &SignedToken{Token: tokenString, ExpiresAt: claims.ExpiresAt.Unix()}, nil
}
