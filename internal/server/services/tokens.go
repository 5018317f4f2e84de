package services

import (
	"context"
	"errors"

	"github.com/anpetrov/filegate/internal/common"
	"github.com/anpetrov/filegate/internal/logging"
	"github.com/anpetrov/filegate/internal/server/auth"
	"github.com/anpetrov/filegate/internal/server/repositories/tokens"
)

// TokenService implements the token cache protocol for one owner kind: reuse
// the persisted token while it still verifies against the owner's current
// identity, mint and upsert a replacement otherwise. The "cache" is the
// database row, not an in-memory store.
type TokenService struct {
	repo       tokens.Repository
	signer     *auth.Signer
	projection auth.Projection
	logger     logging.Logger
}

// NewTokenService constructs a TokenService for the given projection.
func NewTokenService(repo tokens.Repository, signer *auth.Signer, projection auth.Projection, logger logging.Logger) *TokenService {
	return &TokenService{
		repo:       repo,
		signer:     signer,
		projection: projection,
		logger:     logger.With("module", "tokens", "kind", string(projection.Kind())),
	}
}

// GenerateToken returns a valid token for owner, reusing the persisted one
// when possible. Reuse is the common case and keeps token churn low; any
// token-level failure (bad signature, expiry, identity mismatch) self-heals
// by minting. Persistence errors propagate unmodified.
func (s *TokenService) GenerateToken(ctx context.Context, owner auth.Identity) (*auth.SignedToken, error) {
	record, err := s.repo.FindByOwner(ctx, owner.ID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		// first issuance for this owner
	case err != nil:
		return nil, err
	default:
		validated, verr := s.signer.Validate(record.Token, owner.Equal)
		if verr == nil {
			return validated, nil
		}
		s.logger.Info(ctx, "stored token rejected, reminting", "owner_id", owner.ID, "reason", verr.Error())
	}

	return s.mint(ctx, owner)
}

// RetrieveToken returns the persisted token for ownerID without minting.
// An owner that has never authenticated yields common.ErrTokenNotFound.
func (s *TokenService) RetrieveToken(ctx context.Context, ownerID int64) (*auth.SignedToken, error) {
	record, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenNotFound
		}
		return nil, err
	}

	claims, err := s.signer.Decode(record.Token)
	if err != nil {
		return nil, err
	}

	return &auth.SignedToken{Token: record.Token, ExpiresAt: claims.ExpiresAt.Unix()}, nil
}

func (s *TokenService) mint(ctx context.Context, owner auth.Identity) (*auth.SignedToken, error) {
	signed, err := s.signer.Sign(owner, s.projection.TTL())
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.UpsertByOwner(ctx, owner.ID, signed.Token); err != nil {
		return nil, err
	}

	return signed, nil
}
