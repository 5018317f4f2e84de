package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/anpetrov/filegate/internal/common"
	"github.com/anpetrov/filegate/internal/dbx"
	"github.com/anpetrov/filegate/internal/logging"
	"github.com/anpetrov/filegate/internal/server/auth"
	"github.com/anpetrov/filegate/internal/server/models"
	"github.com/anpetrov/filegate/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// ServerService handles tenant server accounts: registration, credential
// checks, token issuance/retrieval and OCC-guarded updates.
type ServerService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *TokenService
	logger      logging.Logger
}

// NewServerService constructs a ServerService. The token service must be
// built over the server projection.
func NewServerService(db *sql.DB, m repomanager.RepositoryManager, tokens *TokenService, logger logging.Logger) *ServerService {
	return &ServerService{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		logger:      logger.With("module", "servers"),
	}
}

func hashPassword(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", common.ErrorInternal
	}
	return string(digest), nil
}

func checkPassword(digest, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(candidate)) == nil
}

// Register creates a new server with a digested password. The insert and the
// revision stamp commit together, so no reader sees a row without a rev.
func (s *ServerService) Register(ctx context.Context, name, password string) (*models.Server, error) {
	digest, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	var server *models.Server
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		server, err = s.repomanager.Servers(tx).Create(ctx, &models.Server{Name: name, Password: digest})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error creating server: %w", err)
	}
	return server, nil
}

// Authenticate verifies credentials and returns a valid token, reusing the
// persisted one when it still matches the server's identity.
func (s *ServerService) Authenticate(ctx context.Context, name, password string) (*auth.SignedToken, error) {
	repo := s.repomanager.Servers(s.db)

	server, err := repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if !checkPassword(server.Password, password) {
		return nil, common.ErrorUnauthorized
	}

	if err := repo.TouchLastConnection(ctx, server.ID); err != nil {
		return nil, err
	}

	return s.tokens.GenerateToken(ctx, auth.ServerProjection.Identity(server.ID, server.Name))
}

// RetrieveToken returns the stored token for an existing server without
// minting a replacement.
func (s *ServerService) RetrieveToken(ctx context.Context, id int64) (*auth.SignedToken, error) {
	repo := s.repomanager.Servers(s.db)
	if _, err := repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.tokens.RetrieveToken(ctx, id)
}

// Get returns the server by id.
func (s *ServerService) Get(ctx context.Context, id int64) (*models.Server, error) {
	return s.repomanager.Servers(s.db).GetByID(ctx, id)
}

// List returns all servers.
func (s *ServerService) List(ctx context.Context) ([]*models.Server, error) {
	return s.repomanager.Servers(s.db).List(ctx)
}

// Update applies an OCC-guarded update: expectedRev must match the persisted
// row. A new password is digested before it reaches the store.
func (s *ServerService) Update(ctx context.Context, id int64, update *models.Server, expectedRev string) (*models.Server, error) {
	if update.Password != "" {
		digest, err := hashPassword(update.Password)
		if err != nil {
			return nil, err
		}
		update.Password = digest
	}
	return s.repomanager.Servers(s.db).Update(ctx, id, update, expectedRev)
}

// Delete removes the server; its files metadata and token cascade in the
// database. Stored payloads are cleaned up by the file service's delete path.
func (s *ServerService) Delete(ctx context.Context, id int64) error {
	return s.repomanager.Servers(s.db).Delete(ctx, id)
}
