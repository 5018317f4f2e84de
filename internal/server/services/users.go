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
)

// UserService handles user accounts. Admin and application users share a
// table and a token store but project onto different token policies, so the
// service picks the projection per user.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	adminTokens *TokenService
	userTokens  *TokenService
	logger      logging.Logger
}

// NewUserService constructs a UserService. adminTokens and userTokens must be
// built over the admin and application-user projections respectively.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, adminTokens, userTokens *TokenService, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		adminTokens: adminTokens,
		userTokens:  userTokens,
		logger:      logger.With("module", "users"),
	}
}

func (s *UserService) tokensFor(user *models.User) (*TokenService, auth.Identity) {
	if user.IsAdmin {
		return s.adminTokens, auth.AdminProjection.Identity(user.ID, user.Name)
	}
	return s.userTokens, auth.UserProjection.Identity(user.ID, user.Name)
}

// Register creates a new user with a digested password. The insert and the
// revision stamp commit together, so no reader sees a row without a rev.
func (s *UserService) Register(ctx context.Context, name, password string, isAdmin bool) (*models.User, error) {
	digest, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	var user *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err = s.repomanager.Users(tx).Create(ctx, &models.User{Name: name, Password: digest, IsAdmin: isAdmin})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// Authenticate verifies credentials and returns a valid token for the user's
// tier (12h for admins, 1h for application users).
func (s *UserService) Authenticate(ctx context.Context, name, password string) (*auth.SignedToken, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if !checkPassword(user.Password, password) {
		return nil, common.ErrorUnauthorized
	}

	if err := repo.TouchLastConnection(ctx, user.ID); err != nil {
		return nil, err
	}

	tokens, identity := s.tokensFor(user)
	return tokens.GenerateToken(ctx, identity)
}

// Get returns the user by id.
func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

// List returns all users.
func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	return s.repomanager.Users(s.db).List(ctx)
}

// UserUpdate carries the fields a caller may change. IsAdmin is a pointer so
// a request that omits the flag is distinguishable from one that clears it.
type UserUpdate struct {
	Name     string
	Password string
	IsAdmin  *bool
}

// Update applies an update guarded by the content-hash revision. A request
// that leaves IsAdmin unset keeps the user's current role; the revision guard
// catches a concurrent role change between the read and the write.
func (s *UserService) Update(ctx context.Context, id int64, update UserUpdate, expectedRev string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	row := &models.User{Name: update.Name}
	if update.Password != "" {
		digest, err := hashPassword(update.Password)
		if err != nil {
			return nil, err
		}
		row.Password = digest
	}

	if update.IsAdmin != nil {
		row.IsAdmin = *update.IsAdmin
	} else {
		current, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		row.IsAdmin = current.IsAdmin
	}

	return repo.Update(ctx, id, row, expectedRev)
}

// Delete removes the user; the token record cascades.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	return s.repomanager.Users(s.db).Delete(ctx, id)
}
