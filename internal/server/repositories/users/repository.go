package users

import (
	"context"

	"github.com/anpetrov/filegate/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByName(ctx context.Context, name string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, id int64, update *models.User, expectedRev string) (*models.User, error)
	Delete(ctx context.Context, id int64) error
	TouchLastConnection(ctx context.Context, id int64) error
}
