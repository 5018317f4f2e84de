package servers

import (
	"context"

	"github.com/anpetrov/filegate/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, server *models.Server) (*models.Server, error)
	GetByID(ctx context.Context, id int64) (*models.Server, error)
	GetByName(ctx context.Context, name string) (*models.Server, error)
	List(ctx context.Context) ([]*models.Server, error)
	Update(ctx context.Context, id int64, update *models.Server, expectedRev string) (*models.Server, error)
	Delete(ctx context.Context, id int64) error
	TouchLastConnection(ctx context.Context, id int64) error
}
