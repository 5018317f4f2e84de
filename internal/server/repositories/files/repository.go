package files

import (
	"context"

	"github.com/anpetrov/filegate/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) (*models.File, error)
	GetByID(ctx context.Context, id int64) (*models.File, error)
	ListByServer(ctx context.Context, serverID int64) ([]*models.File, error)
	Update(ctx context.Context, id int64, update *models.File, expectedRev string) (*models.File, error)
	Delete(ctx context.Context, id int64) error
}
