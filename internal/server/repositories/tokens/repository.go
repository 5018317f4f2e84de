package tokens

import (
	"context"

	"github.com/anpetrov/filegate/internal/server/models"
)

type Repository interface {
	FindByOwner(ctx context.Context, ownerID int64) (*models.TokenRecord, error)
	UpsertByOwner(ctx context.Context, ownerID int64, token string) (*models.TokenRecord, error)
}
