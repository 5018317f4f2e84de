// Package tokens provides a PostgreSQL-backed repository for persisted token
// records. One implementation serves both the servers_tokens and users_tokens
// tables; the owner column carries the unique constraint that makes
// insert-or-update-on-conflict atomic, so at most one record ever exists per
// owner.
package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/anpetrov/filegate/internal/common"
	"github.com/anpetrov/filegate/internal/dbx"
	"github.com/anpetrov/filegate/internal/server/models"
)

// PostgresRepository implements token record storage over dbx.DBTX for one
// owner table.
type PostgresRepository struct {
	db          dbx.DBTX
	table       string
	ownerColumn string
}

// NewServersPostgresRepository binds the repository to servers_tokens.
func NewServersPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, table: "servers_tokens", ownerColumn: "server_id"}
}

// NewUsersPostgresRepository binds the repository to users_tokens.
func NewUsersPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, table: "users_tokens", ownerColumn: "user_id"}
}

// FindByOwner returns the persisted token record for ownerID, or
// common.ErrorNotFound when the owner has no token yet.
func (r *PostgresRepository) FindByOwner(ctx context.Context, ownerID int64) (*models.TokenRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, %s, token
		FROM %s
		WHERE %s = $1
	`, r.ownerColumn, r.table, r.ownerColumn)

	record := &models.TokenRecord{}
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&record.ID, &record.OwnerID, &record.Token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return record, nil
}

// UpsertByOwner stores token for ownerID, replacing any previous record in
// place. Concurrent upserts for the same owner are serialized by the
// database's conflict handling; the last write wins.
func (r *PostgresRepository) UpsertByOwner(ctx context.Context, ownerID int64, token string) (*models.TokenRecord, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, token)
		VALUES ($1, $2)
		ON CONFLICT (%s)
		DO UPDATE SET token = EXCLUDED.token
		RETURNING id, %s, token
	`, r.table, r.ownerColumn, r.ownerColumn, r.ownerColumn)

	record := &models.TokenRecord{}
	if err := r.db.QueryRowContext(ctx, query, ownerID, token).Scan(&record.ID, &record.OwnerID, &record.Token); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return record, nil
}
