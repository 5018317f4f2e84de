// Package files provides a PostgreSQL-backed repository for file metadata
// with content-hash optimistic concurrency. The binary payload itself lives
// in object storage and is referenced by storage key.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/anpetrov/filegate/internal/common"
	"github.com/anpetrov/filegate/internal/dbx"
	"github.com/anpetrov/filegate/internal/server/integrity"
	"github.com/anpetrov/filegate/internal/server/models"
	"github.com/anpetrov/filegate/internal/server/repositories/versioned"
)

// PostgresRepository implements file metadata storage over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db   dbx.DBTX
	spec versioned.Spec[*models.File]
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	r := &PostgresRepository{db: db}
	r.spec = versioned.Spec[*models.File]{
		Volatile: integrity.VolatileFields,
		Fetch:    r.fetch,
		Insert:   r.insert,
		StampRev: r.stampRev,
		Merge:    merge,
		Persist:  r.persist,
		ID:       func(f *models.File) int64 { return f.ID },
		Rev:      func(f *models.File) string { return f.Rev },
		SetRev:   func(f *models.File, rev string) { f.Rev = rev },
	}
	return r
}

func scanFile(row interface{ Scan(...any) error }) (*models.File, error) {
	file := &models.File{}
	var rev sql.NullString
	err := row.Scan(&file.ID, &file.Name, &file.ServerID, &file.StorageKey,
		&file.Size, &file.ContentType, &file.CreatedTime, &file.UpdatedTime, &rev)
	if err != nil {
		return nil, err
	}
	file.Rev = rev.String
	return file, nil
}

func (r *PostgresRepository) fetch(ctx context.Context, db dbx.DBTX, id int64) (*models.File, error) {
	query := `
		SELECT id, name, server_id, storage_key, size, content_type, created_time, updated_time, rev
		FROM files
		WHERE id = $1
	`
	file, err := scanFile(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

func (r *PostgresRepository) insert(ctx context.Context, db dbx.DBTX, file *models.File) (*models.File, error) {
	query := `
		INSERT INTO files (name, server_id, storage_key, size, content_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, server_id, storage_key, size, content_type, created_time, updated_time, rev
	`
	inserted, err := scanFile(db.QueryRowContext(ctx, query,
		file.Name, file.ServerID, file.StorageKey, file.Size, file.ContentType))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return inserted, nil
}

func (r *PostgresRepository) stampRev(ctx context.Context, db dbx.DBTX, id int64, rev string) error {
	query := `UPDATE files SET rev = $2 WHERE id = $1`
	if _, err := db.ExecContext(ctx, query, id, rev); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func merge(current, update *models.File) *models.File {
	merged := *current
	if update.Name != "" {
		merged.Name = update.Name
	}
	if update.ContentType != "" {
		merged.ContentType = update.ContentType
	}
	if update.Size != 0 {
		merged.Size = update.Size
	}
	// storage key and owner are immutable after upload
	return &merged
}

func (r *PostgresRepository) persist(ctx context.Context, db dbx.DBTX, file *models.File, rev, guardRev string) (*models.File, error) {
	// the rev predicate makes the compare-and-swap atomic at the row level
	query := `
		UPDATE files
		SET name = $2, size = $3, content_type = $4, updated_time = now(), rev = $5
		WHERE id = $1 AND rev = $6
		RETURNING id, name, server_id, storage_key, size, content_type, created_time, updated_time, rev
	`
	updated, err := scanFile(db.QueryRowContext(ctx, query, file.ID, file.Name, file.Size, file.ContentType, rev, guardRev))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrIntegrityConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return updated, nil
}

// Create inserts the metadata row and stamps its initial revision.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	return r.spec.Create(ctx, r.db, file)
}

// GetByID returns the file or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.File, error) {
	return r.fetch(ctx, r.db, id)
}

// ListByServer returns all files owned by serverID ordered by id.
func (r *PostgresRepository) ListByServer(ctx context.Context, serverID int64) ([]*models.File, error) {
	query := `
		SELECT id, name, server_id, storage_key, size, content_type, created_time, updated_time, rev
		FROM files
		WHERE server_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update applies the caller's values if expectedRev still matches.
func (r *PostgresRepository) Update(ctx context.Context, id int64, update *models.File, expectedRev string) (*models.File, error) {
	return r.spec.Update(ctx, r.db, id, update, expectedRev)
}

// Delete removes the metadata row.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM files WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
