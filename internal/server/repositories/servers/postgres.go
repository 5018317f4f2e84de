// Package servers provides a PostgreSQL-backed repository for tenant servers
// with content-hash optimistic concurrency on every update.
package servers

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

// PostgresRepository implements server storage over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db   dbx.DBTX
	spec versioned.Spec[*models.Server]
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	r := &PostgresRepository{db: db}
	r.spec = versioned.Spec[*models.Server]{
		Volatile: integrity.VolatileFields,
		Fetch:    r.fetch,
		Insert:   r.insert,
		StampRev: r.stampRev,
		Merge:    merge,
		Persist:  r.persist,
		ID:       func(s *models.Server) int64 { return s.ID },
		Rev:      func(s *models.Server) string { return s.Rev },
		SetRev:   func(s *models.Server, rev string) { s.Rev = rev },
	}
	return r
}

func scanServer(row interface{ Scan(...any) error }) (*models.Server, error) {
	server := &models.Server{}
	var lastConnection sql.NullTime
	var rev sql.NullString
	err := row.Scan(&server.ID, &server.Name, &server.Password,
		&lastConnection, &server.CreatedTime, &server.UpdatedTime, &rev)
	if err != nil {
		return nil, err
	}
	if lastConnection.Valid {
		server.LastConnection = &lastConnection.Time
	}
	server.Rev = rev.String
	return server, nil
}

func (r *PostgresRepository) fetch(ctx context.Context, db dbx.DBTX, id int64) (*models.Server, error) {
	query := `
		SELECT id, name, password, last_connection, created_time, updated_time, rev
		FROM servers
		WHERE id = $1
	`
	server, err := scanServer(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return server, nil
}

func (r *PostgresRepository) insert(ctx context.Context, db dbx.DBTX, server *models.Server) (*models.Server, error) {
	query := `
		INSERT INTO servers (name, password)
		VALUES ($1, $2)
		RETURNING id, name, password, last_connection, created_time, updated_time, rev
	`
	inserted, err := scanServer(db.QueryRowContext(ctx, query, server.Name, server.Password))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return inserted, nil
}

func (r *PostgresRepository) stampRev(ctx context.Context, db dbx.DBTX, id int64, rev string) error {
	query := `UPDATE servers SET rev = $2 WHERE id = $1`
	if _, err := db.ExecContext(ctx, query, id, rev); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func merge(current, update *models.Server) *models.Server {
	merged := *current
	if update.Name != "" {
		merged.Name = update.Name
	}
	if update.Password != "" {
		merged.Password = update.Password
	}
	return &merged
}

func (r *PostgresRepository) persist(ctx context.Context, db dbx.DBTX, server *models.Server, rev, guardRev string) (*models.Server, error) {
	// the rev predicate makes the compare-and-swap atomic at the row level
	query := `
		UPDATE servers
		SET name = $2, password = $3, updated_time = now(), rev = $4
		WHERE id = $1 AND rev = $5
		RETURNING id, name, password, last_connection, created_time, updated_time, rev
	`
	updated, err := scanServer(db.QueryRowContext(ctx, query, server.ID, server.Name, server.Password, rev, guardRev))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrIntegrityConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return updated, nil
}

// Create inserts the server and stamps its initial revision (two-phase, since
// the hash covers the generated id).
func (r *PostgresRepository) Create(ctx context.Context, server *models.Server) (*models.Server, error) {
	return r.spec.Create(ctx, r.db, server)
}

// GetByID returns the server or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Server, error) {
	return r.fetch(ctx, r.db, id)
}

// GetByName returns the server with the given unique name.
func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.Server, error) {
	query := `
		SELECT id, name, password, last_connection, created_time, updated_time, rev
		FROM servers
		WHERE name = $1
	`
	server, err := scanServer(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return server, nil
}

// List returns all servers ordered by id.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.Server, error) {
	query := `
		SELECT id, name, password, last_connection, created_time, updated_time, rev
		FROM servers
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Server
	for rows.Next() {
		server, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, server)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update applies the caller's values if expectedRev still matches the
// persisted row; a stale revision yields common.ErrIntegrityConflict.
func (r *PostgresRepository) Update(ctx context.Context, id int64, update *models.Server, expectedRev string) (*models.Server, error) {
	return r.spec.Update(ctx, r.db, id, update, expectedRev)
}

// Delete removes the server; dependent rows (files, tokens) cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM servers WHERE id = $1`
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

// TouchLastConnection records a successful authentication. The column is
// excluded from the content hash, so this never invalidates client revisions.
func (r *PostgresRepository) TouchLastConnection(ctx context.Context, id int64) error {
	query := `UPDATE servers SET last_connection = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
