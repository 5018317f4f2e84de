// Package users provides a PostgreSQL-backed repository for user accounts
// (admin and application users) with content-hash optimistic concurrency.
package users

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

// PostgresRepository implements user storage over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db   dbx.DBTX
	spec versioned.Spec[*models.User]
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	r := &PostgresRepository{db: db}
	r.spec = versioned.Spec[*models.User]{
		Volatile: integrity.VolatileFields,
		Fetch:    r.fetch,
		Insert:   r.insert,
		StampRev: r.stampRev,
		Merge:    merge,
		Persist:  r.persist,
		ID:       func(u *models.User) int64 { return u.ID },
		Rev:      func(u *models.User) string { return u.Rev },
		SetRev:   func(u *models.User, rev string) { u.Rev = rev },
	}
	return r
}

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	var lastConnection sql.NullTime
	var rev sql.NullString
	err := row.Scan(&user.ID, &user.Name, &user.Password, &user.IsAdmin,
		&lastConnection, &user.CreatedTime, &user.UpdatedTime, &rev)
	if err != nil {
		return nil, err
	}
	if lastConnection.Valid {
		user.LastConnection = &lastConnection.Time
	}
	user.Rev = rev.String
	return user, nil
}

func (r *PostgresRepository) fetch(ctx context.Context, db dbx.DBTX, id int64) (*models.User, error) {
	query := `
		SELECT id, name, password, is_admin, last_connection, created_time, updated_time, rev
		FROM users
		WHERE id = $1
	`
	user, err := scanUser(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) insert(ctx context.Context, db dbx.DBTX, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (name, password, is_admin)
		VALUES ($1, $2, $3)
		RETURNING id, name, password, is_admin, last_connection, created_time, updated_time, rev
	`
	inserted, err := scanUser(db.QueryRowContext(ctx, query, user.Name, user.Password, user.IsAdmin))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return inserted, nil
}

func (r *PostgresRepository) stampRev(ctx context.Context, db dbx.DBTX, id int64, rev string) error {
	query := `UPDATE users SET rev = $2 WHERE id = $1`
	if _, err := db.ExecContext(ctx, query, id, rev); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func merge(current, update *models.User) *models.User {
	merged := *current
	if update.Name != "" {
		merged.Name = update.Name
	}
	if update.Password != "" {
		merged.Password = update.Password
	}
	// admin flag changes are deliberate content changes
	merged.IsAdmin = update.IsAdmin
	return &merged
}

func (r *PostgresRepository) persist(ctx context.Context, db dbx.DBTX, user *models.User, rev, guardRev string) (*models.User, error) {
	// the rev predicate makes the compare-and-swap atomic at the row level
	query := `
		UPDATE users
		SET name = $2, password = $3, is_admin = $4, updated_time = now(), rev = $5
		WHERE id = $1 AND rev = $6
		RETURNING id, name, password, is_admin, last_connection, created_time, updated_time, rev
	`
	updated, err := scanUser(db.QueryRowContext(ctx, query, user.ID, user.Name, user.Password, user.IsAdmin, rev, guardRev))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrIntegrityConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return updated, nil
}

// Create inserts the user and stamps its initial revision.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	return r.spec.Create(ctx, r.db, user)
}

// GetByID returns the user or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.fetch(ctx, r.db, id)
}

// GetByName returns the user with the given unique name.
func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.User, error) {
	query := `
		SELECT id, name, password, is_admin, last_connection, created_time, updated_time, rev
		FROM users
		WHERE name = $1
	`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// List returns all users ordered by id.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT id, name, password, is_admin, last_connection, created_time, updated_time, rev
		FROM users
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update applies the caller's values if expectedRev still matches.
func (r *PostgresRepository) Update(ctx context.Context, id int64, update *models.User, expectedRev string) (*models.User, error) {
	return r.spec.Update(ctx, r.db, id, update, expectedRev)
}

// Delete removes the user; the token record cascades.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM users WHERE id = $1`
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

// TouchLastConnection records a successful authentication.
func (r *PostgresRepository) TouchLastConnection(ctx context.Context, id int64) error {
	query := `UPDATE users SET last_connection = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
