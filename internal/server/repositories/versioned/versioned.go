// Package versioned implements the create/update algorithm shared by every
// entity repository that carries a content-hash revision stamp. The three
// entity stores (servers, files, users) all follow the same shape:
//
//   - Create: insert the row without a revision, compute the hash over the
//     full row (the generated id is part of it), then stamp the revision with
//     a second update.
//   - Update: fetch the current row, compare the caller's revision against a
//     freshly computed hash of what is persisted, reject on mismatch, merge
//     the caller's values, compute a new revision and persist everything.
//     The persist itself is guarded by the stored revision (WHERE rev = the
//     value seen at fetch time), so of two racing writers that both pass the
//     hash check exactly one lands; the other gets ErrIntegrityConflict.
//
// Rather than repeating that per entity, repositories supply the SQL-specific
// closures and this package runs the algorithm.
package versioned

import (
	"context"

	"github.com/anpetrov/filegate/internal/common"
	"github.com/anpetrov/filegate/internal/dbx"
	"github.com/anpetrov/filegate/internal/server/integrity"
)

// Spec parameterizes the shared algorithm for one entity type. All closures
// operate on pointer types; Fetch must return common.ErrorNotFound for a
// missing row.
type Spec[T any] struct {
	// Volatile lists the JSON field names excluded from the content hash.
	Volatile []string

	// Fetch loads the currently persisted row by id.
	Fetch func(ctx context.Context, db dbx.DBTX, id int64) (T, error)

	// Insert stores a new row (without revision) and returns it with the
	// generated id and database-assigned defaults populated.
	Insert func(ctx context.Context, db dbx.DBTX, entity T) (T, error)

	// StampRev persists the revision for a freshly inserted row.
	StampRev func(ctx context.Context, db dbx.DBTX, id int64, rev string) error

	// Merge applies the caller's new field values onto the current row.
	Merge func(current, update T) T

	// Persist stores the merged row together with its new revision, but only
	// if the stored revision still equals guardRev. A row that changed since
	// the fetch must yield common.ErrIntegrityConflict.
	Persist func(ctx context.Context, db dbx.DBTX, entity T, rev, guardRev string) (T, error)

	// ID extracts the primary key.
	ID func(T) int64

	// Rev reads the revision currently set on the entity.
	Rev func(T) string

	// SetRev writes the revision onto the entity.
	SetRev func(T, string)
}

// Create runs the two-phase insert: the revision depends on the generated id,
// so it can only be computed after the row exists.
func (s Spec[T]) Create(ctx context.Context, db dbx.DBTX, entity T) (T, error) {
	var zero T

	inserted, err := s.Insert(ctx, db, entity)
	if err != nil {
		return zero, err
	}

	rev, err := integrity.ComputeHash(inserted, s.Volatile...)
	if err != nil {
		return zero, err
	}

	if err := s.StampRev(ctx, db, s.ID(inserted), rev); err != nil {
		return zero, err
	}

	s.SetRev(inserted, rev)
	return inserted, nil
}

// Update runs the optimistic-concurrency check against the persisted row and
// applies the caller's values only when expectedRev still matches. The
// comparison hashes the row as currently stored, not the caller's submitted
// values, so any concurrent content change since the caller's read is caught.
// A writer that slips in between the fetch and the persist is caught by the
// revision guard inside Persist.
func (s Spec[T]) Update(ctx context.Context, db dbx.DBTX, id int64, update T, expectedRev string) (T, error) {
	var zero T

	current, err := s.Fetch(ctx, db, id)
	if err != nil {
		return zero, err
	}

	ok, err := integrity.ValidateHash(current, expectedRev, s.Volatile...)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, common.ErrIntegrityConflict
	}

	merged := s.Merge(current, update)

	rev, err := integrity.ComputeHash(merged, s.Volatile...)
	if err != nil {
		return zero, err
	}

	updated, err := s.Persist(ctx, db, merged, rev, s.Rev(current))
	if err != nil {
		return zero, err
	}

	s.SetRev(updated, rev)
	return updated, nil
}
