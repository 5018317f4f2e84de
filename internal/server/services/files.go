package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/anpetrov/filegate/internal/dbx"
	"github.com/anpetrov/filegate/internal/logging"
	"github.com/anpetrov/filegate/internal/server/models"
	"github.com/anpetrov/filegate/internal/server/repositories/repomanager"
)

// FileService manages file metadata rows and their object storage payloads.
// Clients never stream payloads through this backend; they get presigned URLs
// and talk to storage directly.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     ObjectStorage
	logger      logging.Logger
}

// NewFileService constructs a FileService with an injected storage client.
func NewFileService(db *sql.DB, m repomanager.RepositoryManager, storage ObjectStorage, logger logging.Logger) *FileService {
	return &FileService{
		db:          db,
		repomanager: m,
		storage:     storage,
		logger:      logger.With("module", "files"),
	}
}

// Create allocates a storage key, presigns an upload URL and records the
// metadata row. The returned URL is valid for a short window only. Presigning
// happens before the transaction so no network call runs while it is open;
// the insert and the revision stamp commit together.
func (s *FileService) Create(ctx context.Context, serverID int64, name string, size int64, contentType string) (*models.File, string, error) {
	key := RandomStorageKey()

	uploadURL, err := s.storage.PresignPut(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("error presigning upload: %w", err)
	}

	var file *models.File
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		file, err = s.repomanager.Files(tx).Create(ctx, &models.File{
			Name:        name,
			ServerID:    serverID,
			StorageKey:  key,
			Size:        size,
			ContentType: contentType,
		})
		return err
	})
	if err != nil {
		return nil, "", fmt.Errorf("error creating file: %w", err)
	}

	return file, uploadURL, nil
}

// Get returns file metadata by id.
func (s *FileService) Get(ctx context.Context, id int64) (*models.File, error) {
	return s.repomanager.Files(s.db).GetByID(ctx, id)
}

// ListByServer returns all files owned by serverID.
func (s *FileService) ListByServer(ctx context.Context, serverID int64) ([]*models.File, error) {
	return s.repomanager.Files(s.db).ListByServer(ctx, serverID)
}

// DownloadURL returns a presigned GET URL for the file's payload.
func (s *FileService) DownloadURL(ctx context.Context, id int64) (string, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return s.storage.PresignGet(ctx, file.StorageKey)
}

// Update applies an OCC-guarded metadata update. The storage key and owner
// are immutable; only descriptive fields change.
func (s *FileService) Update(ctx context.Context, id int64, update *models.File, expectedRev string) (*models.File, error) {
	return s.repomanager.Files(s.db).Update(ctx, id, update, expectedRev)
}

// Delete removes the payload from object storage and then the metadata row.
func (s *FileService) Delete(ctx context.Context, id int64) error {
	repo := s.repomanager.Files(s.db)

	file, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, file.StorageKey); err != nil {
		return fmt.Errorf("error deleting payload: %w", err)
	}

	return repo.Delete(ctx, id)
}
