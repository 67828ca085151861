// Package repository holds the SQL behind the upload ledger.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dharsanguruparan/expiredrop/internal/model"
	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("upload not recorded")

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UploadRepository records uploads and their reclamation.
type UploadRepository struct {
	db DB
}

// NewUploadRepository constructs a repository.
func NewUploadRepository(db DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create inserts a freshly stored upload.
func (r *UploadRepository) Create(ctx context.Context, u *model.Upload) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO uploads (id, file_name, size, content_type, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, u.ID.String(), u.Name, u.Size, u.ContentType, u.ExpiresAt, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	return nil
}

// Get returns the recorded upload with id.
func (r *UploadRepository) Get(ctx context.Context, id uploadid.ID) (*model.Upload, error) {
	var (
		u         model.Upload
		reclaimed *time.Time
	)
	row := r.db.QueryRow(ctx, `
		SELECT file_name, size, content_type, expires_at, created_at, reclaimed_at
		FROM uploads WHERE id=$1
	`, id.String())
	if err := row.Scan(&u.Name, &u.Size, &u.ContentType, &u.ExpiresAt, &u.CreatedAt, &reclaimed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select upload: %w", err)
	}
	u.ID = id
	u.ReclaimedAt = reclaimed
	return &u, nil
}

// MarkReclaimed stamps the time the upload's content was deleted. Uploads
// that were never recorded are ignored.
func (r *UploadRepository) MarkReclaimed(ctx context.Context, id uploadid.ID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE uploads SET reclaimed_at=$1 WHERE id=$2 AND reclaimed_at IS NULL
	`, at.UTC(), id.String())
	if err != nil {
		return fmt.Errorf("update upload: %w", err)
	}
	return nil
}
