package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kbase/kbase/internal/repository"
)

// FileRecordRepo implements repository.FileRecordRepository
type FileRecordRepo struct {
	db *DB
}

// NewFileRecordRepo creates a new file record repository
func NewFileRecordRepo(db *DB) *FileRecordRepo {
	return &FileRecordRepo{db: db}
}

// Create creates a new file record
func (r *FileRecordRepo) Create(ctx context.Context, record *repository.FileRecord) error {
	query := `
		INSERT INTO file_records (id, user_id, file_name, file_type, file_size, chunk_count, status, error, uploaded_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		record.ID, record.UserID, record.FileName, record.FileType, record.FileSize,
		record.ChunkCount, record.Status, record.Error, record.UploadedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create file record: %w", err)
	}
	return nil
}

// GetByID retrieves a file record by ID
func (r *FileRecordRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.FileRecord, error) {
	query := `
		SELECT id, user_id, file_name, file_type, file_size, chunk_count, status, error, uploaded_at, updated_at
		FROM file_records
		WHERE id = $1
	`
	var record repository.FileRecord
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&record.ID, &record.UserID, &record.FileName, &record.FileType, &record.FileSize,
		&record.ChunkCount, &record.Status, &record.Error, &record.UploadedAt, &record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}
	return &record, nil
}

// List retrieves a user's file records with pagination, newest first
func (r *FileRecordRepo) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*repository.FileRecord, int, error) {
	var total int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM file_records WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count file records: %w", err)
	}

	query := `
		SELECT id, user_id, file_name, file_type, file_size, chunk_count, status, error, uploaded_at, updated_at
		FROM file_records
		WHERE user_id = $1
		ORDER BY uploaded_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list file records: %w", err)
	}
	defer rows.Close()

	var records []*repository.FileRecord
	for rows.Next() {
		var record repository.FileRecord
		if err := rows.Scan(
			&record.ID, &record.UserID, &record.FileName, &record.FileType, &record.FileSize,
			&record.ChunkCount, &record.Status, &record.Error, &record.UploadedAt, &record.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan file record: %w", err)
		}
		records = append(records, &record)
	}

	return records, total, nil
}

// Update updates a file record's indexing progress
func (r *FileRecordRepo) Update(ctx context.Context, record *repository.FileRecord) error {
	query := `
		UPDATE file_records
		SET chunk_count = $2, status = $3, error = $4, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Pool.Exec(ctx, query,
		record.ID, record.ChunkCount, record.Status, record.Error)
	if err != nil {
		return fmt.Errorf("failed to update file record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete deletes a file record
func (r *FileRecordRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM file_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Ensure FileRecordRepo implements the interface
var _ repository.FileRecordRepository = (*FileRecordRepo)(nil)
