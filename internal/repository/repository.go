// Package repository defines domain models and data access interfaces
// for users and their uploaded files.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// User represents an account owning one knowledge-base collection
type User struct {
	ID        uuid.UUID
	Username  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// File record lifecycle states
const (
	FileStatusProcessing = "processing"
	FileStatusIndexed    = "indexed"
	FileStatusFailed     = "failed"
)

// FileRecord tracks an uploaded file and its indexing progress
type FileRecord struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	FileName   string
	FileType   string
	FileSize   int64
	ChunkCount int
	Status     string
	Error      string
	UploadedAt time.Time
	UpdatedAt  time.Time
}

// UserRepository defines operations for user persistence
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// FileRecordRepository defines operations for file record persistence
type FileRecordRepository interface {
	Create(ctx context.Context, record *FileRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*FileRecord, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*FileRecord, int, error)
	Update(ctx context.Context, record *FileRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
}
