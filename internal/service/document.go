// Package service implements the document write path: chunk embedding,
// vector index population and file record bookkeeping.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kbase/kbase/internal/embedder"
	"github.com/kbase/kbase/internal/repository"
	"github.com/kbase/kbase/internal/vectorstore"
)

// ErrNotOwner is returned when a caller operates on a file belonging to
// another user.
var ErrNotOwner = errors.New("file belongs to another user")

// DocumentService indexes uploaded file content into a user's
// collection and tracks progress in file records.
type DocumentService struct {
	fileRepo repository.FileRecordRepository
	embedder embedder.Embedder
	index    vectorstore.VectorIndex
	logger   *slog.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	fileRepo repository.FileRecordRepository,
	embedder embedder.Embedder,
	index vectorstore.VectorIndex,
	logger *slog.Logger,
) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{
		fileRepo: fileRepo,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// IngestRequest carries one file's pre-extracted chunks. Text
// extraction and chunking happen upstream; this service owns embedding
// and indexing.
type IngestRequest struct {
	UserID   uuid.UUID
	Username string
	FileName string
	FileType string
	FileSize int64
	Chunks   []string
}

// Ingest embeds the chunks and writes them into the user's collection,
// creating the collection on first use. The returned record reflects
// the final indexing status.
func (s *DocumentService) Ingest(ctx context.Context, req *IngestRequest) (*repository.FileRecord, error) {
	if req.UserID == uuid.Nil || req.Username == "" {
		return nil, fmt.Errorf("user identity is required")
	}
	if req.FileName == "" {
		return nil, fmt.Errorf("file name is required")
	}
	if len(req.Chunks) == 0 {
		return nil, fmt.Errorf("no chunks to index")
	}

	now := time.Now()
	record := &repository.FileRecord{
		ID:         uuid.New(),
		UserID:     req.UserID,
		FileName:   req.FileName,
		FileType:   req.FileType,
		FileSize:   req.FileSize,
		Status:     repository.FileStatusProcessing,
		UploadedAt: now,
		UpdatedAt:  now,
	}
	if err := s.fileRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	if err := s.indexChunks(ctx, req, record.ID); err != nil {
		record.Status = repository.FileStatusFailed
		record.Error = err.Error()
		if updateErr := s.fileRepo.Update(ctx, record); updateErr != nil {
			s.logger.Error("failed to mark file record failed",
				"file_id", record.ID, "error", updateErr)
		}
		return nil, err
	}

	record.Status = repository.FileStatusIndexed
	record.ChunkCount = len(req.Chunks)
	if err := s.fileRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update file record: %w", err)
	}

	s.logger.Info("file indexed",
		"file_id", record.ID,
		"user_id", req.UserID,
		"chunks", len(req.Chunks))
	return record, nil
}

func (s *DocumentService) indexChunks(ctx context.Context, req *IngestRequest, fileID uuid.UUID) error {
	collection := vectorstore.CollectionName(req.Username, req.UserID)
	if err := s.index.EnsureCollection(ctx, collection, s.embedder.Dimension()); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, req.Chunks)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(req.Chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(req.Chunks))
	}

	points := make([]vectorstore.Point, len(req.Chunks))
	for i, chunk := range req.Chunks {
		points[i] = vectorstore.Point{
			ID:            uuid.New().String(),
			DocumentID:    fileID.String(),
			Title:         req.FileName,
			SourceType:    req.FileType,
			ChunkPosition: i,
			Content:       chunk,
			Vector:        vectors[i],
		}
	}

	if err := s.index.Upsert(ctx, collection, points); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Delete removes a file's chunks from the index and drops its record.
// Only the owner may delete a file.
func (s *DocumentService) Delete(ctx context.Context, userID uuid.UUID, username string, fileID uuid.UUID) error {
	record, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if record.UserID != userID {
		return ErrNotOwner
	}

	collection := vectorstore.CollectionName(username, userID)
	if err := s.index.DeleteDocument(ctx, collection, fileID.String()); err != nil {
		return fmt.Errorf("failed to delete file from index: %w", err)
	}

	if err := s.fileRepo.Delete(ctx, fileID); err != nil {
		return err
	}

	s.logger.Info("file deleted", "file_id", fileID, "user_id", userID)
	return nil
}

// DeleteAll drops the user's entire collection and every file record
// in it.
func (s *DocumentService) DeleteAll(ctx context.Context, userID uuid.UUID, username string) error {
	collection := vectorstore.CollectionName(username, userID)
	if err := s.index.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	records, _, err := s.fileRepo.List(ctx, userID, 100, 0)
	for err == nil && len(records) > 0 {
		for _, record := range records {
			if delErr := s.fileRepo.Delete(ctx, record.ID); delErr != nil {
				return delErr
			}
		}
		records, _, err = s.fileRepo.List(ctx, userID, 100, 0)
	}
	if err != nil {
		return err
	}

	s.logger.Info("collection deleted", "user_id", userID)
	return nil
}

// List returns a user's file records, newest first.
func (s *DocumentService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*repository.FileRecord, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.fileRepo.List(ctx, userID, limit, offset)
}
