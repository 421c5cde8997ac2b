// Package recording stores uploaded session recordings and their metadata.
// The session lifecycle never calls into this package; recordings only borrow
// the session id and name they were captured under.
package recording

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/debashish17/Riverside/internal/models"
)

const defaultExt = ".webm"

// Service persists recording files under a local directory and their metadata
// rows in the database. Chunked uploads are claimed in an expiring tracker.
type Service struct {
	db      *sql.DB
	dir     string
	tracker UploadTracker
}

func NewService(db *sql.DB, dir string, tracker UploadTracker) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &Service{db: db, dir: dir, tracker: tracker}, nil
}

// Save stores a complete recording in one shot.
func (s *Service) Save(ctx context.Context, src io.Reader, originalName string, sessionID *int64, sessionName string) (*models.Recording, error) {
	filename := storedName(originalName)
	path := filepath.Join(s.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}
	size, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write recording file: %w", err)
	}

	return s.insert(ctx, filename, originalName, path, size, sessionID, sessionName)
}

// InitChunked claims an upload id for a chunked recording upload. The claim
// expires if the client goes away mid-upload.
func (s *Service) InitChunked(ctx context.Context, userID int64, originalName string, sessionID *int64, sessionName string) (string, error) {
	id := uuid.NewString()
	partPath := filepath.Join(s.dir, id+".part")

	f, err := os.Create(partPath)
	if err != nil {
		return "", fmt.Errorf("create part file: %w", err)
	}
	f.Close()

	meta := UploadMeta{
		ID:           id,
		UserID:       userID,
		SessionID:    sessionID,
		SessionName:  sessionName,
		OriginalName: originalName,
		PartPath:     partPath,
	}
	if err := s.tracker.Put(ctx, meta); err != nil {
		os.Remove(partPath)
		return "", err
	}
	log.Info().Str("upload_id", id).Str("file", originalName).Msg("chunked upload started")
	return id, nil
}

// AppendChunk appends one chunk to the claimed upload and refreshes its TTL.
// Only the user who opened the upload may append to it.
func (s *Service) AppendChunk(ctx context.Context, userID int64, uploadID string, chunk io.Reader) (int64, error) {
	meta, err := s.tracker.Get(ctx, uploadID)
	if err != nil {
		return 0, err
	}
	if meta.UserID != userID {
		return 0, ErrUploadNotFound
	}

	f, err := os.OpenFile(meta.PartPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open part file: %w", err)
	}
	written, err := io.Copy(f, chunk)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("append chunk: %w", err)
	}

	meta.Chunks++
	if err := s.tracker.Put(ctx, meta); err != nil {
		return 0, err
	}
	return written, nil
}

// CompleteChunked finalizes the upload: the part file becomes the stored
// recording and a metadata row is written.
func (s *Service) CompleteChunked(ctx context.Context, userID int64, uploadID string) (*models.Recording, error) {
	meta, err := s.tracker.Get(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if meta.UserID != userID {
		return nil, ErrUploadNotFound
	}

	filename := storedName(meta.OriginalName)
	finalPath := filepath.Join(s.dir, filename)
	if err := os.Rename(meta.PartPath, finalPath); err != nil {
		return nil, fmt.Errorf("finalize recording: %w", err)
	}
	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, fmt.Errorf("stat recording: %w", err)
	}

	rec, err := s.insert(ctx, filename, meta.OriginalName, finalPath, info.Size(), meta.SessionID, meta.SessionName)
	if err != nil {
		return nil, err
	}
	if err := s.tracker.Delete(ctx, uploadID); err != nil {
		log.Warn().Err(err).Str("upload_id", uploadID).Msg("release upload claim")
	}
	log.Info().Str("upload_id", uploadID).Int("chunks", meta.Chunks).Int64("size", rec.Size).Msg("chunked upload completed")
	return rec, nil
}

// List returns recording metadata, optionally filtered by session.
func (s *Service) List(ctx context.Context, sessionID *int64) ([]models.Recording, error) {
	query := `SELECT id, filename, original_name, file_path, size, session_id, session_name, status, storage_type, created_at
		 FROM recordings`
	args := []any{}
	if sessionID != nil {
		query += ` WHERE session_id = ?`
		args = append(args, *sessionID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	recordings := make([]models.Recording, 0)
	for rows.Next() {
		var r models.Recording
		if err := rows.Scan(&r.ID, &r.Filename, &r.OriginalName, &r.FilePath, &r.Size,
			&r.SessionID, &r.SessionName, &r.Status, &r.StorageType, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		recordings = append(recordings, r)
	}
	return recordings, rows.Err()
}

func (s *Service) insert(ctx context.Context, filename, originalName, path string, size int64, sessionID *int64, sessionName string) (*models.Recording, error) {
	now := time.Now().UTC()
	rec := &models.Recording{
		Filename:     filename,
		OriginalName: originalName,
		FilePath:     path,
		Size:         size,
		SessionID:    sessionID,
		SessionName:  sessionName,
		Status:       "completed",
		StorageType:  "local",
		CreatedAt:    now,
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO recordings (filename, original_name, file_path, size, session_id, session_name, status, storage_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Filename, rec.OriginalName, rec.FilePath, rec.Size, rec.SessionID, rec.SessionName, rec.Status, rec.StorageType, rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}
	rec.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("recording id: %w", err)
	}
	return rec, nil
}

func storedName(originalName string) string {
	ext := filepath.Ext(originalName)
	if ext == "" {
		ext = defaultExt
	}
	return uuid.NewString() + ext
}

// IsNotFound reports whether err is the expired/unknown-upload outcome.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUploadNotFound)
}
