package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vedahq/veda-call-service/pkg/gcs"
	"github.com/vedahq/veda-call-service/pkg/logger"
	"go.uber.org/zap"
)

// StorageType represents the type of storage backend
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeGCS   StorageType = "gcs"
)

// Store persists binary artifacts (call recordings, profile images) under
// caller-chosen object paths.
type Store interface {
	// Put writes content at objectPath and returns the number of bytes stored.
	Put(ctx context.Context, objectPath string, contentType string, content []byte) (int64, error)
	// Delete removes an object; deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error
	// PlaybackURL returns a time-limited URL (or local path) for reading.
	PlaybackURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
}

// New builds a store for the configured backend. storagePath is the GCS
// bucket name or the local base directory.
func New(ctx context.Context, storageType StorageType, storagePath string) (Store, error) {
	switch storageType {
	case StorageTypeGCS:
		client, err := gcs.NewGCSClient(ctx, storagePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create gcs store: %w", err)
		}
		logger.Base().Info("gcs store initialized", zap.String("bucket", storagePath))
		return &gcsStore{client: client}, nil
	case StorageTypeLocal:
		if err := os.MkdirAll(storagePath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create local store dir: %w", err)
		}
		logger.Base().Info("local store initialized", zap.String("dir", storagePath))
		return &localStore{baseDir: storagePath}, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", storageType)
	}
}

type gcsStore struct {
	client *gcs.GCSClient
}

func (s *gcsStore) Put(ctx context.Context, objectPath string, contentType string, content []byte) (int64, error) {
	return s.client.Upload(ctx, objectPath, contentType, bytes.NewReader(content))
}

func (s *gcsStore) Delete(ctx context.Context, objectPath string) error {
	return s.client.Delete(ctx, objectPath)
}

func (s *gcsStore) PlaybackURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	return s.client.GetPresignedURL(ctx, objectPath, time.Now().Add(ttl))
}

type localStore struct {
	baseDir string
}

// resolve keeps object paths inside the base directory.
func (s *localStore) resolve(objectPath string) (string, error) {
	cleaned := filepath.Clean("/" + objectPath)
	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return filepath.Join(s.baseDir, cleaned), nil
}

func (s *localStore) Put(ctx context.Context, objectPath string, contentType string, content []byte) (int64, error) {
	target, err := s.resolve(objectPath)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create object dir: %w", err)
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write object: %w", err)
	}
	return int64(len(content)), nil
}

func (s *localStore) Delete(ctx context.Context, objectPath string) error {
	target, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *localStore) PlaybackURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	target, err := s.resolve(objectPath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(target); err != nil {
		return "", fmt.Errorf("object not found: %w", err)
	}
	return "file://" + target, nil
}

// RecordingObjectPath is the canonical layout for archived recordings:
// namespaced by user, call and provider recording id.
func RecordingObjectPath(userID, callID, recordingSID string) string {
	return fmt.Sprintf("%s/%s/%s.mp3", userID, callID, recordingSID)
}

// ProfileImageObjectPath is the layout for loved-one profile images.
func ProfileImageObjectPath(userID, lovedOneID string, slot int, ext string) string {
	return fmt.Sprintf("%s/loved-ones/%s/profile_%d%s", userID, lovedOneID, slot, ext)
}
