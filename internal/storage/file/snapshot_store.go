package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/makkenzo/keygate/internal/domain/apikey"
	"go.uber.org/zap"
)

// SnapshotStore keeps the snapshot as a single JSON document on disk.
// Saves write a temporary file next to the target and rename it over.
type SnapshotStore struct {
	path   string
	logger *zap.Logger
}

func NewSnapshotStore(path string, logger *zap.Logger) *SnapshotStore {
	return &SnapshotStore{
		path:   path,
		logger: logger.Named("FileSnapshotStore"),
	}
}

var _ apikey.SnapshotStore = (*SnapshotStore)(nil)

func (s *SnapshotStore) Load(ctx context.Context) (map[string]apikey.CredentialRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("Snapshot file not found, starting empty", zap.String("path", s.path))
			return make(map[string]apikey.CredentialRecord), nil
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", s.path, err)
	}

	return apikey.DecodeSnapshot(data)
}

func (s *SnapshotStore) Save(ctx context.Context, records map[string]apikey.CredentialRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := apikey.EncodeSnapshot(records)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing snapshot %s: %w", s.path, err)
	}

	s.logger.Debug("Snapshot written", zap.String("path", s.path), zap.Int("keys", len(records)))
	return nil
}

// Ping checks that the snapshot directory is reachable.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(s.path))
	}
	return nil
}
