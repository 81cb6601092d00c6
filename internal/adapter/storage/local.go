package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinnadar22/mongovault/internal/domain"
)

const stagingDir = ".staging"

// LocalStore keeps archives as plain files under basePath. Writes go to a
// staging directory first and are renamed into place on success, so readers
// never observe a partially written archive.
type LocalStore struct {
	basePath  string
	stagePath string
}

func NewLocal(basePath string) (*LocalStore, error) {
	stagePath := filepath.Join(basePath, stagingDir)
	if err := os.MkdirAll(stagePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &LocalStore{basePath: basePath, stagePath: stagePath}, nil
}

func (l *LocalStore) Put(ctx context.Context, database string, r io.Reader) (domain.Archive, error) {
	id := newArchiveID(database)
	finalPath := filepath.Join(l.basePath, id)

	if _, err := os.Stat(finalPath); err == nil {
		return domain.Archive{}, fmt.Errorf("archive %s: %w", id, domain.ErrAlreadyExists)
	}

	tmpPath := filepath.Join(l.stagePath, id)
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return domain.Archive{}, fmt.Errorf("failed to create staging file: %w", err)
	}

	size, err := io.Copy(f, r)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		os.Remove(tmpPath)
		return domain.Archive{}, fmt.Errorf("failed to write archive: %w", err)
	}

	// Commit point: the archive becomes visible atomically or not at all.
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return domain.Archive{}, fmt.Errorf("failed to commit archive: %w", err)
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return domain.Archive{}, fmt.Errorf("failed to stat archive: %w", err)
	}

	return domain.Archive{
		ID:        id,
		Database:  database,
		Size:      size,
		CreatedAt: info.ModTime(),
		Location:  finalPath,
	}, nil
}

func (l *LocalStore) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	path, err := l.archivePath(id)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("archive %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return f, nil
}

func (l *LocalStore) List(ctx context.Context) ([]domain.Archive, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var archives []domain.Archive
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to get file info for %s: %w", entry.Name(), err)
		}

		database, err := parseArchiveID(entry.Name())
		if err != nil {
			// Foreign file in the backup directory; not ours to manage.
			continue
		}

		archives = append(archives, domain.Archive{
			ID:        entry.Name(),
			Database:  database,
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
			Location:  filepath.Join(l.basePath, entry.Name()),
		})
	}

	sortArchives(archives)
	return archives, nil
}

func (l *LocalStore) Delete(ctx context.Context, id string) error {
	path, err := l.archivePath(id)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete archive: %w", err)
	}
	return nil
}

func (l *LocalStore) archivePath(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("archive %s: %w", id, domain.ErrNotFound)
	}
	return filepath.Join(l.basePath, id), nil
}
