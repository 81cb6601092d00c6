package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	appconfig "github.com/kevinnadar22/mongovault/internal/config"
	"github.com/kevinnadar22/mongovault/internal/domain"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// GDriveStore keeps archives as files in one Drive folder. Drive uploads are
// committed server-side as a whole, so a failed upload leaves no file.
type GDriveStore struct {
	service  *drive.Service
	folderID string
}

func NewGDrive(cfg *appconfig.StoreConfig) (*GDriveStore, error) {
	ctx := context.Background()

	service, err := drive.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &GDriveStore{
		service:  service,
		folderID: cfg.FolderID,
	}, nil
}

func (g *GDriveStore) Put(ctx context.Context, database string, r io.Reader) (domain.Archive, error) {
	id := newArchiveID(database)

	fileMetadata := &drive.File{
		Name:    id,
		Parents: []string{g.folderID},
	}

	created, err := g.service.Files.Create(fileMetadata).
		Media(r).
		Fields("id, size, createdTime").
		Context(ctx).
		Do()
	if err != nil {
		return domain.Archive{}, fmt.Errorf("failed to upload to gdrive: %w", err)
	}

	createdAt, _ := time.Parse(time.RFC3339, created.CreatedTime)

	return domain.Archive{
		ID:        id,
		Database:  database,
		Size:      created.Size,
		CreatedAt: createdAt,
		Location:  fmt.Sprintf("gdrive://%s/%s", g.folderID, created.Id),
	}, nil
}

func (g *GDriveStore) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	fileID, err := g.findFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if fileID == "" {
		return nil, fmt.Errorf("archive %s: %w", id, domain.ErrNotFound)
	}

	resp, err := g.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download from gdrive: %w", err)
	}

	return resp.Body, nil
}

func (g *GDriveStore) List(ctx context.Context) ([]domain.Archive, error) {
	query := fmt.Sprintf("'%s' in parents and trashed=false", g.folderID)

	fileList, err := g.service.Files.List().
		Q(query).
		Fields("files(id, name, size, createdTime)").
		OrderBy("createdTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	var archives []domain.Archive
	for _, file := range fileList.Files {
		database, err := parseArchiveID(file.Name)
		if err != nil {
			continue
		}

		createdAt, _ := time.Parse(time.RFC3339, file.CreatedTime)
		archives = append(archives, domain.Archive{
			ID:        file.Name,
			Database:  database,
			Size:      file.Size,
			CreatedAt: createdAt,
			Location:  fmt.Sprintf("gdrive://%s/%s", g.folderID, file.Id),
		})
	}

	sortArchives(archives)
	return archives, nil
}

func (g *GDriveStore) Delete(ctx context.Context, id string) error {
	fileID, err := g.findFile(ctx, id)
	if err != nil {
		return err
	}
	if fileID == "" {
		return nil
	}

	if err := g.service.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

func (g *GDriveStore) findFile(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("'%s' in parents and name='%s' and trashed=false", g.folderID, name)

	fileList, err := g.service.Files.List().
		Q(query).
		Fields("files(id)").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to find file: %w", err)
	}

	if len(fileList.Files) == 0 {
		return "", nil
	}
	return fileList.Files[0].Id, nil
}
