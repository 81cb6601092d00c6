package domain

import (
	"context"
	"io"
)

// ArchiveStore persists backup artifacts. Put must be atomic: a failed or
// aborted write leaves nothing visible to Get or List.
type ArchiveStore interface {
	Put(ctx context.Context, database string, r io.Reader) (Archive, error)
	Get(ctx context.Context, id string) (io.ReadCloser, error)
	// List returns all archives ordered by creation time ascending.
	List(ctx context.Context) ([]Archive, error)
	// Delete is idempotent; deleting an absent archive is not an error.
	Delete(ctx context.Context, id string) error
}
