package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kevinnadar22/mongovault/internal/domain"
)

const archiveExt = ".archive"

const timestampLayout = "20060102_150405"

// newArchiveID builds a fresh identifier of the form
// <database>_<yyyymmdd_hhmmss>_<rand>.archive. The random suffix keeps ids
// unique across same-second backups of one database; the timestamp is for
// humans, creation time is always taken from store metadata.
func newArchiveID(database string) string {
	ts := time.Now().UTC().Format(timestampLayout)
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("%s_%s_%s%s", database, ts, suffix, archiveExt)
}

// sortArchives orders by creation time ascending, breaking ties by id so
// every store backend lists in the same order.
func sortArchives(archives []domain.Archive) {
	sort.Slice(archives, func(i, j int) bool {
		if archives[i].CreatedAt.Equal(archives[j].CreatedAt) {
			return archives[i].ID < archives[j].ID
		}
		return archives[i].CreatedAt.Before(archives[j].CreatedAt)
	})
}

// parseArchiveID recovers the database name from an identifier. Database
// names may themselves contain underscores, so parsing walks from the end.
func parseArchiveID(id string) (string, error) {
	name := strings.TrimSuffix(id, archiveExt)

	parts := strings.Split(name, "_")
	if len(parts) < 4 {
		return "", fmt.Errorf("invalid archive id: %s", id)
	}

	ts := parts[len(parts)-3] + "_" + parts[len(parts)-2]
	if _, err := time.Parse(timestampLayout, ts); err != nil {
		return "", fmt.Errorf("invalid archive id %s: %w", id, err)
	}

	return strings.Join(parts[:len(parts)-3], "_"), nil
}
