package domain

import "time"

// Archive is one committed backup artifact. Immutable once published.
type Archive struct {
	ID        string
	Database  string
	Size      int64
	CreatedAt time.Time
	Location  string
}
