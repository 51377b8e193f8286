// Package export copies artifact archives of a test to remote storage.
package export

import (
	"context"
	"io"
	"time"
)

// Exporter stores zip archives of test artifacts.
type Exporter interface {
	// Preflight verifies that the remote storage is reachable and writable.
	Preflight(ctx context.Context) error

	// Export stores the archive of testID and returns its remote key.
	Export(ctx context.Context, testID int64, archive io.ReadSeeker) (string, error)

	// List returns previously exported archives of testID, newest first.
	List(ctx context.Context, testID int64) ([]Object, error)
}

// Object describes one exported archive.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}
