package store

import (
	"context"
	"errors"

	"fleetglobe/internal/feed"
)

// Store is a feed source the service owns directly, as opposed to the remote
// REST feed. It is read-only from the scene's point of view.
type Store interface {
	feed.Source

	Ping(ctx context.Context) error
	Close() error
}

var ErrNotFound = errors.New("not found")
