// Package storage persists NPC definitions and instances as versioned JSON
// records behind a small Backend contract.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a record or version does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrExists is returned when creating a record that already exists.
	ErrExists = errors.New("record already exists")
)

// Kind separates record namespaces.
type Kind string

const (
	KindDefinition Kind = "definition"
	KindInstance   Kind = "instance"
)

// Version identifies one saved revision of a record.
type Version struct {
	Number  int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
}

// Record is one stored revision.
type Record struct {
	Kind    Kind
	ID      string
	Version Version
	Data    []byte
}

// Backend is a versioned, append-only key/value store. Every Put creates a
// new version; the highest version is current. Last writer wins per key.
type Backend interface {
	// Get returns the latest version of (kind, id) or ErrNotFound.
	Get(ctx context.Context, kind Kind, id string) (Record, error)
	// Put appends a new version and returns it.
	Put(ctx context.Context, kind Kind, id string, data []byte) (Version, error)
	// List returns the ids of kind starting with prefix, sorted.
	List(ctx context.Context, kind Kind, prefix string) ([]string, error)
	// History returns the retained versions of (kind, id), oldest first.
	History(ctx context.Context, kind Kind, id string) ([]Version, error)
	// GetVersion returns one specific version or ErrNotFound.
	GetVersion(ctx context.Context, kind Kind, id string, version int) (Record, error)
	Close() error
}

// Drivers understood by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Options configures Open.
type Options struct {
	Driver string
	Path   string
	// HistoryLimit caps retained versions per record; 0 keeps every version.
	// The first version is always kept.
	HistoryLimit int
	Logger       *zap.Logger
}

// Open returns the backend named by opts.Driver.
func Open(opts Options) (Backend, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("storage")
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case DriverFile, "":
		return NewFileBackend(opts.Path, opts.HistoryLimit, log)
	case DriverSQLite:
		return NewSQLiteBackend(opts.Path, opts.HistoryLimit, log)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", opts.Driver)
	}
}

// trimHistory returns the version numbers to drop so that at most limit
// versions remain, never dropping the first one.
func trimHistory(versions []int, limit int) []int {
	if limit <= 0 || len(versions) <= limit {
		return nil
	}
	if limit < 2 {
		limit = 2
	}
	if len(versions) <= limit {
		return nil
	}
	// versions[0] is the first version; drop the oldest after it.
	return versions[1 : len(versions)-limit+1]
}
