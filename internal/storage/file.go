package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/keshon/npc-mind/datastore"
)

type fileRecord struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	Data    json.RawMessage `json:"data"`
}

// FileBackend keeps every record in one JSON file through datastore. Each key
// holds the full version list of one record.
type FileBackend struct {
	ds           *datastore.DataStore
	historyLimit int
	log          *zap.Logger
	mu           sync.Mutex // serializes read-modify-write in Put
}

// NewFileBackend opens (or creates) the JSON file at path.
func NewFileBackend(path string, historyLimit int, log *zap.Logger) (*FileBackend, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if path == "" {
		path = "data/npcmind.json"
	}
	cfg := datastore.DefaultConfig(path)
	cfg.Logger = log
	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open datastore: %w", err)
	}
	log.Info("file backend opened", zap.String("path", path))
	return &FileBackend{ds: ds, historyLimit: historyLimit, log: log}, nil
}

func fileKey(kind Kind, id string) string {
	return string(kind) + ":" + id
}

func (b *FileBackend) load(kind Kind, id string) ([]fileRecord, error) {
	var recs []fileRecord
	ok, err := b.ds.GetInto(fileKey(kind, id), &recs)
	if err != nil {
		return nil, err
	}
	if !ok || len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs, nil
}

func (b *FileBackend) Get(ctx context.Context, kind Kind, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	recs, err := b.load(kind, id)
	if err != nil {
		return Record{}, err
	}
	last := recs[len(recs)-1]
	return toRecord(kind, id, last), nil
}

func (b *FileBackend) Put(ctx context.Context, kind Kind, id string, data []byte) (Version, error) {
	if err := ctx.Err(); err != nil {
		return Version{}, err
	}
	if !json.Valid(data) {
		return Version{}, fmt.Errorf("put %s %s: data is not valid JSON", kind, id)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	recs, err := b.load(kind, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Version{}, err
	}
	next := 1
	if len(recs) > 0 {
		next = recs[len(recs)-1].Version + 1
	}
	v := Version{Number: next, SavedAt: time.Now().UTC()}
	recs = append(recs, fileRecord{Version: v.Number, SavedAt: v.SavedAt, Data: append(json.RawMessage(nil), data...)})

	nums := make([]int, len(recs))
	for i, r := range recs {
		nums[i] = r.Version
	}
	if drop := trimHistory(nums, b.historyLimit); len(drop) > 0 {
		recs = append(recs[:1:1], recs[1+len(drop):]...)
	}

	if err := b.ds.Add(fileKey(kind, id), recs); err != nil {
		return Version{}, fmt.Errorf("put %s %s: %w", kind, id, err)
	}
	return v, nil
}

func (b *FileBackend) List(ctx context.Context, kind Kind, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := string(kind) + ":"
	keys := b.ds.Keys(base + prefix)
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, base))
	}
	return ids, nil
}

func (b *FileBackend) History(ctx context.Context, kind Kind, id string) ([]Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recs, err := b.load(kind, id)
	if err != nil {
		return nil, err
	}
	out := make([]Version, len(recs))
	for i, r := range recs {
		out[i] = Version{Number: r.Version, SavedAt: r.SavedAt}
	}
	return out, nil
}

func (b *FileBackend) GetVersion(ctx context.Context, kind Kind, id string, version int) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	recs, err := b.load(kind, id)
	if err != nil {
		return Record{}, err
	}
	for _, r := range recs {
		if r.Version == version {
			return toRecord(kind, id, r), nil
		}
	}
	return Record{}, ErrNotFound
}

// Flush forces the datastore to disk.
func (b *FileBackend) Flush() error {
	return b.ds.SaveToFile()
}

func (b *FileBackend) Close() error {
	return b.ds.Close()
}

func toRecord(kind Kind, id string, r fileRecord) Record {
	return Record{
		Kind:    kind,
		ID:      id,
		Version: Version{Number: r.Version, SavedAt: r.SavedAt},
		Data:    []byte(r.Data),
	}
}
