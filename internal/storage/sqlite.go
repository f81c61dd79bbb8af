package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS records (
		kind     TEXT    NOT NULL,
		id       TEXT    NOT NULL,
		version  INTEGER NOT NULL,
		data     BLOB    NOT NULL,
		saved_at TEXT    NOT NULL,
		PRIMARY KEY (kind, id, version)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_kind_id ON records(kind, id)`,
}

// SQLiteBackend stores one row per record version.
type SQLiteBackend struct {
	db           *sql.DB
	historyLimit int
	log          *zap.Logger
}

// NewSQLiteBackend opens (or creates) the database at path. ":memory:" is
// accepted for tests.
func NewSQLiteBackend(path string, historyLimit int, log *zap.Logger) (*SQLiteBackend, error) {
	if log == nil {
		log = zap.NewNop()
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if path != ":memory:" {
		if parent := filepath.Dir(path); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite schema: %w", err)
		}
	}
	log.Info("sqlite backend opened", zap.String("path", path))
	return &SQLiteBackend{db: db, historyLimit: historyLimit, log: log}, nil
}

func (b *SQLiteBackend) Get(ctx context.Context, kind Kind, id string) (Record, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT version, data, saved_at FROM records WHERE kind = ? AND id = ? ORDER BY version DESC LIMIT 1`,
		string(kind), id)
	return scanRecord(kind, id, row)
}

func (b *SQLiteBackend) Put(ctx context.Context, kind Kind, id string, data []byte) (Version, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return Version{}, err
	}
	defer tx.Rollback()

	var current sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM records WHERE kind = ? AND id = ?`, string(kind), id,
	).Scan(&current); err != nil {
		return Version{}, fmt.Errorf("put %s %s: %w", kind, id, err)
	}
	v := Version{Number: int(current.Int64) + 1, SavedAt: time.Now().UTC()}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO records (kind, id, version, data, saved_at) VALUES (?, ?, ?, ?, ?)`,
		string(kind), id, v.Number, data, v.SavedAt.Format(time.RFC3339Nano),
	); err != nil {
		return Version{}, fmt.Errorf("put %s %s: %w", kind, id, err)
	}

	if b.historyLimit > 0 {
		nums, err := versionsTx(ctx, tx, kind, id)
		if err != nil {
			return Version{}, err
		}
		for _, n := range trimHistory(nums, b.historyLimit) {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM records WHERE kind = ? AND id = ? AND version = ?`, string(kind), id, n,
			); err != nil {
				return Version{}, fmt.Errorf("trim %s %s: %w", kind, id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Version{}, err
	}
	return v, nil
}

func versionsTx(ctx context.Context, tx *sql.Tx, kind Kind, id string) ([]int, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT version FROM records WHERE kind = ? AND id = ? ORDER BY version ASC`, string(kind), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) List(ctx context.Context, kind Kind, prefix string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT DISTINCT id FROM records WHERE kind = ? AND substr(id, 1, length(?)) = ? ORDER BY id ASC`,
		string(kind), prefix, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (b *SQLiteBackend) History(ctx context.Context, kind Kind, id string) ([]Version, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT version, saved_at FROM records WHERE kind = ? AND id = ? ORDER BY version ASC`,
		string(kind), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Version
	for rows.Next() {
		var (
			v       Version
			savedAt string
		)
		if err := rows.Scan(&v.Number, &savedAt); err != nil {
			return nil, err
		}
		v.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (b *SQLiteBackend) GetVersion(ctx context.Context, kind Kind, id string, version int) (Record, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT version, data, saved_at FROM records WHERE kind = ? AND id = ? AND version = ?`,
		string(kind), id, version)
	return scanRecord(kind, id, row)
}

func (b *SQLiteBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func scanRecord(kind Kind, id string, row *sql.Row) (Record, error) {
	var (
		rec     = Record{Kind: kind, ID: id}
		savedAt string
	)
	if err := row.Scan(&rec.Version.Number, &rec.Data, &savedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.Version.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
	return rec, nil
}
