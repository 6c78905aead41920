// Package sqlite persists hybrid index records in SQLite and serves
// searches from an in-memory mirror loaded at open.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"hybridrag/internal/domain"
	"hybridrag/internal/errors"
	"hybridrag/internal/vectorstore/memory"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id      TEXT PRIMARY KEY,
	seq     INTEGER NOT NULL,
	vector  BLOB NOT NULL,
	text    TEXT NOT NULL,
	payload TEXT NOT NULL,
	document_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_records_document ON records(document_id);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Store is a domain.VectorStore that writes through to SQLite.
type Store struct {
	wmu    sync.Mutex // serialises write-through so db and mirror stay in step
	db     *sql.DB
	index  *memory.Index
	logger *slog.Logger
}

var _ domain.VectorStore = (*Store)(nil)

// Open opens (or creates) the database at path and loads every record.
// An empty path opens a private in-memory database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.New(errors.ErrCodeStorageFailed, "create sqlite directory", err)
		}
		dsn = path
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "open sqlite", err)
	}
	// single connection: an in-memory database is per-connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if path != "" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			logger.Warn("sqlite_pragma_failed", slog.String("error", err.Error()))
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.New(errors.ErrCodeStorageFailed, "create sqlite schema", err)
	}
	s := &Store{db: db, index: memory.NewIndex(logger), logger: logger}
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	var dimText string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'dimension'`).Scan(&dimText)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return errors.New(errors.ErrCodeStorageFailed, "read dimension", err)
	default:
		dim, convErr := strconv.Atoi(dimText)
		if convErr != nil {
			return errors.New(errors.ErrCodeStorageFailed, "corrupt dimension "+dimText, convErr)
		}
		if err := s.index.Init(dim); err != nil {
			return err
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, vector, text, payload FROM records ORDER BY seq`)
	if err != nil {
		return errors.New(errors.ErrCodeStorageFailed, "load records", err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var (
			rec     domain.VectorRecord
			blob    []byte
			payload string
		)
		if err := rows.Scan(&rec.ID, &blob, &rec.Text, &payload); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "scan record", err)
		}
		rec.Vector = decodeVector(blob)
		if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "decode payload of "+rec.ID, err)
		}
		if err := s.index.Upsert(ctx, rec); err != nil {
			return err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return errors.New(errors.ErrCodeStorageFailed, "iterate records", err)
	}
	s.logger.Info("sqlite_store_loaded", slog.Int("records", n), slog.Int("dimension", s.index.Dimension()))
	return nil
}

// Upsert writes the record to SQLite, then to the in-memory mirror.
func (s *Store) Upsert(ctx context.Context, record domain.VectorRecord) error {
	if record.ID == "" {
		return errors.Validationf("record id is required")
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	dim := s.index.Dimension()
	if dim == 0 && len(record.Vector) == 0 {
		return errors.Validationf("record %q has an empty vector", record.ID)
	}
	if dim != 0 && len(record.Vector) != dim {
		return errors.DimensionMismatch(dim, len(record.Vector))
	}
	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return errors.Validationf("payload of %q is not serialisable: %v", record.ID, err)
	}
	// NULL when absent, so DeleteByDocument matches the same rows as the mirror
	var docID sql.NullString
	docID.String, docID.Valid = record.Payload[domain.PayloadDocumentID].(string)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.ErrCodeStorageFailed, "begin upsert", err)
	}
	defer func() { _ = tx.Rollback() }()
	if dim == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO meta(key, value) VALUES ('dimension', ?)`,
			strconv.Itoa(len(record.Vector))); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "store dimension", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO records(id, seq, vector, text, payload, document_id)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM records), ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vector = excluded.vector, text = excluded.text,
			payload = excluded.payload, document_id = excluded.document_id`,
		record.ID, encodeVector(record.Vector), record.Text, string(payload), docID); err != nil {
		return errors.New(errors.ErrCodeStorageFailed, "upsert record "+record.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return errors.New(errors.ErrCodeStorageFailed, "commit upsert", err)
	}
	return s.index.Upsert(ctx, record)
}

// Delete implements domain.VectorStore.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return false, errors.New(errors.ErrCodeStorageFailed, "delete record "+id, err)
	}
	return s.index.Delete(ctx, id)
}

// DeleteByDocument implements domain.VectorStore.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE document_id IS NOT NULL AND document_id = ?`, documentID); err != nil {
		return 0, errors.New(errors.ErrCodeStorageFailed, "delete document "+documentID, err)
	}
	return s.index.DeleteByDocument(ctx, documentID)
}

// Clear removes every record and the stored dimension.
func (s *Store) Clear(ctx context.Context) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.New(errors.ErrCodeStorageFailed, "begin clear", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return 0, errors.New(errors.ErrCodeStorageFailed, "clear records", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM meta WHERE key = 'dimension'`); err != nil {
		return 0, errors.New(errors.ErrCodeStorageFailed, "clear dimension", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.New(errors.ErrCodeStorageFailed, "commit clear", err)
	}
	return s.index.Clear(ctx)
}

// Search is served entirely from the in-memory mirror.
func (s *Store) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error) {
	return s.index.Search(ctx, req)
}

// Count implements domain.VectorStore.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.index.Count(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}
