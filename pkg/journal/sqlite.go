package journal

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/go-go-golems/endevent/pkg/lifecycle"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = &SQLiteStore{}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite journal: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SQLiteDSNForFile builds a DSN for a journal database file.
func SQLiteDSNForFile(path string) (string, error) {
	if path == "" {
		return "", errors.New("sqlite journal: empty path")
	}
	// WAL for concurrent readers + writer. busy_timeout to avoid transient SQLITE_BUSY.
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path), nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	if s == nil || s.db == nil {
		return errors.New("sqlite journal: db is nil")
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS journal_requests (
		  request_id TEXT PRIMARY KEY,
		  seq INTEGER NOT NULL DEFAULT 0,
		  method TEXT NOT NULL DEFAULT '',
		  path TEXT NOT NULL DEFAULT '',
		  status INTEGER NOT NULL DEFAULT 0,
		  started_at_ms INTEGER NOT NULL DEFAULT 0,
		  updated_at_ms INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS journal_requests_by_started
		  ON journal_requests(started_at_ms DESC, seq DESC);`,
		`CREATE TABLE IF NOT EXISTS journal_signals (
		  request_id TEXT NOT NULL REFERENCES journal_requests(request_id) ON DELETE CASCADE,
		  step INTEGER NOT NULL,
		  signal TEXT NOT NULL,
		  at_ms INTEGER NOT NULL DEFAULT 0,
		  PRIMARY KEY (request_id, step)
		);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite journal: migrate")
		}
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, ev lifecycle.Event) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite journal: db is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	id := strings.TrimSpace(ev.RequestID)
	if id == "" {
		return errors.New("sqlite journal: request id is empty")
	}
	seq, err := uint64ToInt64(ev.Seq)
	if err != nil {
		return errors.Wrap(err, "sqlite journal: seq overflow")
	}
	var atMs int64
	if !ev.At.IsZero() {
		atMs = ev.At.UnixMilli()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite journal: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO journal_requests (request_id, seq) VALUES (?, ?)
	`, id, seq); err != nil {
		return errors.Wrap(err, "sqlite journal: insert request")
	}

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO journal_signals (request_id, step, signal, at_ms) VALUES (?, ?, ?, ?)
	`, id, ev.Step, string(ev.Signal), atMs)
	if err != nil {
		return errors.Wrap(err, "sqlite journal: insert signal")
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "sqlite journal: rows affected")
	}
	if inserted == 0 {
		// redelivered step
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE journal_requests SET
			seq = CASE WHEN seq = 0 THEN ? ELSE seq END,
			method = CASE WHEN ? <> '' THEN ? ELSE method END,
			path = CASE WHEN ? <> '' THEN ? ELSE path END,
			status = CASE WHEN ? <> 0 THEN ? ELSE status END,
			started_at_ms = CASE
				WHEN ? = 0 THEN started_at_ms
				WHEN started_at_ms = 0 OR ? < started_at_ms THEN ?
				ELSE started_at_ms
			END,
			updated_at_ms = CASE WHEN ? > updated_at_ms THEN ? ELSE updated_at_ms END
		WHERE request_id = ?
	`,
		seq,
		ev.Method, ev.Method,
		ev.Path, ev.Path,
		ev.Status, ev.Status,
		atMs, atMs, atMs,
		atMs, atMs,
		id,
	)
	if err != nil {
		return errors.Wrap(err, "sqlite journal: update request")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "sqlite journal: commit")
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, requestID string) (Record, bool, error) {
	if s == nil || s.db == nil {
		return Record{}, false, errors.New("sqlite journal: db is nil")
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return Record{}, false, errors.New("sqlite journal: request id is empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT request_id, seq, method, path, status, started_at_ms, updated_at_ms
		FROM journal_requests
		WHERE request_id = ?
	`, requestID)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, errors.Wrap(err, "sqlite journal: get request")
	}
	if r.Signals, err = s.signals(ctx, r.RequestID); err != nil {
		return Record{}, false, err
	}
	return r, true, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite journal: db is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, seq, method, path, status, started_at_ms, updated_at_ms
		FROM journal_requests
		ORDER BY started_at_ms DESC, seq DESC
		LIMIT ?
	`, clampLimit(limit))
	if err != nil {
		return nil, errors.Wrap(err, "sqlite journal: list requests")
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "sqlite journal: scan request")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite journal: iterate requests")
	}
	_ = rows.Close()

	for i := range out {
		if out[i].Signals, err = s.signals(ctx, out[i].RequestID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) signals(ctx context.Context, requestID string) ([]lifecycle.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT signal FROM journal_signals WHERE request_id = ? ORDER BY step ASC
	`, requestID)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite journal: list signals")
	}
	defer func() { _ = rows.Close() }()

	out := []lifecycle.Signal{}
	for rows.Next() {
		var sig string
		if err := rows.Scan(&sig); err != nil {
			return nil, errors.Wrap(err, "sqlite journal: scan signal")
		}
		out = append(out, lifecycle.Signal(sig))
	}
	return out, errors.Wrap(rows.Err(), "sqlite journal: iterate signals")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		r   Record
		seq int64
	)
	if err := row.Scan(&r.RequestID, &seq, &r.Method, &r.Path, &r.Status, &r.StartedAtMs, &r.UpdatedAtMs); err != nil {
		return Record{}, err
	}
	if seq > 0 {
		r.Seq = uint64(seq)
	}
	return r, nil
}

func uint64ToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, errors.Errorf("value %d overflows int64", v)
	}
	return int64(v), nil
}
