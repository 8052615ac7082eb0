package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	cserrors "github.com/Aman-CERP/casesearch/internal/errors"
	"github.com/Aman-CERP/casesearch/internal/projection"
)

// SQLiteLedger implements Ledger on SQLite in WAL mode, so the CLI and a
// running server can share one ledger file.
type SQLiteLedger struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
	now    func() time.Time
}

// Verify interface implementation at compile time
var _ Ledger = (*SQLiteLedger)(nil)

// validateLedgerIntegrity checks a ledger database before opening.
// Returns nil if valid or absent.
func validateLedgerIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// NewSQLiteLedger opens or creates the ledger at path.
// An empty path or ":memory:" creates an in-memory ledger.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	var dsn string
	if path == "" || path == ":memory:" {
		path = ""
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, cserrors.New(cserrors.ErrCodeLedgerFailed,
				fmt.Sprintf("failed to create directory %s", dir), err)
		}

		if validErr := validateLedgerIntegrity(path); validErr != nil {
			// A corrupt ledger cannot be rebuilt from the index, so it is
			// reported instead of cleared.
			slog.Error("ledger_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			return nil, cserrors.New(cserrors.ErrCodeCorruptIndex,
				fmt.Sprintf("ledger corrupted at %s", path), validErr).
				WithSuggestion("Move the ledger file aside and run 'casesearch reindex' for every kind")
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cserrors.New(cserrors.ErrCodeLedgerFailed, "failed to open ledger", err)
	}

	// Single writer; also keeps the in-memory database on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, cserrors.New(cserrors.ErrCodeLedgerFailed, "failed to set pragma", err)
		}
	}

	l := &SQLiteLedger{db: db, path: path, now: time.Now}
	if err := l.initSchema(); err != nil {
		_ = db.Close()
		return nil, cserrors.New(cserrors.ErrCodeLedgerFailed, "failed to initialize schema", err)
	}
	return l, nil
}

func (l *SQLiteLedger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- One row per stale (kind, id). version increments on every mark.
	CREATE TABLE IF NOT EXISTS pending_reindex (
		kind       TEXT    NOT NULL,
		id         TEXT    NOT NULL,
		version    INTEGER NOT NULL DEFAULT 1,
		marked_at  INTEGER NOT NULL,
		attempts   INTEGER NOT NULL DEFAULT 0,
		last_error TEXT    NOT NULL DEFAULT '',
		PRIMARY KEY (kind, id)
	);

	CREATE INDEX IF NOT EXISTS idx_pending_marked_at ON pending_reindex(marked_at);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := l.db.Exec(schema)
	return err
}

func (l *SQLiteLedger) ledgerError(op string, err error) error {
	return cserrors.New(cserrors.ErrCodeLedgerFailed, fmt.Sprintf("ledger %s failed", op), err)
}

func (l *SQLiteLedger) checkOpen() error {
	if l.closed {
		return cserrors.New(cserrors.ErrCodeLedgerFailed, "ledger is closed", nil)
	}
	return nil
}

// Mark implements Ledger. The first mark time of a pending pair is kept.
func (l *SQLiteLedger) Mark(ctx context.Context, kind projection.Kind, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkOpen(); err != nil {
		return err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return l.ledgerError("mark", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pending_reindex (kind, id, version, marked_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (kind, id) DO UPDATE SET version = version + 1`)
	if err != nil {
		return l.ledgerError("mark", err)
	}
	defer stmt.Close()

	markedAt := l.now().UnixNano()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, string(kind), id, markedAt); err != nil {
			return l.ledgerError("mark", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return l.ledgerError("mark", err)
	}
	return nil
}

// Pending implements Ledger.
func (l *SQLiteLedger) Pending(ctx context.Context, limit int) ([]LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.checkOpen(); err != nil {
		return nil, err
	}

	q := `SELECT kind, id, version, marked_at, attempts, last_error
		FROM pending_reindex ORDER BY attempts, marked_at, kind, id`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, l.ledgerError("read", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var (
			e        LedgerEntry
			kind     string
			markedAt int64
		)
		if err := rows.Scan(&kind, &e.ID, &e.Version, &markedAt, &e.Attempts, &e.LastError); err != nil {
			return nil, l.ledgerError("read", err)
		}
		e.Kind = projection.Kind(kind)
		e.MarkedAt = time.Unix(0, markedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, l.ledgerError("read", err)
	}
	return entries, nil
}

// Clear implements Ledger.
func (l *SQLiteLedger) Clear(ctx context.Context, entries ...LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return l.deleteEach(ctx, "clear",
		`DELETE FROM pending_reindex WHERE kind = ? AND id = ? AND version = ?`,
		len(entries), func(i int) []any {
			return []any{string(entries[i].Kind), entries[i].ID, entries[i].Version}
		})
}

// Unmark implements Ledger.
func (l *SQLiteLedger) Unmark(ctx context.Context, kind projection.Kind, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return l.deleteEach(ctx, "unmark",
		`DELETE FROM pending_reindex WHERE kind = ? AND id = ?`,
		len(ids), func(i int) []any {
			return []any{string(kind), ids[i]}
		})
}

func (l *SQLiteLedger) deleteEach(ctx context.Context, op, stmtSQL string, n int, args func(int) []any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkOpen(); err != nil {
		return err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return l.ledgerError(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return l.ledgerError(op, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return l.ledgerError(op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return l.ledgerError(op, err)
	}
	return nil
}

// RecordFailure implements Ledger.
func (l *SQLiteLedger) RecordFailure(ctx context.Context, entry LedgerEntry, cause string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkOpen(); err != nil {
		return err
	}

	_, err := l.db.ExecContext(ctx, `
		UPDATE pending_reindex SET attempts = attempts + 1, last_error = ?
		WHERE kind = ? AND id = ?`, cause, string(entry.Kind), entry.ID)
	if err != nil {
		return l.ledgerError("record failure", err)
	}
	return nil
}

// Stats implements Ledger.
func (l *SQLiteLedger) Stats(ctx context.Context) (LedgerStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := LedgerStats{ByKind: make(map[projection.Kind]int)}
	if err := l.checkOpen(); err != nil {
		return stats, err
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM pending_reindex GROUP BY kind`)
	if err != nil {
		return stats, l.ledgerError("stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return stats, l.ledgerError("stats", err)
		}
		stats.ByKind[projection.Kind(kind)] = n
		stats.Pending += n
	}
	if err := rows.Err(); err != nil {
		return stats, l.ledgerError("stats", err)
	}

	var oldest sql.NullInt64
	err = l.db.QueryRowContext(ctx, `
		SELECT COUNT(CASE WHEN attempts > 0 THEN 1 END), MIN(marked_at)
		FROM pending_reindex`).Scan(&stats.Failing, &oldest)
	if err != nil {
		return stats, l.ledgerError("stats", err)
	}
	if oldest.Valid {
		stats.Oldest = time.Unix(0, oldest.Int64)
	}
	return stats, nil
}

// Path returns the ledger file path, empty for an in-memory ledger.
func (l *SQLiteLedger) Path() string {
	return l.path
}

// Close implements Ledger.
func (l *SQLiteLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}
