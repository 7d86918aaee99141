package runtime

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/google/uuid"
)

// SessionStore persists Session records to an embedded SQLite database —
// no cgo, fitting an editor-embedded single process. Grounded on the
// retrieval pack's sql.Open("sqlite", path) + PRAGMA WAL-mode pattern
// (e.g. internal/store/sqlite.go in the wider pack).
type SessionStore struct {
	db *sql.DB
}

// OpenSessionStore opens (creating if absent) a SQLite-backed session
// ledger at path. Use ":memory:" for an ephemeral, test-only store.
func OpenSessionStore(path string) (*SessionStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create session store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	store := &SessionStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SessionStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS requests (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	model TEXT NOT NULL,
	provider TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cache_read_tokens INTEGER NOT NULL,
	cache_write_tokens INTEGER NOT NULL,
	thinking_tokens INTEGER NOT NULL,
	cost_usd REAL NOT NULL,
	completed_at DATETIME NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("migrate session store: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Append persists a completed request record, minting an id if unset.
func (s *SessionStore) Append(rec RequestRecord) (RequestRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`
INSERT INTO requests (id, document_id, model, provider, input_tokens, output_tokens, cache_read_tokens, cache_write_tokens, thinking_tokens, cost_usd, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DocumentID, rec.Model, rec.Provider,
		rec.InputTokens, rec.OutputTokens, rec.CacheReadTokens, rec.CacheWriteTokens, rec.ThinkingTokens,
		rec.CostUSD, rec.CompletedAt)
	if err != nil {
		return RequestRecord{}, fmt.Errorf("append request record: %w", err)
	}
	return rec, nil
}

// Records returns every persisted request, oldest first.
func (s *SessionStore) Records() ([]RequestRecord, error) {
	rows, err := s.db.Query(`
SELECT id, document_id, model, provider, input_tokens, output_tokens, cache_read_tokens, cache_write_tokens, thinking_tokens, cost_usd, completed_at
FROM requests ORDER BY completed_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query request records: %w", err)
	}
	defer rows.Close()

	var out []RequestRecord
	for rows.Next() {
		var rec RequestRecord
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.Model, &rec.Provider,
			&rec.InputTokens, &rec.OutputTokens, &rec.CacheReadTokens, &rec.CacheWriteTokens, &rec.ThinkingTokens,
			&rec.CostUSD, &rec.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan request record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// TotalCostUSD sums the cost of every persisted request.
func (s *SessionStore) TotalCostUSD() (float64, error) {
	var total sql.NullFloat64
	if err := s.db.QueryRow(`SELECT SUM(cost_usd) FROM requests`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum request costs: %w", err)
	}
	return total.Float64, nil
}
