// Package snapstore persists annotation snapshots for the save/restore
// demos. It is the server-side analog of the browser localStorage the demos
// historically wrote to: one shared SQLite file, keys derived from save
// timestamps, last writer wins.
//
// Snapshots are opaque. Save never inspects the blob; Load rejects bytes
// that are not valid JSON so foreign writes surface as errors instead of
// reaching the viewer.
//
// Usage:
//
//	store, err := snapstore.New(db)
//	rec, err := store.Save(ctx, profileID, blob)
//	states, err := store.List(ctx, profileID)
//	blob, err := store.Load(ctx, profileID, states[0].Key)
package snapstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/vitrine/dbopen"
)

// KeyPrefix scopes saved-state keys inside the shared key-value table.
// The full key form is KeyPrefix + an ISO-8601 UTC timestamp with
// millisecond precision, e.g. "instant.savedState.2024-01-15T10:30:00.123Z".
const KeyPrefix = "instant.savedState."

// keyTimeLayout is fixed-width so lexicographic key order equals
// chronological order. The trailing Z is literal; times are always UTC.
const keyTimeLayout = "2006-01-02T15:04:05.000Z"

var (
	// ErrStateNotFound is returned by Load and Delete for unknown keys.
	ErrStateNotFound = errors.New("snapstore: saved state not found")

	// ErrStateCorrupt is returned by Load when the stored bytes are not
	// valid JSON (foreign or damaged writes under a saved-state key).
	ErrStateCorrupt = errors.New("snapstore: saved state is not valid JSON")
)

// SavedState is one persisted snapshot reference: the storage key and the
// save instant encoded in it.
type SavedState struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS profile_kv (
    profile    TEXT NOT NULL,
    k          TEXT NOT NULL,
    v          BLOB NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (profile, k)
);
`

// Store reads and writes saved annotation states. Safe for concurrent use;
// cross-process writers are serialized by SQLite itself.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithNow overrides the clock, letting tests pin save timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store and applies its schema.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("snapstore: db is required")
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("snapstore: schema: %w", err)
	}
	s := &Store{
		db:     db,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// List returns the profile's saved states in key order. Keys are fixed-width
// timestamps, so key order is creation order. Keys under the prefix whose
// timestamp suffix does not parse are skipped, not errors: the table is
// shared storage and other tools may have written there.
func (s *Store) List(ctx context.Context, profile string) ([]SavedState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT k FROM profile_kv WHERE profile = ? AND k LIKE ? ORDER BY k ASC`,
		profile, KeyPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("snapstore: list: %w", err)
	}
	defer rows.Close()

	var out []SavedState
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("snapstore: list scan: %w", err)
		}
		suffix, ok := strings.CutPrefix(k, KeyPrefix)
		if !ok {
			continue
		}
		ts, err := time.Parse(keyTimeLayout, suffix)
		if err != nil {
			s.logger.Debug("snapstore: skipping key with unparsable timestamp", "key", k)
			continue
		}
		out = append(out, SavedState{Key: k, CreatedAt: ts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapstore: list rows: %w", err)
	}
	return out, nil
}

// Save persists blob under a fresh timestamp-derived key and returns the
// record. The blob is opaque; no validation happens on the write path.
// Two saves inside the same millisecond produce the same key and the later
// write replaces the earlier one, matching the shared-storage semantics of
// the whole table.
func (s *Store) Save(ctx context.Context, profile string, blob []byte) (SavedState, error) {
	at := s.now().UTC().Truncate(time.Millisecond)
	key := KeyPrefix + at.Format(keyTimeLayout)

	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM profile_kv WHERE profile = ? AND k = ?`, profile, key).Scan(&exists)
		switch {
		case err == nil:
			s.logger.Warn("snapstore: same-millisecond save replaces existing state", "key", key)
		case errors.Is(err, sql.ErrNoRows):
			// Fresh key, the normal case.
		default:
			return fmt.Errorf("snapstore: save lookup: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO profile_kv (profile, k, v, updated_at) VALUES (?, ?, ?, ?)`,
			profile, key, blob, at.UnixMilli()); err != nil {
			return fmt.Errorf("snapstore: save: %w", err)
		}
		return nil
	})
	if err != nil {
		return SavedState{}, err
	}
	return SavedState{Key: key, CreatedAt: at}, nil
}

// Load returns the snapshot bytes saved under key, byte-identical to what
// Save wrote. Unknown keys return ErrStateNotFound. Stored values that are
// not valid JSON return ErrStateCorrupt rather than flowing into a viewer.
func (s *Store) Load(ctx context.Context, profile, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT v FROM profile_kv WHERE profile = ? AND k = ?`, profile, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrStateNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("snapstore: load: %w", err)
	}
	if !json.Valid(v) {
		return nil, fmt.Errorf("%w: %s", ErrStateCorrupt, key)
	}
	return v, nil
}

// Delete removes the state saved under key. Unknown keys return
// ErrStateNotFound so callers can distinguish a no-op from a removal.
func (s *Store) Delete(ctx context.Context, profile, key string) error {
	res, err := dbopen.Exec(ctx, s.db,
		`DELETE FROM profile_kv WHERE profile = ? AND k = ?`, profile, key)
	if err != nil {
		return fmt.Errorf("snapstore: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("snapstore: delete rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrStateNotFound, key)
	}
	return nil
}

// Clear removes every saved state for the profile and reports how many
// were removed. Used by the demo reset action.
func (s *Store) Clear(ctx context.Context, profile string) (int64, error) {
	res, err := dbopen.Exec(ctx, s.db,
		`DELETE FROM profile_kv WHERE profile = ? AND k LIKE ?`, profile, KeyPrefix+"%")
	if err != nil {
		return 0, fmt.Errorf("snapstore: clear: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("snapstore: clear rows affected: %w", err)
	}
	return n, nil
}

// ParseKey extracts the creation time from a saved-state key. It reports
// false for keys outside the prefix or with an unparsable suffix.
func ParseKey(key string) (time.Time, bool) {
	suffix, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(keyTimeLayout, suffix)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
