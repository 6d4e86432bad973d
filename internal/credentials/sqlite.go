package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteSlot stores the key in the metadata table of a SQLite database.
type SQLiteSlot struct {
	db  *sql.DB
	key string
}

const schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// schemaVersion is recorded in schema_version. A database written by a newer
// orchat is refused rather than guessed at.
const schemaVersion = 1

// ErrNewerSchema is returned when the database was created by a newer orchat.
var ErrNewerSchema = errors.New("credential store was created by a newer version of orchat")

// NewSQLiteSlot opens (creating if needed) the database at path.
// An empty path uses GetDBPath.
func NewSQLiteSlot(path string) (*SQLiteSlot, error) {
	if path == "" {
		var err error
		path, err = GetDBPath()
		if err != nil {
			return nil, fmt.Errorf("get db path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	// The file holds a secret.
	_ = os.Chmod(path, 0600)

	return &SQLiteSlot{db: db, key: SlotKey}, nil
}

func (s *SQLiteSlot) Load(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", s.key, err)
	}
	return value, nil
}

func (s *SQLiteSlot) Save(ctx context.Context, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		s.key, value)
	if err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}

func (s *SQLiteSlot) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM metadata WHERE key = ?", s.key); err != nil {
		return fmt.Errorf("delete %s: %w", s.key, err)
	}
	return nil
}

func (s *SQLiteSlot) Close() error {
	return s.db.Close()
}

// initSchema creates the schema and records its version.
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create base schema: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	err := db.QueryRow("SELECT version FROM schema_version").Scan(&currentVersion)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("insert schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("get schema version: %w", err)
	case currentVersion > schemaVersion:
		return fmt.Errorf("%w (schema %d, supported %d)", ErrNewerSchema, currentVersion, schemaVersion)
	}
	return nil
}
