package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBackend keeps every key in a single kv table.
type SQLiteBackend struct {
	conn *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// sqlite allows a single writer.
	conn.SetMaxOpenConns(1)

	b := &SQLiteBackend{conn: conn}
	if err := b.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) migrate() error {
	if _, err := b.conn.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating kv table: %w", err)
	}

	var count int
	err := b.conn.QueryRow(`
		SELECT COUNT(*)
		FROM pragma_table_info('kv')
		WHERE name = 'updated_at'
	`).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking for updated_at column: %w", err)
	}
	if count == 0 {
		if _, err := b.conn.Exec(`ALTER TABLE kv ADD COLUMN updated_at TIMESTAMP`); err != nil {
			return fmt.Errorf("adding updated_at column: %w", err)
		}
	}
	return nil
}

func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := b.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying %s: %w", key, err)
	}
	return value, true, nil
}

func (b *SQLiteBackend) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.conn.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.conn.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	return b.conn.Close()
}
