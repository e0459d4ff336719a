// Package store provides read-only access to the SQLite databases found
// inside a device backup. It knows nothing about message semantics.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a read-only connection to one backup database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the database at path in read-only mode.
// Returns *NotFoundError if the file does not exist.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &NotFoundError{Path: path}
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}

	// Read-only pragmas; some may not be supported depending on the
	// sqlite build, which is fine.
	pragmas := []string{
		"PRAGMA query_only=ON",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA cache_size=-65536",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			continue
		}
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the filesystem path the store was opened from.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// QueryOptions controls the SELECT built by Query.
type QueryOptions struct {
	Columns []string // empty means *
	Where   string
	Params  []interface{}
}

// Query runs a SELECT against a single table.
func (s *Store) Query(table string, opts QueryOptions) (*sql.Rows, error) {
	cols := "*"
	if len(opts.Columns) > 0 {
		cols = strings.Join(opts.Columns, ", ")
	}
	query := fmt.Sprintf("SELECT %s FROM %s", cols, table)
	if opts.Where != "" {
		query += " WHERE " + opts.Where
	}
	rows, err := s.db.Query(query, opts.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	return rows, nil
}

// RawQuery runs an arbitrary SQL query with parameters.
func (s *Store) RawQuery(query string, params ...interface{}) (*sql.Rows, error) {
	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return rows, nil
}

// RawQueryRow runs an arbitrary SQL query expected to return one row.
func (s *Store) RawQueryRow(query string, params ...interface{}) *sql.Row {
	return s.db.QueryRow(query, params...)
}

// HasTable reports whether a table exists in the store.
func (s *Store) HasTable(name string) (bool, error) {
	var n string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name = ? LIMIT 1", name,
	).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to probe table %s: %w", name, err)
	}
	return true, nil
}

// HasColumn reports whether a column exists on a table.
func (s *Store) HasColumn(table, column string) (bool, error) {
	cols, err := s.tableColumns(table)
	if err != nil {
		return false, err
	}
	_, ok := cols[strings.ToLower(column)]
	return ok, nil
}

// RequireTableColumns validates that a table and all named columns exist.
// Returns *SchemaError naming the offending table or column. Pipelines must
// call this before scanning rows so a missing column never surfaces as a
// null value deep in business logic.
func (s *Store) RequireTableColumns(table string, columns ...string) error {
	ok, err := s.HasTable(table)
	if err != nil {
		return err
	}
	if !ok {
		return &SchemaError{Table: table}
	}

	cols, err := s.tableColumns(table)
	if err != nil {
		return err
	}
	for _, col := range columns {
		if _, ok := cols[strings.ToLower(col)]; !ok {
			return &SchemaError{Table: table, Column: col}
		}
	}
	return nil
}

func (s *Store) tableColumns(table string) (map[string]struct{}, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var (
			cid       int
			name      string
			typ       string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column info of %s: %w", table, err)
		}
		cols[strings.ToLower(name)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}
	return cols, nil
}
