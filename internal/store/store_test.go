package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// createTestStore creates a small sqlite database for testing
func createTestStore(t *testing.T) string {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("Failed to create test db: %v", err)
	}
	defer db.Close()

	schema := `
		CREATE TABLE message (
			ROWID INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT,
			date INTEGER
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if _, err := db.Exec("INSERT INTO message (text, date) VALUES (?, ?)", "msg", i*100); err != nil {
			t.Fatalf("Failed to insert row: %v", err)
		}
	}

	return dbPath
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.db"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}

	var nfe *NotFoundError
	if !errors.As(err, &nfe) {
		t.Errorf("expected NotFoundError, got %T: %v", err, err)
	}
}

func TestQuery(t *testing.T) {
	st, err := Open(createTestStore(t))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	rows, err := st.Query("message", QueryOptions{
		Columns: []string{"ROWID", "text"},
		Where:   "date > ?",
		Params:  []interface{}{100},
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id int64
		var text string
		if err := rows.Scan(&id, &text); err != nil {
			t.Fatalf("Failed to scan row: %v", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("Row iteration error: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 rows, got %d", count)
	}
}

func TestRawQuery(t *testing.T) {
	st, err := Open(createTestStore(t))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	var total int
	if err := st.RawQueryRow("SELECT COUNT(*) FROM message").Scan(&total); err != nil {
		t.Fatalf("RawQueryRow failed: %v", err)
	}
	if total != 3 {
		t.Errorf("expected 3 messages, got %d", total)
	}
}

func TestRequireTableColumns(t *testing.T) {
	st, err := Open(createTestStore(t))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	if err := st.RequireTableColumns("message", "ROWID", "text", "date"); err != nil {
		t.Errorf("expected columns to validate, got: %v", err)
	}

	err = st.RequireTableColumns("message", "ROWID", "attributedBody")
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %T: %v", err, err)
	}
	if se.Table != "message" || se.Column != "attributedBody" {
		t.Errorf("SchemaError should name the offending column, got %+v", se)
	}

	err = st.RequireTableColumns("handle", "ROWID")
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError for missing table, got %T: %v", err, err)
	}
	if se.Table != "handle" || se.Column != "" {
		t.Errorf("SchemaError should name the missing table, got %+v", se)
	}
}

func TestHasColumn(t *testing.T) {
	st, err := Open(createTestStore(t))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	ok, err := st.HasColumn("message", "date")
	if err != nil {
		t.Fatalf("HasColumn failed: %v", err)
	}
	if !ok {
		t.Error("expected message.date to exist")
	}

	ok, err = st.HasColumn("message", "style")
	if err != nil {
		t.Fatalf("HasColumn failed: %v", err)
	}
	if ok {
		t.Error("message.style should not exist")
	}
}
