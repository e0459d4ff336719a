package store

import "fmt"

// NotFoundError indicates a required store file is absent. It is fatal:
// callers abort the run before producing any output.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("store not found at %s", e.Path)
}

// SchemaError indicates a required table or column is missing from a store.
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("required table %s is missing", e.Table)
	}
	return fmt.Sprintf("required column %s.%s is missing", e.Table, e.Column)
}
