// Package contacts resolves message addresses to display names using the
// AddressBook database found in the backup.
package contacts

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/Napageneral/smsexport/internal/store"
)

// Row is one (name parts, address) pair pulled from the contacts store.
type Row struct {
	First string
	Last  string
	Value string
}

// Index is an immutable address -> display name lookup, built once per run.
type Index struct {
	names map[string]string
	keys  []string // insertion order, for a deterministic normalized scan
}

// NewIndex returns an empty index. Lookups against it always miss, which
// is how runs without a contacts store fall back to raw addresses.
func NewIndex() *Index {
	return &Index{names: make(map[string]string)}
}

// Len returns the number of indexed addresses.
func (ix *Index) Len() int {
	return len(ix.names)
}

// Lookup resolves an address to a display name. An exact string match wins;
// otherwise the index is scanned comparing normalized forms. The scan is
// O(entries) but runs once per distinct address, not once per message.
func (ix *Index) Lookup(address string) (string, bool) {
	if name, ok := ix.names[address]; ok {
		return name, true
	}
	norm := NormalizePhoneNumber(address)
	if norm == "" {
		return "", false
	}
	for _, key := range ix.keys {
		if NormalizePhoneNumber(key) == norm {
			return ix.names[key], true
		}
	}
	return "", false
}

// BuildIndex builds the index from contact rows. Contacts whose joined
// name is empty are skipped; a later duplicate address overwrites an
// earlier one.
func BuildIndex(rows []Row) *Index {
	ix := NewIndex()
	for _, r := range rows {
		name := strings.TrimSpace(strings.TrimSpace(r.First) + " " + strings.TrimSpace(r.Last))
		if name == "" {
			continue
		}
		addr := strings.TrimSpace(r.Value)
		if addr == "" {
			continue
		}
		if _, ok := ix.names[addr]; !ok {
			ix.keys = append(ix.keys, addr)
		}
		ix.names[addr] = name
	}
	return ix
}

// LoadIndex reads the contacts store and builds the index.
func LoadIndex(st *store.Store) (*Index, error) {
	if err := st.RequireTableColumns("ABPerson", "ROWID", "First", "Last"); err != nil {
		return nil, err
	}
	if err := st.RequireTableColumns("ABMultiValue", "record_id", "value"); err != nil {
		return nil, err
	}

	rows, err := st.RawQuery(`
		SELECT p.First, p.Last, v.value
		FROM ABPerson p
		JOIN ABMultiValue v ON v.record_id = p.ROWID
		WHERE v.value IS NOT NULL
		ORDER BY p.ROWID
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var first, last, value sql.NullString
		if err := rows.Scan(&first, &last, &value); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		if !value.Valid {
			continue
		}
		out = append(out, Row{
			First: first.String,
			Last:  last.String,
			Value: value.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return BuildIndex(out), nil
}

// NormalizePhoneNumber reduces a phone-shaped address to bare digits:
// every non-digit is stripped, and an 11-digit result starting with 1
// drops the leading country-code digit.
func NormalizePhoneNumber(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		return digits[1:]
	}
	return digits
}
